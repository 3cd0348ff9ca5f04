package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/auth"
	"liontech/backup"
	"liontech/config"
	"liontech/coupon"
	"liontech/database"
	"liontech/dbtest"
	"liontech/model"
	"liontech/product"
	"liontech/realtime"
	"liontech/storage"
	"liontech/whatsapp"
)

type testServer struct {
	app     *application
	handler http.Handler
	store   *storage.LocalStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.New(t)
	store, err := storage.NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)
	log := zap.NewNop()
	app := &application{
		db:    db,
		log:   log,
		auth:  auth.NewService(db, "test-secret", time.Hour),
		hub:   realtime.NewHub(log),
		store: store,
	}
	app.notifier = whatsapp.NewNotifier(nil, log, config.GetConfig)
	app.backups = backup.NewRunner(db, store, log)
	return &testServer{app: app, handler: SetupRoutes(app), store: store}
}

func (s *testServer) token(t *testing.T, role string) string {
	t.Helper()
	u, err := auth.CreateUser(context.Background(), s.app.db, role+"@liontech.test", "Equipe "+role, role, "senha-forte-123")
	require.NoError(t, err)
	tok, _, err := s.app.auth.IssueToken(*u)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestCategoryRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin")

	rec := s.do(t, http.MethodPost, "/api/admin/categories", admin, map[string]interface{}{"name": "Periféricos"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var perif model.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &perif))
	assert.Equal(t, "perifericos", perif.Slug)

	rec = s.do(t, http.MethodPost, "/api/admin/categories", admin, map[string]interface{}{"name": "Perifericos"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/admin/categories", admin, map[string]interface{}{"name": "Cabos", "sortOrder": 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	var cabos model.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cabos))

	rec = s.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	_, err := product.Create(context.Background(), s.app.db, model.ProductInput{
		SKU: "MS-1", Name: "Mouse", PriceCents: 4990, CategoryID: perif.ID, Active: true,
	}, "")
	require.NoError(t, err)

	rec = s.do(t, http.MethodDelete, "/api/admin/categories/"+perif.ID, admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/admin/categories/"+cabos.ID, admin, map[string]interface{}{"name": "Cabos e Adaptadores"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cabos-e-adaptadores")

	rec = s.do(t, http.MethodDelete, "/api/admin/categories/"+cabos.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/admin/categories/"+cabos.ID, admin, map[string]interface{}{"name": "X"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRequirePermission(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin")
	support := s.token(t, "support")

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/admin/backups", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/admin/backups", support, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/admin/backups", admin, nil).Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/admin/tickets", support, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/admin/categories", support, map[string]string{"name": "X"}).Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/products", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil).Code)
}

func TestMediaDoesNotServeBackups(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.store.Put(ctx, "products/p1/a.png", "image/png", strings.NewReader("png")))
	require.NoError(t, s.store.Put(ctx, "backups/liontech-20260101-000000.json", "application/json", strings.NewReader("{}")))

	rec := s.do(t, http.MethodGet, "/media/products/p1/a.png", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/media/backups/liontech-20260101-000000.json", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/media/products/", "", nil).Code)
}

func TestConfigRoutes(t *testing.T) {
	config.SetPath(filepath.Join(t.TempDir(), "liontech.yaml"))
	s := newTestServer(t)
	admin := s.token(t, "admin")

	cfg := config.Defaults()
	cfg.StaffPhones = []string{"(11) 99999-0000", "5511999990000", "11 3333-4444"}
	cfg.PixDiscountPercent = 5
	rec := s.do(t, http.MethodPost, "/api/admin/config", admin, cfg)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"5511999990000", "551133334444"}, config.GetConfig().StaffPhones)

	cfg.StaffPhones = []string{"123"}
	rec = s.do(t, http.MethodPost, "/api/admin/config", admin, cfg)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	cfg.StaffPhones = nil
	cfg.PixDiscountPercent = 80
	rec = s.do(t, http.MethodPost, "/api/admin/config", admin, cfg)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/config", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pixDiscountPercent":5`)
}

func TestStorefrontRequestBodies(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	p := dbtest.Product(t, s.app.db, "TEC-01", 15000, 5)
	require.NoError(t, database.SaveCoupon(ctx, s.app.db, &model.Coupon{
		ID: "c1", Code: "LION10", Kind: coupon.KindPercentage, Value: 10, Active: true, StartsAt: time.Now().Add(-time.Hour),
	}))

	rec := s.do(t, http.MethodPost, "/api/cart/items", "", map[string]interface{}{"productId": p.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"quantity":2`)

	rec = s.do(t, http.MethodPost, "/api/cart/items", "", map[string]interface{}{"product_id": p.ID, "quantity": 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = s.do(t, http.MethodPost, "/api/coupons/validate", "", map[string]interface{}{"code": "lion10", "subtotalCents": 30000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"valid":true`)
	assert.Contains(t, rec.Body.String(), `"discountCents":3000`)
}
