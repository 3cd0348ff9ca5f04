package cart

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/checkout"
	"liontech/config"
	"liontech/coupon"
	"liontech/database"
	"liontech/dbtest"
	"liontech/model"
)

type client struct {
	t      *testing.T
	router *mux.Router
	cookie *http.Cookie
}

func newClient(t *testing.T, db *sqlx.DB) *client {
	settings := func() config.Settings {
		s := config.Defaults()
		s.ShippingFeeCents = 1500
		s.FreeShippingThresholdCents = 20000
		s.PixDiscountPercent = 10
		return s
	}
	log := zap.NewNop()
	r := mux.NewRouter()
	r.HandleFunc("/api/cart", GetHandler(db, settings, func(k string) string { return "/media/" + k }, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/cart", ClearHandler(db, log)).Methods(http.MethodDelete)
	r.HandleFunc("/api/cart/items", AddItemHandler(db, log)).Methods(http.MethodPost)
	r.HandleFunc("/api/cart/items/{product_id}", UpdateItemHandler(db, log)).Methods(http.MethodPut)
	r.HandleFunc("/api/cart/items/{product_id}", RemoveItemHandler(db, log)).Methods(http.MethodDelete)
	return &client{t: t, router: r}
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == checkout.CartCookie {
			c.cookie = ck
		}
	}
	return rec
}

func (c *client) view(query string) cartView {
	rec := c.do(http.MethodGet, "/api/cart"+query, "")
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	var v cartView
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCartLifecycle(t *testing.T) {
	db := dbtest.New(t)
	ssd := dbtest.Product(t, db, "SSD", 35000, 3)
	cable := dbtest.Product(t, db, "CABO", 2000, 50)
	c := newClient(t, db)

	v := c.view("")
	assert.Empty(t, v.Lines)
	assert.Zero(t, v.Totals.TotalCents)
	assert.Nil(t, c.cookie, "reading never creates a cart")

	rec := c.do(http.MethodPost, "/api/cart/items", `{"productId":"`+cable.ID+`","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, c.cookie)
	assert.True(t, c.cookie.HttpOnly)
	assert.Equal(t, 30*24*3600, c.cookie.MaxAge)

	rec = c.do(http.MethodPost, "/api/cart/items", `{"productId":"`+cable.ID+`","quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"productId":"`+cable.ID+`","quantity":5}`, rec.Body.String())

	v = c.view("")
	require.Len(t, v.Lines, 1)
	assert.Equal(t, int64(10000), v.Totals.SubtotalCents)
	assert.Equal(t, int64(1500), v.Totals.ShippingCents)
	assert.Equal(t, "R$ 100,00", v.Lines[0].LineTotal)

	rec = c.do(http.MethodPost, "/api/cart/items", `{"productId":"`+ssd.ID+`","quantity":4}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "disponível 3")

	rec = c.do(http.MethodPut, "/api/cart/items/"+ssd.ID, `{"quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	v = c.view("?payment=pix")
	assert.Equal(t, int64(45000), v.Totals.SubtotalCents)
	assert.Equal(t, int64(4500), v.Totals.PixDiscountCents)
	assert.Zero(t, v.Totals.ShippingCents)

	rec = c.do(http.MethodPut, "/api/cart/items/"+cable.ID, `{"quantity":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPut, "/api/cart/items/"+cable.ID, `{"quantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, c.view("").Lines, 1)

	rec = c.do(http.MethodDelete, "/api/cart/items/"+ssd.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, c.view("").Lines)

	c.do(http.MethodPost, "/api/cart/items", `{"productId":"`+cable.ID+`"}`)
	assert.Len(t, c.view("").Lines, 1)
	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/cart", "").Code)
	assert.Empty(t, c.view("").Lines)
}

func TestCartRejectsUnknownAndInactiveProducts(t *testing.T) {
	db := dbtest.New(t)
	p := dbtest.Product(t, db, "OLD", 1000, 5)
	require.NoError(t, database.DeactivateProduct(t.Context(), db, p.ID))
	c := newClient(t, db)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/api/cart/items", `{"productId":"`+uuid.NewString()+`"}`).Code)
	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/api/cart/items", `{"productId":"`+p.ID+`"}`).Code)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/api/cart/items", `{"quantity":1}`).Code)
}

func TestCartQuoteWithCoupon(t *testing.T) {
	db := dbtest.New(t)
	p := dbtest.Product(t, db, "GPU", 250000, 2)
	cp := model.Coupon{ID: uuid.NewString(), Code: "GAMER", Kind: coupon.KindFixed, Value: 10000, MinOrderCents: 300000,
		Active: true, StartsAt: time.Now().Add(-time.Hour)}
	require.NoError(t, database.SaveCoupon(t.Context(), db, &cp))
	c := newClient(t, db)

	c.do(http.MethodPost, "/api/cart/items", `{"productId":"`+p.ID+`","quantity":1}`)
	v := c.view("?coupon=gamer")
	assert.Zero(t, v.Totals.DiscountCents)
	assert.NotEmpty(t, v.CouponMessage)

	c.do(http.MethodPut, "/api/cart/items/"+p.ID, `{"quantity":2}`)
	v = c.view("?coupon=gamer&delivery=pickup")
	assert.Empty(t, v.CouponMessage)
	assert.Equal(t, int64(10000), v.Totals.DiscountCents)
	assert.Equal(t, int64(490000), v.Totals.TotalCents)
	assert.Equal(t, "GAMER", v.Totals.CouponCode)
}
