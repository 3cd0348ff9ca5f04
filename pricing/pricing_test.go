package pricing

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/dbtest"
	"liontech/model"
)

func TestAdjustedPrice(t *testing.T) {
	cases := []struct {
		cents   int64
		percent float64
		want    int64
	}{
		{10000, 10, 11000},
		{999, 10, 1099},   // 1098.9
		{995, -10, 896},   // 895.5 rounds up
		{1, -50, 1},       // never below one cent
		{1999, 2.5, 2049}, // 2048.975
		{5, -99.99, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AdjustedPrice(c.cents, c.percent), "%d %v", c.cents, c.percent)
	}
}

func TestAdjust(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	require.NoError(t, database.CreateCategory(ctx, db, &model.Category{ID: "c1", Name: "Cabos", Slug: "cabos"}))
	cable := dbtest.Product(t, db, "CABO", 1000, 1)
	mouse := dbtest.Product(t, db, "MOUSE", 5000, 1)
	_, err := db.Exec(db.Rebind(`UPDATE products SET category_id = ?, compare_at_cents = ? WHERE id = ?`), "c1", 1050, cable.ID)
	require.NoError(t, err)

	_, err = Adjust(ctx, db, "", 0, false)
	assert.ErrorIs(t, err, ErrInvalidPercent)
	_, err = Adjust(ctx, db, "", -100, false)
	assert.ErrorIs(t, err, ErrInvalidPercent)

	changes, err := Adjust(ctx, db, "c1", 10, true)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, int64(1100), changes[0].NewCents)
	p, err := database.GetProductByID(ctx, db, cable.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), p.PriceCents, "preview writes nothing")

	changes, err = Adjust(ctx, db, "c1", 10, false)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	p, err = database.GetProductByID(ctx, db, cable.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), p.PriceCents)
	assert.Equal(t, int64(0), p.CompareAtCents, "compare-at below the new price is dropped")

	p, err = database.GetProductByID(ctx, db, mouse.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), p.PriceCents)
}

func upload(t *testing.T, h http.HandlerFunc, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "precos.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/admin/pricing/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestPriceListRoundTrip(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	log := zap.NewNop()
	dbtest.Product(t, db, "CABO", 1000, 1)
	dbtest.Product(t, db, "MOUSE", 5000, 1)

	rec := httptest.NewRecorder()
	ExportHandler(db, log)(rec, httptest.NewRequest(http.MethodGet, "/api/admin/pricing/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CABO,Produto CABO,,10.00\n")

	rec = upload(t, ImportHandler(db, log), "sku,price\nCABO,12.50\nMOUSE,abc\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	p, err := database.GetProductBySKU(ctx, db, "CABO")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), p.PriceCents)

	rec = upload(t, ImportHandler(db, log), "sku;price\ncabo;\"12,50\"\nMOUSE;50,00\nNOPE;1,00\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.Contains(rec.Body.String(), `"unknownSkus":["NOPE"]`))
	assert.Contains(t, rec.Body.String(), "1 preços atualizados.")
	p, err = database.GetProductBySKU(ctx, db, "CABO")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), p.PriceCents)
}
