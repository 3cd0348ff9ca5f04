package product

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/barcode"
	"liontech/config"
	"liontech/database"
	"liontech/dbtest"
	"liontech/model"
	"liontech/storage"
)

func validEAN13(body string) string {
	return body + strconv.Itoa(barcode.CheckDigit(body))
}

func movements(t *testing.T, db database.DBTX, productID string) []model.StockMovementRow {
	t.Helper()
	rows, err := database.GetStockMovements(context.Background(), db, model.MovementFilters{ProductID: productID})
	require.NoError(t, err)
	return rows
}

func TestNormalize(t *testing.T) {
	good := model.ProductInput{SKU: " nb-01 ", Name: " Notebook ", PriceCents: 350000}
	require.NoError(t, Normalize(&good))
	assert.Equal(t, "NB-01", good.SKU)
	assert.Equal(t, "Notebook", good.Name)

	cases := map[string]model.ProductInput{
		"sku":            {Name: "X", PriceCents: 100},
		"name":           {SKU: "X", PriceCents: 100},
		"priceCents":     {SKU: "X", Name: "X"},
		"compareAtCents": {SKU: "X", Name: "X", PriceCents: 100, CompareAtCents: 100},
		"stock":          {SKU: "X", Name: "X", PriceCents: 100, Stock: -1},
		"barcode":        {SKU: "X", Name: "X", PriceCents: 100, Barcode: "7891234567890"},
	}
	for field, in := range cases {
		err := Normalize(&in)
		var inErr *InputError
		require.ErrorAs(t, err, &inErr, field)
		assert.Equal(t, field, inErr.Field)
	}

	withBarcode := model.ProductInput{SKU: "X", Name: "X", PriceCents: 100, CompareAtCents: 150, Barcode: validEAN13("789100031550")}
	assert.NoError(t, Normalize(&withBarcode))
}

func TestCreateRecordsInitialStock(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	p, err := Create(ctx, db, model.ProductInput{SKU: "mouse-1", Name: "Mouse Óptico", PriceCents: 4990, Stock: 7, Active: true}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "mouse-optico", p.Slug)
	assert.Equal(t, 7, p.Stock)

	moves := movements(t, db, p.ID)
	require.Len(t, moves, 1)
	assert.Equal(t, model.MovementIn, moves[0].Kind)
	assert.Equal(t, 7, moves[0].Quantity)
	assert.Equal(t, "u1", moves[0].UserID)

	_, err = Create(ctx, db, model.ProductInput{SKU: "MOUSE-1", Name: "Outro", PriceCents: 100}, "")
	assert.ErrorIs(t, err, ErrDuplicate)

	// Same name, different SKU: the slug gets the SKU appended.
	q, err := Create(ctx, db, model.ProductInput{SKU: "mouse-2", Name: "Mouse Óptico", PriceCents: 5990}, "")
	require.NoError(t, err)
	assert.Equal(t, "mouse-optico-mouse-2", q.Slug)
	assert.Empty(t, movements(t, db, q.ID))

	_, err = Create(ctx, db, model.ProductInput{SKU: "x", Name: "X", PriceCents: 100, CategoryID: "missing"}, "")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestUpdateKeepsStock(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	p := dbtest.Product(t, db, "SSD", 29900, 4)

	row, err := Update(ctx, db, p.ID, model.ProductInput{SKU: "SSD", Name: "SSD NVMe 1TB", PriceCents: 27900, Stock: 99, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "ssd-nvme-1tb", row.Slug)
	assert.Equal(t, int64(27900), row.PriceCents)
	assert.Equal(t, 4, row.Stock)

	_, err = Update(ctx, db, "missing", model.ProductInput{SKU: "A", Name: "A", PriceCents: 1})
	assert.True(t, database.IsNotFound(err))
}

func TestDeleteIsSoftWhenOrdered(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	sold := dbtest.Product(t, db, "SOLD", 1000, 1)
	unsold := dbtest.Product(t, db, "NEW", 1000, 1)

	_, err := db.Exec(db.Rebind(`INSERT INTO order_items (id, order_id, product_id, sku, name, unit_price_cents, quantity, line_total_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`), "oi1", "o1", sold.ID, sold.SKU, sold.Name, 1000, 1, 1000)
	require.NoError(t, err)

	_, hard, err := Delete(ctx, db, sold.ID)
	require.NoError(t, err)
	assert.False(t, hard)
	row, err := database.GetProductByID(ctx, db, sold.ID)
	require.NoError(t, err)
	assert.False(t, row.Active)

	_, hard, err = Delete(ctx, db, unsold.ID)
	require.NoError(t, err)
	assert.True(t, hard)
	_, err = database.GetProductByID(ctx, db, unsold.ID)
	assert.True(t, database.IsNotFound(err))

	_, _, err = Delete(ctx, db, unsold.ID)
	assert.True(t, database.IsNotFound(err))
}

func TestImportCSV(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	log := zap.NewNop()

	ean := validEAN13("789100031550")
	file := "sku,name,category,price,stock,barcode\n" +
		"CB-01,Cabo HDMI,Cabos,\"29,90\",10," + ean + "\n" +
		"CB-02,Cabo USB,Cabos,19.90,,\n" +
		"CB-03,Cabo Ruim,Cabos,9.90,1,1234567890123\n" +
		"CB-04,Sem preço,Cabos,,1,\n"
	res, err := ImportCSV(ctx, db, strings.NewReader(file), "", "u1", log)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.StockMoves)
	require.Len(t, res.RowErrors, 2)

	hdmi, err := database.GetProductBySKU(ctx, db, "CB-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2990), hdmi.PriceCents)
	assert.Equal(t, 10, hdmi.Stock)
	assert.Equal(t, "Cabos", hdmi.CategoryName)
	assert.Equal(t, ean, hdmi.Barcode)

	// Re-import: price and stock change, the missing stock column leaves
	// CB-02 alone.
	res, err = ImportCSV(ctx, db, strings.NewReader("sku,name,category,price,stock\nCB-01,Cabo HDMI,Cabos,24.90,6\nCB-02,Cabo USB,Cabos,19.90,\n"), "utf-8", "u1", log)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.StockMoves)
	hdmi, err = database.GetProductBySKU(ctx, db, "CB-01")
	require.NoError(t, err)
	assert.Equal(t, 6, hdmi.Stock)
	moves := movements(t, db, hdmi.ID)
	require.Len(t, moves, 2)
	assert.Equal(t, model.MovementAdjustment, moves[0].Kind)
	assert.Equal(t, -4, moves[0].Quantity)

	categories, err := database.GetAllCategories(ctx, db)
	require.NoError(t, err)
	assert.Len(t, categories, 1)
}

func TestImportCSVLatin1(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	// "Acessórios" in ISO-8859-1.
	file := []byte("sku;name;category;price\nAC-1;Suporte;Acess\xf3rios;49,90\n")
	res, err := ImportCSV(ctx, db, bytes.NewReader(file), "latin1", "", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	c, err := database.GetCategoryBySlug(ctx, db, "acessorios")
	require.NoError(t, err)
	assert.Equal(t, "Acessórios", c.Name)

	_, err = ImportCSV(ctx, db, bytes.NewReader(file), "ebcdic", "", zap.NewNop())
	assert.Error(t, err)
}

func newRouter(t *testing.T) (*mux.Router, *storage.LocalStore) {
	db := dbtest.New(t)
	log := zap.NewNop()
	store, err := storage.NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)
	settings := func() config.Settings { return config.Defaults() }
	r := mux.NewRouter()
	r.HandleFunc("/api/products", ListHandler(db, settings, store.URL, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{slug}", GetBySlugHandler(db, settings, store.URL, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/products", AdminListHandler(db, settings, store.URL, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/products", CreateHandler(db, settings, store.URL, log)).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/products/export", ExportHandler(db, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/products/{id}", AdminGetHandler(db, settings, store.URL, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/products/{id}", UpdateHandler(db, settings, store.URL, log)).Methods(http.MethodPut)
	r.HandleFunc("/api/admin/products/{id}", DeleteHandler(db, store, log)).Methods(http.MethodDelete)
	r.HandleFunc("/api/admin/products/{id}/image", UploadImageHandler(db, store, settings, store.URL, log)).Methods(http.MethodPost)
	return r, store
}

func call(r *mux.Router, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	return httptest.NewRequest(method, path, strings.NewReader(body))
}

func TestProductHandlers(t *testing.T) {
	r, _ := newRouter(t)

	rec := call(r, jsonRequest(http.MethodPost, "/api/admin/products",
		`{"sku":"kb-1","name":"Teclado Mecânico","priceCents":123456,"compareAtCents":150000,"stock":2,"active":true,"featured":true}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.ProductView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "R$ 1.234,56", created.Price)
	assert.Equal(t, "R$ 1.500,00", created.CompareAtPrice)
	assert.True(t, created.InStock)
	assert.True(t, created.LowStock)

	rec = call(r, jsonRequest(http.MethodPost, "/api/admin/products", `{"sku":"kb-2","name":"Teclado","priceCents":0}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"priceCents"`)

	rec = call(r, jsonRequest(http.MethodPost, "/api/admin/products", `{"sku":"hidden","name":"Oculto","priceCents":100}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = call(r, jsonRequest(http.MethodGet, "/api/products?featured=true&per_page=500", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items   []model.ProductView `json:"items"`
		Total   int                 `json:"total"`
		PerPage int                 `json:"perPage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 48, page.PerPage)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "KB-1", page.Items[0].SKU)

	rec = call(r, jsonRequest(http.MethodGet, "/api/products/teclado-mecanico", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = call(r, jsonRequest(http.MethodGet, "/api/products/oculto", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(r, jsonRequest(http.MethodGet, "/api/admin/products", ""))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)

	rec = call(r, jsonRequest(http.MethodGet, "/api/admin/products/export", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "\xEF\xBB\xBF"))
	assert.Contains(t, body, "KB-1,Teclado Mecânico,,1234.56,2,,,1")

	rec = call(r, jsonRequest(http.MethodDelete, "/api/admin/products/"+created.ID, ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(r, jsonRequest(http.MethodGet, "/api/admin/products/"+created.ID, ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func imageRequest(t *testing.T, path string, data []byte) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "foto.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadImage(t *testing.T) {
	r, store := newRouter(t)
	rec := call(r, jsonRequest(http.MethodPost, "/api/admin/products", `{"sku":"cam","name":"Câmera","priceCents":9900,"active":true}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	var p model.ProductView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	rec = call(r, imageRequest(t, "/api/admin/products/"+p.ID+"/image", png))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first model.ProductView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.True(t, strings.HasPrefix(first.ImageURL, "/media/products/"+p.ID+"/"))
	assert.True(t, strings.HasSuffix(first.ImageKey, ".png"))

	rec = call(r, imageRequest(t, "/api/admin/products/"+p.ID+"/image", png))
	require.Equal(t, http.StatusOK, rec.Code)
	objects, err := store.List(context.Background(), "products/")
	require.NoError(t, err)
	require.Len(t, objects, 1, "previous image is deleted")
	assert.NotEqual(t, first.ImageKey, objects[0].Key)

	rec = call(r, imageRequest(t, "/api/admin/products/"+p.ID+"/image", []byte("GIF89a not allowed")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = call(r, imageRequest(t, "/api/admin/products/missing/image", png))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
