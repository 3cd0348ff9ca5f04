package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/dbtest"
	"liontech/storage"
)

func roundTrip(t *testing.T, doc *Document) *Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	out, err := Decode(&buf)
	require.NoError(t, err)
	return out
}

func TestExportRestore(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	p := dbtest.Product(t, db, "KB-01", 15990, 4)

	doc, err := Export(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, Version, doc.Version)
	require.Len(t, doc.Tables["products"], 1)
	for _, table := range Tables {
		assert.Contains(t, doc.Tables, table)
	}
	saved := roundTrip(t, doc)

	dbtest.Product(t, db, "KB-02", 100, 1)
	require.NoError(t, database.DeactivateProduct(ctx, db, p.ID))

	require.NoError(t, Restore(ctx, db, saved))

	_, err = database.GetProductBySKU(ctx, db, "KB-02")
	assert.True(t, database.IsNotFound(err))
	got, err := database.GetProductBySKU(ctx, db, "KB-01")
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, 4, got.Stock)
	assert.Equal(t, int64(15990), got.PriceCents)
	assert.WithinDuration(t, p.CreatedAt, got.CreatedAt, time.Second)
}

func TestRestoreRejectsUnknownShape(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	dbtest.Product(t, db, "KB-01", 100, 1)

	err := Restore(ctx, db, &Document{Version: 2})
	assert.ErrorIs(t, err, ErrVersion)

	err = Restore(ctx, db, &Document{Version: Version, Tables: map[string][]map[string]interface{}{
		"sessions": {{"id": "x"}},
	}})
	assert.ErrorIs(t, err, ErrUnknownTable)

	err = Restore(ctx, db, &Document{Version: Version, Tables: map[string][]map[string]interface{}{
		"products": {{"id": "x", "colour": "red"}},
	}})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	// nothing was cleared
	_, err = database.GetProductBySKU(ctx, db, "KB-01")
	assert.NoError(t, err)
}

func TestRestoreValue(t *testing.T) {
	assert.Equal(t, int64(42), restoreValue("stock", json.Number("42")))
	assert.Equal(t, 1.5, restoreValue("x", json.Number("1.5")))
	assert.Equal(t, "09:00", restoreValue("opens_at", "09:00"))
	ts := restoreValue("created_at", "2026-03-01T12:00:00Z")
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), ts)
	assert.Equal(t, "2026-03-01T12:00:00Z", restoreValue("name", "2026-03-01T12:00:00Z"))
	assert.Nil(t, restoreValue("paid_at", nil))
}

func newRunner(t *testing.T) *Runner {
	t.Helper()
	db := dbtest.New(t)
	store, err := storage.NewLocalStore(t.TempDir(), "/media/")
	require.NoError(t, err)
	r := NewRunner(db, store, zap.NewNop())
	clock := &stepClock{now: time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)}
	r.now = clock.Now
	return r
}

// stepClock advances a second per call so every backup gets its own key.
type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func TestRunnerCreateListPrune(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)

	var keys []string
	for i := 0; i < 3; i++ {
		info, err := r.Create(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, info.SizeHuman)
		keys = append(keys, info.Key)
	}
	assert.Regexp(t, `^backups/liontech-20260510-080001\.000-[0-9a-f]{8}\.json$`, keys[0])

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, keys[2], list[0].Key)

	deleted, err := r.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{keys[0]}, deleted)

	deleted, err = r.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	list, err = r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRunnerSameInstantKeepsBothBackups(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	at := time.Date(2026, 5, 10, 8, 0, 0, 250*int(time.Millisecond), time.UTC)
	r.now = func() time.Time { return at }

	first, err := r.Create(ctx)
	require.NoError(t, err)
	second, err := r.Create(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Key, second.Key)
	assert.True(t, first.CreatedAt.Equal(at))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, b := range list {
		assert.True(t, b.CreatedAt.Equal(at), b.Key)
	}
}

func TestRunnerListsSecondPrecisionKeys(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	require.NoError(t, r.store.Put(ctx, "backups/liontech-20250101-120000.json", "application/json", strings.NewReader("{}")))
	_, err := r.Create(ctx)
	require.NoError(t, err)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	last := list[1]
	assert.Equal(t, "backups/liontech-20250101-120000.json", last.Key)
	assert.True(t, last.CreatedAt.Equal(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)))
}

func TestRunnerRejectsForeignKeys(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	for _, key := range []string{"products/a.png", "backups/../x.json", "backups/a.txt", ""} {
		_, err := r.Open(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
	assert.ErrorIs(t, r.Delete(ctx, "backups/missing.json"), storage.ErrNotFound)
}

func TestHandlers(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	dbtest.Product(t, r.db, "KB-01", 100, 2)
	log := zap.NewNop()

	rec := httptest.NewRecorder()
	CreateHandler(r, func() int { return 5 }, log)(rec, httptest.NewRequest(http.MethodPost, "/api/admin/backups", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var info Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))

	rec = httptest.NewRecorder()
	DownloadHandler(r, log)(rec, httptest.NewRequest(http.MethodGet, "/api/admin/backups/download?key="+info.Key, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "liontech-")
	file := rec.Body.Bytes()

	dbtest.Product(t, r.db, "KB-02", 100, 2)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "backup.json")
	require.NoError(t, err)
	_, err = fw.Write(file)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/admin/backups/restore", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	RestoreHandler(r, log)(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, err = database.GetProductBySKU(ctx, r.db, "KB-02")
	assert.True(t, database.IsNotFound(err))

	req = httptest.NewRequest(http.MethodPost, "/api/admin/backups/restore", strings.NewReader(`{"key":"backups/nope.json"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	RestoreHandler(r, log)(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/backups/restore", strings.NewReader(`{"key":"`+info.Key+`"}`))
	rec = httptest.NewRecorder()
	RestoreHandler(r, log)(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	DeleteHandler(r, log)(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/backups?key=../secret.json", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	DeleteHandler(r, log)(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/backups?key="+info.Key, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	ListHandler(r, log)(rec, httptest.NewRequest(http.MethodGet, "/api/admin/backups", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
