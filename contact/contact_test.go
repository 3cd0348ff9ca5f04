package contact

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/dbtest"
	"liontech/httpx"
	"liontech/model"
)

func TestSubmitHandler(t *testing.T) {
	db := dbtest.New(t)
	limiter := httpx.NewRateLimiter(3, time.Minute)
	h := limiter.Middleware(SubmitHandler(db, nil, nil, zap.NewNop()))

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", bytes.NewBufferString(body))
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, post(`{"name":"Ana","email":"nope","message":"oi"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"name":"Ana","email":"ana@example.com"}`).Code)
	rec := post(`{"name":"Ana","email":"Ana@Example.com","phone":"11 98765-4321","message":"Quero um orçamento"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusTooManyRequests, post(`{"name":"Ana","email":"ana@example.com","message":"de novo"}`).Code)

	msgs, err := database.GetContactMessages(t.Context(), db, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ana@example.com", msgs[0].Email)
	assert.Equal(t, "Contato pelo site", msgs[0].Subject)
}

func TestMarkReadHandler(t *testing.T) {
	db := dbtest.New(t)
	m := model.ContactMessage{ID: "c1", Name: "Ana", Email: "ana@example.com", Subject: "Oi", Message: "Teste"}
	require.NoError(t, database.InsertContactMessage(t.Context(), db, &m))

	r := mux.NewRouter()
	r.HandleFunc("/api/admin/contacts", ListHandler(db, zap.NewNop()))
	r.HandleFunc("/api/admin/contacts/{id}", MarkReadHandler(db, zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/admin/contacts/c1", bytes.NewBufferString(`{"read":true}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/admin/contacts/zz", bytes.NewBufferString(`{"read":true}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/contacts?unread=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []model.ContactMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.Empty(t, msgs)
}
