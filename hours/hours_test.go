package hours

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/dbtest"
	"liontech/loader"
	"liontech/model"
)

var saoPaulo = time.FixedZone("BRT", -3*3600)

func at(day, hh, mm int) time.Time {
	// 2026-03-01 is a Sunday.
	return time.Date(2026, 3, day, hh, mm, 0, 0, saoPaulo)
}

func TestIsOpen(t *testing.T) {
	week := loader.DefaultBusinessHours()
	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"sunday", at(1, 10, 0), false},
		{"monday opening", at(2, 9, 0), true},
		{"monday before", at(2, 8, 59), false},
		{"monday closing is exclusive", at(2, 18, 0), false},
		{"saturday morning", at(7, 12, 59), true},
		{"saturday afternoon", at(7, 13, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOpen(week, tt.t))
		})
	}
}

func TestNextOpening(t *testing.T) {
	week := loader.DefaultBusinessHours()

	next, ok := NextOpening(week, at(7, 14, 0))
	require.True(t, ok)
	assert.Equal(t, at(9, 9, 0), next, "saturday afternoon opens monday")

	next, ok = NextOpening(week, at(2, 7, 30))
	require.True(t, ok)
	assert.Equal(t, at(2, 9, 0), next)

	next, ok = NextOpening(week, at(2, 9, 0))
	require.True(t, ok)
	assert.Equal(t, at(3, 9, 0), next, "strictly after t")

	closed := make([]model.BusinessHour, 7)
	for i := range closed {
		closed[i] = model.BusinessHour{Weekday: i, Closed: true}
	}
	_, ok = NextOpening(closed, at(2, 9, 0))
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	week := loader.DefaultBusinessHours()
	reversed := make([]model.BusinessHour, 7)
	for i, h := range week {
		reversed[6-i] = h
	}
	out, err := Normalize(reversed)
	require.NoError(t, err)
	assert.Equal(t, 0, out[0].Weekday)

	bad := append([]model.BusinessHour(nil), week...)
	bad[1].ClosesAt = "08:00"
	_, err = Normalize(bad)
	assert.ErrorIs(t, err, ErrInvalid)

	bad = append([]model.BusinessHour(nil), week...)
	bad[1].OpensAt = "9h"
	_, err = Normalize(bad)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Normalize(week[:6])
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdateHandler(t *testing.T) {
	db := dbtest.New(t)
	body := `[
		{"weekday":0,"closed":true},
		{"weekday":1,"opensAt":"08:00","closesAt":"17:00"},
		{"weekday":2,"opensAt":"08:00","closesAt":"17:00"},
		{"weekday":3,"opensAt":"08:00","closesAt":"17:00"},
		{"weekday":4,"opensAt":"08:00","closesAt":"17:00"},
		{"weekday":5,"opensAt":"08:00","closesAt":"17:00"},
		{"weekday":6,"closed":true}
	]`
	rec := httptest.NewRecorder()
	UpdateHandler(db, zap.NewNop())(rec, httptest.NewRequest(http.MethodPut, "/api/admin/hours", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	hours, err := database.GetBusinessHours(t.Context(), db)
	require.NoError(t, err)
	require.Len(t, hours, 7)
	assert.Equal(t, "08:00", hours[1].OpensAt)
	assert.True(t, hours[6].Closed)

	rec = httptest.NewRecorder()
	UpdateHandler(db, zap.NewNop())(rec, httptest.NewRequest(http.MethodPut, "/api/admin/hours", bytes.NewBufferString(`[]`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
