package reorder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/config"
	"liontech/dbtest"
	"liontech/model"
	"liontech/stock"
)

func TestReorderPoint(t *testing.T) {
	p := DefaultParams(3)
	daily, point := ReorderPoint(30, p)
	assert.Equal(t, 1.0, daily)
	assert.Equal(t, 21, point)

	_, point = ReorderPoint(2, p)
	assert.Equal(t, 4, point, "raised above the low stock threshold")

	_, point = ReorderPoint(0, p)
	assert.Zero(t, point)
}

func TestSuggest(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sell := func(p *model.Product, qty int) *model.StockMovement {
		m, err := stock.RecordMovement(ctx, db, stock.MovementInput{ProductID: p.ID, Kind: model.MovementSale, Quantity: qty})
		require.NoError(t, err)
		return m
	}

	fast := dbtest.Product(t, db, "FAST", 1000, 40)
	sell(fast, 30)
	steady := dbtest.Product(t, db, "STEADY", 1000, 8)
	sell(steady, 3)
	slow := dbtest.Product(t, db, "SLOW", 1000, 3)
	sell(slow, 2)
	dbtest.Product(t, db, "NEVER", 1000, 0)
	old := dbtest.Product(t, db, "OLD", 1000, 50)
	m := sell(old, 45)
	_, err := db.Exec(db.Rebind(`UPDATE stock_movements SET created_at = ? WHERE id = ?`), now.AddDate(0, 0, -60), m.ID)
	require.NoError(t, err)

	rep, err := Suggest(ctx, db, now, DefaultParams(3))
	require.NoError(t, err)
	require.Len(t, rep.Candidates, 2)

	assert.Equal(t, "FAST", rep.Candidates[0].SKU)
	assert.Equal(t, 10, rep.Candidates[0].Stock)
	assert.Equal(t, 30, rep.Candidates[0].Sold)
	assert.Equal(t, 11, rep.Candidates[0].Suggested)

	assert.Equal(t, "SLOW", rep.Candidates[1].SKU)
	assert.Equal(t, 0.07, rep.Candidates[1].DailyAverage)
	assert.Equal(t, 3, rep.Candidates[1].Suggested)
}

func TestHandlers(t *testing.T) {
	db := dbtest.New(t)
	p := dbtest.Product(t, db, "FAST", 1000, 40)
	_, err := stock.RecordMovement(context.Background(), db, stock.MovementInput{ProductID: p.ID, Kind: model.MovementSale, Quantity: 30})
	require.NoError(t, err)
	settings := func() config.Settings { return config.Defaults() }

	rec := httptest.NewRecorder()
	CandidatesHandler(db, settings, zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/api/admin/reports/reorder?cover=14&coefficient=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"coverDays":14`)
	assert.Contains(t, rec.Body.String(), `"reorderPoint":14`)

	rec = httptest.NewRecorder()
	ExportHandler(db, settings, zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/api/admin/reports/reorder/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(rec.Body.String(), "\ufeff")), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "FAST,Produto FAST,,10,30,1.00,21,11", strings.TrimSpace(lines[1]))
}
