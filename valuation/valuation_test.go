package valuation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/dbtest"
	"liontech/model"
)

func TestBuild(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	require.NoError(t, database.CreateCategory(ctx, db, &model.Category{ID: "c1", Name: "Periféricos", Slug: "perifericos"}))

	mouse := dbtest.Product(t, db, "MOUSE", 5000, 3)
	dbtest.Product(t, db, "CABO", 1250, 4)
	off := dbtest.Product(t, db, "OFF", 9999, 10)
	_, err := db.Exec(db.Rebind(`UPDATE products SET category_id = ? WHERE id = ?`), "c1", mouse.ID)
	require.NoError(t, err)
	require.NoError(t, database.DeactivateProduct(ctx, db, off.ID))

	rep, err := Build(ctx, db)
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "Periféricos", rep.Rows[0].CategoryName)
	assert.Equal(t, int64(15000), rep.Rows[0].ValueCents)
	assert.Equal(t, "R$ 150,00", rep.Rows[0].Value)
	assert.Equal(t, uncategorized, rep.Rows[1].CategoryName)
	assert.Equal(t, 7, rep.Units)
	assert.Equal(t, "R$ 200,00", rep.Total)

	rec := httptest.NewRecorder()
	ExportValuationCSVHandler(db, zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/api/admin/reports/valuation.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Periféricos,1,3,150.00\n")
	assert.Contains(t, rec.Body.String(), "Total,,7,200.00\n")
}
