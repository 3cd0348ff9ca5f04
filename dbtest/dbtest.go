// Package dbtest opens throwaway databases with the full schema for
// tests.
package dbtest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"liontech/database"
	"liontech/loader"
	"liontech/model"
)

// New returns a migrated sqlite database in the test's temp dir.
func New(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, loader.InitDatabase(context.Background(), db, nil))
	return db
}

// Product inserts an active product and sets its stock directly, without
// a movement row.
func Product(t testing.TB, db *sqlx.DB, sku string, priceCents int64, stock int) *model.Product {
	t.Helper()
	ctx := context.Background()
	p := &model.Product{
		ID:         uuid.NewString(),
		SKU:        sku,
		Name:       "Produto " + sku,
		Slug:       "produto-" + strings.ToLower(sku),
		PriceCents: priceCents,
		Active:     true,
	}
	require.NoError(t, database.InsertProduct(ctx, db, p))
	if stock > 0 {
		ok, err := database.CompareAndSetStock(ctx, db, p.ID, 0, stock)
		require.NoError(t, err)
		require.True(t, ok)
		p.Stock = stock
	}
	return p
}
