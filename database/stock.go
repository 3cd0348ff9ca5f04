package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"liontech/model"
)

func InsertStockMovement(ctx context.Context, db DBTX, m *model.StockMovement) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	const q = `
		INSERT INTO stock_movements (id, product_id, kind, quantity, previous_stock, new_stock, reason, reference, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, db.Rebind(q), m.ID, m.ProductID, m.Kind, m.Quantity, m.PreviousStock, m.NewStock,
		m.Reason, m.Reference, m.UserID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("InsertStockMovement (Product: %s) failed: %w", m.ProductID, err)
	}
	return nil
}

func GetProductStock(ctx context.Context, db DBTX, productID string) (int, error) {
	var stock int
	if err := db.GetContext(ctx, &stock, db.Rebind(`SELECT stock FROM products WHERE id = ?`), productID); err != nil {
		return 0, fmt.Errorf("failed to get stock of product %s: %w", productID, err)
	}
	return stock, nil
}

func GetStockMovements(ctx context.Context, db DBTX, f model.MovementFilters) ([]model.StockMovementRow, error) {
	q := `
		SELECT m.id, m.product_id, m.kind, m.quantity, m.previous_stock, m.new_stock, m.reason, m.reference,
			m.user_id, m.created_at, COALESCE(p.name, '') AS product_name, COALESCE(p.sku, '') AS sku
		FROM stock_movements m LEFT JOIN products p ON p.id = m.product_id`
	var conds []string
	var args []interface{}
	if f.ProductID != "" {
		conds = append(conds, "m.product_id = ?")
		args = append(args, f.ProductID)
	}
	if f.Kind != "" {
		conds = append(conds, "m.kind = ?")
		args = append(args, f.Kind)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY m.created_at DESC, m.id`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	rows := []model.StockMovementRow{}
	if err := db.SelectContext(ctx, &rows, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to get stock movements: %w", err)
	}
	return rows, nil
}

// GetLastSaleTimes returns the latest sale movement time per product.
// The max is taken in Go: MAX() drops the column type on sqlite.
func GetLastSaleTimes(ctx context.Context, db DBTX) (map[string]time.Time, error) {
	var rows []struct {
		ProductID string    `db:"product_id"`
		CreatedAt time.Time `db:"created_at"`
	}
	const q = `SELECT product_id, created_at FROM stock_movements WHERE kind = ?`
	if err := db.SelectContext(ctx, &rows, db.Rebind(q), model.MovementSale); err != nil {
		return nil, fmt.Errorf("failed to get sale movements: %w", err)
	}
	last := make(map[string]time.Time)
	for _, r := range rows {
		if r.CreatedAt.After(last[r.ProductID]) {
			last[r.ProductID] = r.CreatedAt
		}
	}
	return last, nil
}

// GetUnitsSoldSince sums sale movements per product from since onwards.
func GetUnitsSoldSince(ctx context.Context, db DBTX, since time.Time) (map[string]int, error) {
	var rows []struct {
		ProductID string `db:"product_id"`
		Units     int    `db:"units"`
	}
	const q = `
		SELECT product_id, -SUM(quantity) AS units
		FROM stock_movements
		WHERE kind = ? AND created_at >= ?
		GROUP BY product_id`
	if err := db.SelectContext(ctx, &rows, db.Rebind(q), model.MovementSale, since); err != nil {
		return nil, fmt.Errorf("failed to sum sales since %s: %w", since.Format(time.RFC3339), err)
	}
	sold := make(map[string]int, len(rows))
	for _, r := range rows {
		sold[r.ProductID] = r.Units
	}
	return sold, nil
}
