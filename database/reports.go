package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"liontech/model"
)

// RevenueStatuses are the order states that count as a sale.
var RevenueStatuses = []string{model.OrderPaid, model.OrderProcessing, model.OrderShipped, model.OrderDelivered}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func GetTopProducts(ctx context.Context, db DBTX, from, to time.Time, limit int) ([]model.TopProduct, error) {
	q := `
		SELECT oi.product_id, oi.name,
			CAST(SUM(oi.quantity) AS BIGINT) AS qty,
			CAST(SUM(oi.line_total_cents) AS BIGINT) AS revenue
		FROM order_items oi JOIN orders o ON o.id = oi.order_id
		WHERE o.created_at >= ? AND o.created_at < ? AND o.status IN (` + placeholders(len(RevenueStatuses)) + `)
		GROUP BY oi.product_id, oi.name
		ORDER BY qty DESC, revenue DESC
		LIMIT ?`
	args := []interface{}{from.UTC(), to.UTC()}
	for _, s := range RevenueStatuses {
		args = append(args, s)
	}
	args = append(args, limit)
	top := []model.TopProduct{}
	if err := db.SelectContext(ctx, &top, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to get top products: %w", err)
	}
	return top, nil
}

func GetOrderStatusCounts(ctx context.Context, db DBTX, from, to time.Time) ([]model.StatusCount, error) {
	const q = `
		SELECT status, COUNT(*) AS cnt FROM orders
		WHERE created_at >= ? AND created_at < ?
		GROUP BY status ORDER BY status`
	counts := []model.StatusCount{}
	if err := db.SelectContext(ctx, &counts, db.Rebind(q), from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get order status counts: %w", err)
	}
	return counts, nil
}

func GetValuationByCategory(ctx context.Context, db DBTX) ([]model.ValuationRow, error) {
	const q = `
		SELECT p.category_id, COALESCE(c.name, '') AS category_name,
			COUNT(*) AS products,
			CAST(COALESCE(SUM(p.stock), 0) AS BIGINT) AS units,
			CAST(COALESCE(SUM(p.stock * p.price_cents), 0) AS BIGINT) AS value_cents
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.active = ?
		GROUP BY p.category_id, c.name
		ORDER BY value_cents DESC`
	rows := []model.ValuationRow{}
	if err := db.SelectContext(ctx, &rows, db.Rebind(q), true); err != nil {
		return nil, fmt.Errorf("failed to get inventory valuation: %w", err)
	}
	return rows, nil
}

// GetStockedProducts returns active products with stock on hand.
func GetStockedProducts(ctx context.Context, db DBTX) ([]model.DeadStockRecord, error) {
	const q = `SELECT id, sku, name, stock, price_cents, created_at FROM products WHERE active = ? AND stock > 0 ORDER BY name`
	rows := []model.DeadStockRecord{}
	if err := db.SelectContext(ctx, &rows, db.Rebind(q), true); err != nil {
		return nil, fmt.Errorf("failed to get stocked products: %w", err)
	}
	return rows, nil
}

// GetRevenueOrders returns the creation time and total of every order in
// [from, to) that counts as a sale.
func GetRevenueOrders(ctx context.Context, db DBTX, from, to time.Time) ([]model.SaleRecord, error) {
	q := `SELECT created_at, total_cents FROM orders
		WHERE created_at >= ? AND created_at < ? AND status IN (` + placeholders(len(RevenueStatuses)) + `)
		ORDER BY created_at`
	args := []interface{}{from.UTC(), to.UTC()}
	for _, s := range RevenueStatuses {
		args = append(args, s)
	}
	sales := []model.SaleRecord{}
	if err := db.SelectContext(ctx, &sales, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to get revenue orders: %w", err)
	}
	return sales, nil
}
