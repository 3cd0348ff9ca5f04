package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"liontech/model"
)

const orderColumns = `id, number, access_token, customer_id, customer_name, customer_email, customer_phone,
	customer_document, delivery_method, ship_zip, ship_street, ship_number, ship_complement, ship_district,
	ship_city, ship_state, subtotal_cents, discount_cents, pix_discount_cents, shipping_cents, total_cents,
	coupon_code, payment_method, installments, payment_id, payment_status, pix_qr_code, pix_qr_code_base64,
	payment_url, status, tracking_code, notes, restocked, paid_at, created_at, updated_at`

func InsertOrderInTx(ctx context.Context, tx *sqlx.Tx, o *model.Order) error {
	t := now()
	o.CreatedAt = t
	o.UpdatedAt = t
	const q = `INSERT INTO orders (` + orderColumns + `) VALUES (
		:id, :number, :access_token, :customer_id, :customer_name, :customer_email, :customer_phone,
		:customer_document, :delivery_method, :ship_zip, :ship_street, :ship_number, :ship_complement, :ship_district,
		:ship_city, :ship_state, :subtotal_cents, :discount_cents, :pix_discount_cents, :shipping_cents, :total_cents,
		:coupon_code, :payment_method, :installments, :payment_id, :payment_status, :pix_qr_code, :pix_qr_code_base64,
		:payment_url, :status, :tracking_code, :notes, :restocked, :paid_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, q, o); err != nil {
		return fmt.Errorf("InsertOrderInTx (Number: %s) failed: %w", o.Number, err)
	}
	return nil
}

func InsertOrderItemInTx(ctx context.Context, tx *sqlx.Tx, it model.OrderItem) error {
	const q = `
		INSERT INTO order_items (id, order_id, product_id, sku, name, unit_price_cents, quantity, line_total_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, tx.Rebind(q), it.ID, it.OrderID, it.ProductID, it.SKU, it.Name,
		it.UnitPriceCents, it.Quantity, it.LineTotalCents)
	if err != nil {
		return fmt.Errorf("InsertOrderItemInTx (Order: %s, SKU: %s) failed: %w", it.OrderID, it.SKU, err)
	}
	return nil
}

func GetOrderByID(ctx context.Context, db DBTX, id string) (*model.Order, error) {
	var o model.Order
	if err := db.GetContext(ctx, &o, db.Rebind(`SELECT `+orderColumns+` FROM orders WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return &o, nil
}

func GetOrderItems(ctx context.Context, db DBTX, orderID string) ([]model.OrderItem, error) {
	items := []model.OrderItem{}
	const q = `SELECT id, order_id, product_id, sku, name, unit_price_cents, quantity, line_total_cents
		FROM order_items WHERE order_id = ? ORDER BY name, id`
	if err := db.SelectContext(ctx, &items, db.Rebind(q), orderID); err != nil {
		return nil, fmt.Errorf("failed to get items of order %s: %w", orderID, err)
	}
	return items, nil
}

func GetOrderDetail(ctx context.Context, db DBTX, id string) (*model.OrderDetail, error) {
	o, err := GetOrderByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	items, err := GetOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return &model.OrderDetail{Order: *o, Items: items}, nil
}

func GetFilteredOrders(ctx context.Context, db DBTX, f model.OrderFilters) ([]model.Order, error) {
	where, args := orderWhere(f)
	q := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	orders := []model.Order{}
	if err := db.SelectContext(ctx, &orders, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to get filtered orders: %w", err)
	}
	return orders, nil
}

func CountFilteredOrders(ctx context.Context, db DBTX, f model.OrderFilters) (int, error) {
	where, args := orderWhere(f)
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM orders`+where), args...); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

func orderWhere(f model.OrderFilters) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		conds = append(conds, `(LOWER(number) LIKE ? ESCAPE '\' OR LOWER(customer_name) LIKE ? ESCAPE '\' OR LOWER(customer_email) LIKE ? ESCAPE '\')`)
		p := likePattern(q)
		args = append(args, p, p, p)
	}
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, f.To.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// UpdateOrderStatus moves the order from one status to another. It reports
// false when the order was no longer in the expected status.
func UpdateOrderStatus(ctx context.Context, db DBTX, id, from, to string) (bool, error) {
	t := now()
	q := `UPDATE orders SET status = ?, updated_at = ?`
	args := []interface{}{to, t}
	if to == model.OrderPaid {
		q += `, paid_at = ?`
		args = append(args, t)
	}
	q += ` WHERE id = ? AND status = ?`
	args = append(args, id, from)
	res, err := db.ExecContext(ctx, db.Rebind(q), args...)
	if err != nil {
		return false, fmt.Errorf("failed to update status of order %s: %w", id, err)
	}
	return rowsAffected(res) == 1, nil
}

func UpdateOrderTracking(ctx context.Context, db DBTX, id, trackingCode string) error {
	_, err := db.ExecContext(ctx, db.Rebind(`UPDATE orders SET tracking_code = ?, updated_at = ? WHERE id = ?`), trackingCode, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update tracking of order %s: %w", id, err)
	}
	return nil
}

func AppendOrderNote(ctx context.Context, db DBTX, id, note string) error {
	const q = `UPDATE orders SET notes = CASE WHEN notes = '' THEN ? ELSE notes || ? END, updated_at = ? WHERE id = ?`
	if _, err := db.ExecContext(ctx, db.Rebind(q), note, "\n"+note, now(), id); err != nil {
		return fmt.Errorf("failed to append note to order %s: %w", id, err)
	}
	return nil
}

// PaymentUpdate carries the gateway fields stored on an order.
type PaymentUpdate struct {
	PaymentID       string
	PaymentStatus   string
	PixQRCode       string
	PixQRCodeBase64 string
	PaymentURL      string
}

func UpdateOrderPayment(ctx context.Context, db DBTX, id string, p PaymentUpdate) error {
	const q = `
		UPDATE orders SET payment_id = ?, payment_status = ?, pix_qr_code = ?, pix_qr_code_base64 = ?,
			payment_url = ?, updated_at = ?
		WHERE id = ?`
	_, err := db.ExecContext(ctx, db.Rebind(q), p.PaymentID, p.PaymentStatus, p.PixQRCode, p.PixQRCodeBase64,
		p.PaymentURL, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment of order %s: %w", id, err)
	}
	return nil
}

func UpdateOrderPaymentStatus(ctx context.Context, db DBTX, id, status string) error {
	_, err := db.ExecContext(ctx, db.Rebind(`UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ?`), status, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment status of order %s: %w", id, err)
	}
	return nil
}

// MarkOrderRestockedInTx flags the order as restocked. It reports false
// when the flag was already set, so callers restock at most once.
func MarkOrderRestockedInTx(ctx context.Context, tx *sqlx.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE orders SET restocked = ?, updated_at = ? WHERE id = ? AND restocked = ?`), true, now(), id, false)
	if err != nil {
		return false, fmt.Errorf("failed to mark order %s restocked: %w", id, err)
	}
	return rowsAffected(res) == 1, nil
}

// GetStalePendingOrderIDs returns pending orders created before cutoff.
func GetStalePendingOrderIDs(ctx context.Context, db DBTX, cutoff time.Time) ([]string, error) {
	ids := []string{}
	q := `SELECT id FROM orders WHERE status = ? AND created_at < ? ORDER BY created_at`
	if err := db.SelectContext(ctx, &ids, db.Rebind(q), model.OrderPending, cutoff.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get stale pending orders: %w", err)
	}
	return ids, nil
}
