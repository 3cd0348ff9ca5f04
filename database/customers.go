package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"liontech/model"
)

const customerColumns = `id, name, email, phone, document, created_at, updated_at`

// UpsertCustomerInTx matches customers by e-mail and refreshes their
// contact data with the latest checkout.
func UpsertCustomerInTx(ctx context.Context, tx *sqlx.Tx, c *model.Customer) error {
	var existingID string
	err := tx.GetContext(ctx, &existingID, tx.Rebind(`SELECT id FROM customers WHERE email = ?`), c.Email)
	t := now()
	switch {
	case err == nil:
		c.ID = existingID
		c.UpdatedAt = t
		const q = `UPDATE customers SET name = ?, phone = ?, document = ?, updated_at = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), c.Name, c.Phone, c.Document, c.UpdatedAt, c.ID); err != nil {
			return fmt.Errorf("UpsertCustomerInTx update (Email: %s) failed: %w", c.Email, err)
		}
		return nil
	case IsNotFound(err):
		c.ID = uuid.NewString()
		c.CreatedAt = t
		c.UpdatedAt = t
		const q = `INSERT INTO customers (` + customerColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), c.ID, c.Name, c.Email, c.Phone, c.Document, c.CreatedAt, c.UpdatedAt); err != nil {
			return fmt.Errorf("UpsertCustomerInTx insert (Email: %s) failed: %w", c.Email, err)
		}
		return nil
	default:
		return fmt.Errorf("UpsertCustomerInTx lookup (Email: %s) failed: %w", c.Email, err)
	}
}

func customerWhere(query string) (string, []interface{}) {
	if query == "" {
		return "", nil
	}
	p := likePattern(query)
	return ` WHERE LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\'`,
		[]interface{}{p, p, p}
}

func GetCustomers(ctx context.Context, db DBTX, query string, limit, offset int) ([]model.Customer, error) {
	customers := []model.Customer{}
	where, args := customerWhere(query)
	q := `SELECT ` + customerColumns + ` FROM customers` + where + ` ORDER BY name`
	if limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	if err := db.SelectContext(ctx, &customers, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to get customers: %w", err)
	}
	return customers, nil
}

func CountCustomers(ctx context.Context, db DBTX, query string) (int, error) {
	where, args := customerWhere(query)
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM customers`+where), args...); err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return n, nil
}

// GetCustomerStats returns the order count and the amount spent in
// revenue orders for each of the given customers.
func GetCustomerStats(ctx context.Context, db DBTX, ids []string) (map[string]model.CustomerStats, error) {
	stats := make(map[string]model.CustomerStats, len(ids))
	if len(ids) == 0 {
		return stats, nil
	}
	q := `SELECT customer_id, COUNT(*) AS orders,
			CAST(COALESCE(SUM(CASE WHEN status IN (` + placeholders(len(RevenueStatuses)) + `) THEN total_cents ELSE 0 END), 0) AS BIGINT) AS spent_cents
		FROM orders WHERE customer_id IN (` + placeholders(len(ids)) + `)
		GROUP BY customer_id`
	var args []interface{}
	for _, s := range RevenueStatuses {
		args = append(args, s)
	}
	for _, id := range ids {
		args = append(args, id)
	}
	rows := []model.CustomerStats{}
	if err := db.SelectContext(ctx, &rows, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to get customer stats: %w", err)
	}
	for _, r := range rows {
		stats[r.CustomerID] = r
	}
	return stats, nil
}
