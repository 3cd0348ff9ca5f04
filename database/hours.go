package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"liontech/model"
)

func GetBusinessHours(ctx context.Context, db DBTX) ([]model.BusinessHour, error) {
	hours := []model.BusinessHour{}
	if err := db.SelectContext(ctx, &hours, `SELECT weekday, opens_at, closes_at, closed FROM business_hours ORDER BY weekday`); err != nil {
		return nil, fmt.Errorf("failed to get business hours: %w", err)
	}
	return hours, nil
}

// ReplaceBusinessHoursInTx rewrites the whole week.
func ReplaceBusinessHoursInTx(ctx context.Context, tx *sqlx.Tx, hours []model.BusinessHour) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM business_hours`); err != nil {
		return fmt.Errorf("failed to clear business hours: %w", err)
	}
	const q = `INSERT INTO business_hours (weekday, opens_at, closes_at, closed) VALUES (?, ?, ?, ?)`
	for _, h := range hours {
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), h.Weekday, h.OpensAt, h.ClosesAt, h.Closed); err != nil {
			return fmt.Errorf("failed to insert business hours for weekday %d: %w", h.Weekday, err)
		}
	}
	return nil
}
