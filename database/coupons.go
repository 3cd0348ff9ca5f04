package database

import (
	"context"
	"fmt"
	"strings"

	"liontech/model"
)

const couponColumns = `id, code, kind, value, min_order_cents, max_discount_cents, max_uses, used_count,
	starts_at, expires_at, active, created_at`

func GetAllCoupons(ctx context.Context, db DBTX) ([]model.Coupon, error) {
	coupons := []model.Coupon{}
	if err := db.SelectContext(ctx, &coupons, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("failed to get all coupons: %w", err)
	}
	return coupons, nil
}

func GetCouponByID(ctx context.Context, db DBTX, id string) (*model.Coupon, error) {
	var c model.Coupon
	if err := db.GetContext(ctx, &c, db.Rebind(`SELECT `+couponColumns+` FROM coupons WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("failed to get coupon %s: %w", id, err)
	}
	return &c, nil
}

// GetCouponByCode looks the code up case-insensitively.
func GetCouponByCode(ctx context.Context, db DBTX, code string) (*model.Coupon, error) {
	var c model.Coupon
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := db.GetContext(ctx, &c, db.Rebind(`SELECT `+couponColumns+` FROM coupons WHERE code = ?`), code); err != nil {
		return nil, fmt.Errorf("failed to get coupon by code %s: %w", code, err)
	}
	return &c, nil
}

func SaveCoupon(ctx context.Context, db DBTX, c *model.Coupon) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	const q = `
		INSERT INTO coupons (` + couponColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code, kind = excluded.kind, value = excluded.value,
			min_order_cents = excluded.min_order_cents, max_discount_cents = excluded.max_discount_cents,
			max_uses = excluded.max_uses, starts_at = excluded.starts_at, expires_at = excluded.expires_at,
			active = excluded.active`
	_, err := db.ExecContext(ctx, db.Rebind(q), c.ID, c.Code, c.Kind, c.Value, c.MinOrderCents, c.MaxDiscountCents,
		c.MaxUses, c.UsedCount, c.StartsAt, c.ExpiresAt, c.Active, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("SaveCoupon (Code: %s) failed: %w", c.Code, err)
	}
	return nil
}

func DeleteCoupon(ctx context.Context, db DBTX, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM coupons WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete coupon %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("failed to delete coupon %s: %w", id, errNoRows)
	}
	return nil
}

// IncrementCouponUse bumps used_count unless the coupon is exhausted. It
// reports whether a use was taken.
func IncrementCouponUse(ctx context.Context, db DBTX, id string) (bool, error) {
	const q = `UPDATE coupons SET used_count = used_count + 1 WHERE id = ? AND (max_uses = 0 OR used_count < max_uses)`
	res, err := db.ExecContext(ctx, db.Rebind(q), id)
	if err != nil {
		return false, fmt.Errorf("failed to redeem coupon %s: %w", id, err)
	}
	return rowsAffected(res) == 1, nil
}

// ReleaseCouponUse gives a use back, never going below zero.
func ReleaseCouponUse(ctx context.Context, db DBTX, code string) error {
	const q = `UPDATE coupons SET used_count = used_count - 1 WHERE code = ? AND used_count > 0`
	if _, err := db.ExecContext(ctx, db.Rebind(q), strings.ToUpper(code)); err != nil {
		return fmt.Errorf("failed to release coupon %s: %w", code, err)
	}
	return nil
}
