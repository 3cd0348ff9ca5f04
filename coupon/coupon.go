// Package coupon validates discount codes and computes their discount.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"liontech/database"
	"liontech/model"
)

const (
	KindPercentage = "percentage"
	KindFixed      = "fixed"
)

var (
	ErrNotFound      = errors.New("coupon not found")
	ErrInactive      = errors.New("coupon is inactive")
	ErrNotStarted    = errors.New("coupon is not valid yet")
	ErrExpired       = errors.New("coupon has expired")
	ErrExhausted     = errors.New("coupon usage limit reached")
	ErrMinimumNotMet = errors.New("order subtotal below coupon minimum")
	ErrInvalid       = errors.New("invalid coupon")
)

// Validate checks whether c applies to an order with the given subtotal at
// now. The checks run in a fixed order and the first failure is returned.
func Validate(c model.Coupon, subtotalCents int64, now time.Time) error {
	switch {
	case !c.Active:
		return ErrInactive
	case now.Before(c.StartsAt):
		return ErrNotStarted
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return ErrExpired
	case c.MaxUses > 0 && c.UsedCount >= c.MaxUses:
		return ErrExhausted
	case subtotalCents < c.MinOrderCents:
		return fmt.Errorf("%w: minimum %d cents", ErrMinimumNotMet, c.MinOrderCents)
	}
	return nil
}

// Discount returns the discount of c on subtotal, never more than the
// subtotal itself.
func Discount(c model.Coupon, subtotalCents int64) int64 {
	var d int64
	switch c.Kind {
	case KindPercentage:
		d = subtotalCents * c.Value / 100
		if c.MaxDiscountCents > 0 && d > c.MaxDiscountCents {
			d = c.MaxDiscountCents
		}
	case KindFixed:
		d = c.Value
	}
	if d > subtotalCents {
		d = subtotalCents
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Normalize upper-cases the code and checks the coupon's own fields.
func Normalize(c *model.Coupon) error {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	if c.Code == "" || len(c.Code) > 40 || strings.ContainsAny(c.Code, " \t") {
		return fmt.Errorf("%w: code must be a single word", ErrInvalid)
	}
	switch c.Kind {
	case KindPercentage:
		if c.Value < 1 || c.Value > 100 {
			return fmt.Errorf("%w: percentage must be between 1 and 100", ErrInvalid)
		}
	case KindFixed:
		if c.Value <= 0 {
			return fmt.Errorf("%w: fixed value must be positive", ErrInvalid)
		}
		c.MaxDiscountCents = 0
	default:
		return fmt.Errorf("%w: kind must be percentage or fixed", ErrInvalid)
	}
	if c.MinOrderCents < 0 || c.MaxDiscountCents < 0 || c.MaxUses < 0 {
		return fmt.Errorf("%w: negative limits", ErrInvalid)
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(c.StartsAt) {
		return fmt.Errorf("%w: expiry must be after start", ErrInvalid)
	}
	return nil
}

// Lookup loads an active coupon by code and validates it for subtotal.
func Lookup(ctx context.Context, db database.DBTX, code string, subtotalCents int64, now time.Time) (*model.Coupon, error) {
	c, err := database.GetCouponByCode(ctx, db, code)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := Validate(*c, subtotalCents, now); err != nil {
		return c, err
	}
	return c, nil
}

// RedeemInTx validates code and takes one use of it. It returns the coupon
// and the discount for subtotal. The guarded increment makes concurrent
// redemptions fail with ErrExhausted instead of exceeding max_uses.
func RedeemInTx(ctx context.Context, tx *sqlx.Tx, code string, subtotalCents int64, now time.Time) (*model.Coupon, int64, error) {
	c, err := Lookup(ctx, tx, code, subtotalCents, now)
	if err != nil {
		return nil, 0, err
	}
	ok, err := database.IncrementCouponUse(ctx, tx, c.ID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrExhausted
	}
	c.UsedCount++
	return c, Discount(*c, subtotalCents), nil
}

// Message is the customer-facing text for a validation error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "Cupom não encontrado."
	case errors.Is(err, ErrInactive):
		return "Este cupom não está ativo."
	case errors.Is(err, ErrNotStarted):
		return "Este cupom ainda não está válido."
	case errors.Is(err, ErrExpired):
		return "Este cupom expirou."
	case errors.Is(err, ErrExhausted):
		return "Este cupom atingiu o limite de usos."
	case errors.Is(err, ErrMinimumNotMet):
		return "O pedido não atinge o valor mínimo deste cupom."
	default:
		return "Cupom inválido."
	}
}

// IsValidationError reports whether err is one of the coupon rule errors.
func IsValidationError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrInactive, ErrNotStarted, ErrExpired, ErrExhausted, ErrMinimumNotMet} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
