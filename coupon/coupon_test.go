package coupon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/dbtest"
	"liontech/model"
)

var now = time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestValidateOrder(t *testing.T) {
	base := model.Coupon{
		Code: "LION10", Kind: KindPercentage, Value: 10, Active: true,
		StartsAt: now.Add(-time.Hour), ExpiresAt: ptr(now.Add(time.Hour)),
		MinOrderCents: 5000, MaxUses: 3,
	}

	assert.NoError(t, Validate(base, 5000, now))

	c := base
	c.Active = false
	c.StartsAt = now.Add(time.Hour)
	assert.ErrorIs(t, Validate(c, 0, now), ErrInactive, "inactive is checked first")

	c = base
	c.StartsAt = now.Add(time.Minute)
	assert.ErrorIs(t, Validate(c, 0, now), ErrNotStarted)

	c = base
	c.ExpiresAt = ptr(now)
	c.UsedCount = 3
	assert.ErrorIs(t, Validate(c, 0, now), ErrExpired, "expiry is exclusive and checked before usage")

	c = base
	c.UsedCount = 3
	assert.ErrorIs(t, Validate(c, 0, now), ErrExhausted)

	assert.ErrorIs(t, Validate(base, 4999, now), ErrMinimumNotMet)

	c = base
	c.MaxUses = 0
	c.UsedCount = 1000
	c.ExpiresAt = nil
	assert.NoError(t, Validate(c, 6000, now))
}

func TestDiscount(t *testing.T) {
	pct := model.Coupon{Kind: KindPercentage, Value: 15}
	assert.Equal(t, int64(1499), Discount(pct, 9999))

	pct.MaxDiscountCents = 1000
	assert.Equal(t, int64(1000), Discount(pct, 9999))

	fixed := model.Coupon{Kind: KindFixed, Value: 5000}
	assert.Equal(t, int64(5000), Discount(fixed, 12000))
	assert.Equal(t, int64(3000), Discount(fixed, 3000))

	full := model.Coupon{Kind: KindPercentage, Value: 100}
	assert.Equal(t, int64(2500), Discount(full, 2500))
}

func TestNormalize(t *testing.T) {
	c := model.Coupon{Code: " natal25 ", Kind: KindFixed, Value: 2500, MaxDiscountCents: 99}
	require.NoError(t, Normalize(&c))
	assert.Equal(t, "NATAL25", c.Code)
	assert.Zero(t, c.MaxDiscountCents)

	assert.ErrorIs(t, Normalize(&model.Coupon{Code: "X", Kind: KindPercentage, Value: 101}), ErrInvalid)
	assert.ErrorIs(t, Normalize(&model.Coupon{Code: "X", Kind: "bogo", Value: 1}), ErrInvalid)
	assert.ErrorIs(t, Normalize(&model.Coupon{Code: "TWO WORDS", Kind: KindFixed, Value: 1}), ErrInvalid)
	assert.ErrorIs(t, Normalize(&model.Coupon{Code: "X", Kind: KindFixed, Value: 1, StartsAt: now, ExpiresAt: ptr(now)}), ErrInvalid)
}

func insertCoupon(t *testing.T, db *sqlx.DB, c model.Coupon) model.Coupon {
	t.Helper()
	c.ID = uuid.NewString()
	require.NoError(t, Normalize(&c))
	require.NoError(t, database.SaveCoupon(context.Background(), db, &c))
	return c
}

func TestRedeemInTxRespectsMaxUses(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	c := insertCoupon(t, db, model.Coupon{Code: "ONCE", Kind: KindFixed, Value: 1000, MaxUses: 1, Active: true, StartsAt: now.Add(-time.Hour)})

	var discount int64
	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		var err error
		_, discount, err = RedeemInTx(ctx, tx, "once", 5000, now)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), discount)

	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, _, err := RedeemInTx(ctx, tx, "ONCE", 5000, now)
		return err
	})
	assert.ErrorIs(t, err, ErrExhausted)

	got, err := database.GetCouponByID(ctx, db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsedCount)

	require.NoError(t, database.ReleaseCouponUse(ctx, db, "once"))
	got, err = database.GetCouponByID(ctx, db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsedCount)
}

func TestValidateHandler(t *testing.T) {
	db := dbtest.New(t)
	insertCoupon(t, db, model.Coupon{Code: "DEZ", Kind: KindPercentage, Value: 10, MinOrderCents: 10000, Active: true, StartsAt: time.Now().Add(-time.Hour)})

	call := func(body string) validateResponse {
		rec := httptest.NewRecorder()
		ValidateHandler(db, zap.NewNop())(rec, httptest.NewRequest(http.MethodPost, "/api/coupons/validate", bytes.NewBufferString(body)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp validateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	resp := call(`{"code":"dez","subtotalCents":20000}`)
	assert.True(t, resp.Valid)
	assert.Equal(t, int64(2000), resp.DiscountCents)

	resp = call(`{"code":"DEZ","subtotalCents":5000}`)
	assert.False(t, resp.Valid)
	assert.Contains(t, resp.Message, "R$ 100,00")

	resp = call(`{"code":"NOPE","subtotalCents":5000}`)
	assert.False(t, resp.Valid)
	assert.Equal(t, "Cupom não encontrado.", resp.Message)
}

func TestConcurrentRedeemNeverExceedsMaxUses(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	c := insertCoupon(t, db, model.Coupon{Code: "TRES", Kind: KindFixed, Value: 500, MaxUses: 3, Active: true, StartsAt: time.Now().Add(-time.Hour)})

	const buyers = 10
	errs := make(chan error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
				_, _, err := RedeemInTx(ctx, tx, "TRES", 5000, time.Now().UTC())
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	var redeemed, exhausted int
	for err := range errs {
		switch {
		case err == nil:
			redeemed++
		case errors.Is(err, ErrExhausted):
			exhausted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, redeemed)
	assert.Equal(t, buyers-3, exhausted)

	got, err := database.GetCouponByID(ctx, db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.UsedCount)
}

func TestIncrementCouponUseIsGuarded(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	c := insertCoupon(t, db, model.Coupon{Code: "DUAS", Kind: KindFixed, Value: 500, MaxUses: 2, Active: true, StartsAt: time.Now().Add(-time.Hour)})

	var taken atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := database.IncrementCouponUse(ctx, db, c.ID)
			assert.NoError(t, err)
			if ok {
				taken.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(2), taken.Load())
}
