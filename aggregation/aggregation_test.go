package aggregation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liontech/database"
	"liontech/dbtest"
	"liontech/model"
)

func insertOrder(t *testing.T, db *sqlx.DB, p *model.Product, qty int, status string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	o := &model.Order{
		ID: uuid.NewString(), Number: "LT" + uuid.NewString()[:8], AccessToken: "t",
		CustomerName: "Ana", CustomerEmail: "ana@example.com", CustomerPhone: "11987654321",
		DeliveryMethod: model.DeliveryPickup, PaymentMethod: model.PaymentPix, Installments: 1,
		SubtotalCents: p.PriceCents * int64(qty), TotalCents: p.PriceCents * int64(qty), Status: status,
	}
	require.NoError(t, database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if err := database.InsertOrderInTx(ctx, tx, o); err != nil {
			return err
		}
		return database.InsertOrderItemInTx(ctx, tx, model.OrderItem{
			ID: uuid.NewString(), OrderID: o.ID, ProductID: p.ID, SKU: p.SKU, Name: p.Name,
			UnitPriceCents: p.PriceCents, Quantity: qty, LineTotalCents: p.PriceCents * int64(qty),
		})
	}))
	_, err := db.Exec(db.Rebind(`UPDATE orders SET created_at = ? WHERE id = ?`), at.UTC(), o.ID)
	require.NoError(t, err)
}

func TestParseRange(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, loc)

	r := httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
	from, to, err := ParseRange(r, loc, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, loc), to)
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, loc), from)

	r = httptest.NewRequest(http.MethodGet, "/api/admin/dashboard?from=2026-03-01&to=2026-03-01", nil)
	from, to, err = ParseRange(r, loc, now)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, to.Sub(from))

	for _, q := range []string{"?from=2026-03-05&to=2026-03-01", "?from=01/03/2026", "?from=2024-01-01&to=2026-01-01"} {
		r = httptest.NewRequest(http.MethodGet, "/api/admin/dashboard"+q, nil)
		_, _, err = ParseRange(r, loc, now)
		assert.Error(t, err, q)
	}
}

func TestSummarize(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	loc := time.UTC
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, loc)
	day2 := day1.AddDate(0, 0, 1)

	mouse := dbtest.Product(t, db, "MOUSE", 5000, 10)
	cable := dbtest.Product(t, db, "CABO", 1000, 2)
	insertOrder(t, db, mouse, 2, model.OrderPaid, day1)
	insertOrder(t, db, cable, 5, model.OrderDelivered, day1)
	insertOrder(t, db, mouse, 1, model.OrderShipped, day2)
	insertOrder(t, db, mouse, 9, model.OrderCancelled, day2)
	insertOrder(t, db, mouse, 1, model.OrderPending, day2)
	insertOrder(t, db, mouse, 1, model.OrderPaid, day2.AddDate(0, 0, 5))

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 3)
	s, err := Summarize(ctx, db, from, to, loc, 3)
	require.NoError(t, err)

	assert.Equal(t, "2026-03-01", s.From)
	assert.Equal(t, "2026-03-03", s.To)
	assert.Equal(t, int64(20000), s.RevenueCents)
	assert.Equal(t, "R$ 200,00", s.Revenue)
	assert.Equal(t, 3, s.PaidOrders)
	assert.Equal(t, "R$ 66,66", s.AverageTicket)
	require.Len(t, s.Daily, 3)
	assert.Equal(t, model.DailySales{Date: "2026-03-01", Orders: 2, RevenueCents: 15000}, s.Daily[0])
	assert.Equal(t, model.DailySales{Date: "2026-03-02", Orders: 1, RevenueCents: 5000}, s.Daily[1])
	assert.Equal(t, model.DailySales{Date: "2026-03-03"}, s.Daily[2])

	counts := map[string]int{}
	for _, c := range s.OrdersByStatus {
		counts[c.Status] = c.Count
	}
	assert.Equal(t, map[string]int{"paid": 1, "delivered": 1, "shipped": 1, "cancelled": 1, "pending": 1}, counts)

	require.Len(t, s.TopProducts, 2)
	assert.Equal(t, "Produto CABO", s.TopProducts[0].Name)
	assert.Equal(t, 5, s.TopProducts[0].Quantity)
	assert.Equal(t, 3, s.TopProducts[1].Quantity)

	require.Len(t, s.LowStock, 1)
	assert.Equal(t, cable.ID, s.LowStock[0].ID)
}
