// Package aggregation builds the dashboard summary: revenue, orders by
// status, best sellers and the items that need attention.
package aggregation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/config"
	"liontech/database"
	"liontech/httpx"
	"liontech/model"
	"liontech/money"
)

const topProductsLimit = 5

// Summarize computes the dashboard for orders created in [from, to).
// Revenue counts paid, processing, shipped and delivered orders.
func Summarize(ctx context.Context, db *sqlx.DB, from, to time.Time, loc *time.Location, lowStockThreshold int) (*model.DashboardSummary, error) {
	sales, err := database.GetRevenueOrders(ctx, db, from, to)
	if err != nil {
		return nil, err
	}
	s := &model.DashboardSummary{
		From:  from.In(loc).Format(dayFormat),
		To:    to.In(loc).AddDate(0, 0, -1).Format(dayFormat),
		Daily: dailySeries(sales, from, to, loc),
	}
	for _, sale := range sales {
		s.RevenueCents += sale.TotalCents
	}
	s.PaidOrders = len(sales)
	s.Revenue = money.FormatBRL(s.RevenueCents)
	var avg int64
	if s.PaidOrders > 0 {
		avg = s.RevenueCents / int64(s.PaidOrders)
	}
	s.AverageTicket = money.FormatBRL(avg)

	if s.OrdersByStatus, err = database.GetOrderStatusCounts(ctx, db, from, to); err != nil {
		return nil, err
	}
	if s.TopProducts, err = database.GetTopProducts(ctx, db, from, to, topProductsLimit); err != nil {
		return nil, err
	}
	if s.LowStock, err = database.GetLowStockProducts(ctx, db, lowStockThreshold); err != nil {
		return nil, err
	}
	for _, status := range []string{model.TicketOpen, model.TicketPending} {
		n, err := database.CountTicketsByStatus(ctx, db, status)
		if err != nil {
			return nil, fmt.Errorf("count %s tickets: %w", status, err)
		}
		s.OpenTickets += n
	}
	if s.UnreadContacts, err = database.CountUnreadContacts(ctx, db); err != nil {
		return nil, err
	}
	return s, nil
}

// DashboardHandler handles GET /api/admin/dashboard?from=&to=.
func DashboardHandler(db *sqlx.DB, settings func() config.Settings, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := settings()
		loc := cfg.StoreLocation()
		from, to, err := ParseRange(r, loc, time.Now())
		if err != nil {
			httpx.WriteError(w, "Período inválido: "+err.Error(), http.StatusBadRequest)
			return
		}
		summary, err := Summarize(r.Context(), db, from, to, loc, cfg.LowStockThreshold)
		if err != nil {
			log.Error("dashboard summary failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao montar o painel.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, summary)
	}
}
