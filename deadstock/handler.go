// Package deadstock lists products that have stock but have not sold for
// a configurable number of days.
package deadstock

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/config"
	"liontech/database"
	"liontech/httpx"
	"liontech/model"
	"liontech/money"
)

// Report lists dead stock and the value tied up in it.
type Report struct {
	Days       int                     `json:"days"`
	Since      time.Time               `json:"since"`
	Items      []model.DeadStockRecord `json:"items"`
	TotalCents int64                   `json:"totalCents"`
	Total      string                  `json:"total"`
}

// Find returns active products with stock whose last sale is older than
// days. Products created inside the window are left out: they have not
// had the chance to sell yet.
func Find(ctx context.Context, db *sqlx.DB, now time.Time, days int) (*Report, error) {
	since := now.AddDate(0, 0, -days)
	products, err := database.GetStockedProducts(ctx, db)
	if err != nil {
		return nil, err
	}
	lastSales, err := database.GetLastSaleTimes(ctx, db)
	if err != nil {
		return nil, err
	}
	rep := &Report{Days: days, Since: since, Items: []model.DeadStockRecord{}}
	for _, p := range products {
		last, sold := lastSales[p.ProductID]
		if sold && last.After(since) {
			continue
		}
		if !sold && p.CreatedAt.After(since) {
			continue
		}
		if sold {
			p.LastSaleAt = last.Format(time.RFC3339)
		}
		p.ValueCents = int64(p.Stock) * p.PriceCents
		rep.TotalCents += p.ValueCents
		rep.Items = append(rep.Items, p)
	}
	rep.Total = money.FormatBRL(rep.TotalCents)
	return rep, nil
}

func daysParam(r *http.Request, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && n > 0 {
		return n
	}
	return def
}

// ListDeadStockHandler handles GET /api/admin/reports/deadstock?days=.
func ListDeadStockHandler(db *sqlx.DB, settings func() config.Settings, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := Find(r.Context(), db, time.Now().UTC(), daysParam(r, settings().DeadStockDays))
		if err != nil {
			log.Error("dead stock report failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao gerar o relatório de estoque parado.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, rep)
	}
}

// ExportDeadStockHandler handles GET /api/admin/reports/deadstock.csv.
func ExportDeadStockHandler(db *sqlx.DB, settings func() config.Settings, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := Find(r.Context(), db, time.Now().UTC(), daysParam(r, settings().DeadStockDays))
		if err != nil {
			log.Error("dead stock report failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao gerar o relatório de estoque parado.", http.StatusInternalServerError)
			return
		}
		loc := settings().StoreLocation()
		cw := httpx.StartCSV(w, "estoque-parado-"+time.Now().Format("20060102")+".csv")
		cw.Write([]string{"sku", "nome", "estoque", "preco", "valor", "ultima_venda"})
		for _, it := range rep.Items {
			last := ""
			if it.LastSaleAt != "" {
				if t, err := time.Parse(time.RFC3339, it.LastSaleAt); err == nil {
					last = t.In(loc).Format("02/01/2006")
				}
			}
			cw.Write([]string{it.SKU, it.Name, strconv.Itoa(it.Stock), money.FormatDecimal(it.PriceCents), money.FormatDecimal(it.ValueCents), last})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			log.Error("write dead stock csv failed", zap.Error(err))
		}
	}
}
