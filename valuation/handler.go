// Package valuation reports the value of the stock on hand per category.
package valuation

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/httpx"
	"liontech/mappers"
	"liontech/model"
	"liontech/money"
)

// Report is the valuation table plus its grand total.
type Report struct {
	Rows       []model.ValuationRow `json:"rows"`
	Units      int                  `json:"units"`
	TotalCents int64                `json:"totalCents"`
	Total      string               `json:"total"`
}

const uncategorized = "Sem categoria"

// Build sums stock × price of active products per category.
func Build(ctx context.Context, db *sqlx.DB) (*Report, error) {
	rows, err := database.GetValuationByCategory(ctx, db)
	if err != nil {
		return nil, err
	}
	rep := &Report{Rows: mappers.ToValuationRows(rows)}
	for i := range rep.Rows {
		if rep.Rows[i].CategoryName == "" {
			rep.Rows[i].CategoryName = uncategorized
		}
		rep.Units += rep.Rows[i].Units
		rep.TotalCents += rep.Rows[i].ValueCents
	}
	rep.Total = money.FormatBRL(rep.TotalCents)
	return rep, nil
}

// GetValuationHandler handles GET /api/admin/reports/valuation.
func GetValuationHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := Build(r.Context(), db)
		if err != nil {
			log.Error("inventory valuation failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao calcular a valorização do estoque.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, rep)
	}
}

// ExportValuationCSVHandler handles GET /api/admin/reports/valuation.csv.
func ExportValuationCSVHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := Build(r.Context(), db)
		if err != nil {
			log.Error("inventory valuation failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao calcular a valorização do estoque.", http.StatusInternalServerError)
			return
		}
		cw := httpx.StartCSV(w, "valorizacao-estoque-"+time.Now().Format("20060102")+".csv")
		cw.Write([]string{"categoria", "produtos", "unidades", "valor"})
		for _, row := range rep.Rows {
			cw.Write([]string{row.CategoryName, strconv.Itoa(row.Products), strconv.Itoa(row.Units), money.FormatDecimal(row.ValueCents)})
		}
		cw.Write([]string{"Total", "", strconv.Itoa(rep.Units), money.FormatDecimal(rep.TotalCents)})
		cw.Flush()
		if err := cw.Error(); err != nil {
			log.Error("write valuation csv failed", zap.Error(err))
		}
	}
}
