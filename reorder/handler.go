package reorder

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/config"
	"liontech/httpx"
)

// paramsFromRequest reads ?days=&cover=&coefficient=, keeping defaults for
// missing or out of range values.
func paramsFromRequest(r *http.Request, s config.Settings) Params {
	p := DefaultParams(s.LowStockThreshold)
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("days")); err == nil && n > 0 && n <= 365 {
		p.Days = n
	}
	if n, err := strconv.Atoi(q.Get("cover")); err == nil && n > 0 && n <= 180 {
		p.CoverDays = n
	}
	if f, err := strconv.ParseFloat(q.Get("coefficient"), 64); err == nil && f > 0 && f <= 10 {
		p.Coefficient = f
	}
	return p
}

// CandidatesHandler handles GET /api/admin/reports/reorder.
func CandidatesHandler(db *sqlx.DB, settings func() config.Settings, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := Suggest(r.Context(), db, time.Now(), paramsFromRequest(r, settings()))
		if err != nil {
			log.Error("reorder report failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao gerar as sugestões de reposição.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, rep)
	}
}

// ExportHandler writes the candidates as a purchase list CSV.
func ExportHandler(db *sqlx.DB, settings func() config.Settings, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := Suggest(r.Context(), db, time.Now(), paramsFromRequest(r, settings()))
		if err != nil {
			log.Error("reorder export failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao gerar as sugestões de reposição.", http.StatusInternalServerError)
			return
		}
		cw := httpx.StartCSV(w, fmt.Sprintf("reposicao_%s.csv", time.Now().Format("20060102")))
		cw.Write([]string{"sku", "produto", "categoria", "estoque", "vendidos", "media_diaria", "ponto_pedido", "sugerido"})
		for _, c := range rep.Candidates {
			cw.Write([]string{
				c.SKU,
				c.Name,
				c.CategoryName,
				strconv.Itoa(c.Stock),
				strconv.Itoa(c.Sold),
				strconv.FormatFloat(c.DailyAverage, 'f', 2, 64),
				strconv.Itoa(c.ReorderPoint),
				strconv.Itoa(c.Suggested),
			})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			log.Warn("reorder export interrupted", zap.Error(err))
		}
	}
}
