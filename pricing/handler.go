package pricing

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/httpx"
)

type adjustRequest struct {
	CategoryID string  `json:"categoryId"`
	Percent    float64 `json:"percent"`
	Preview    bool    `json:"preview"`
}

// AdjustHandler handles POST /api/admin/pricing/adjust.
func AdjustHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adjustRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		changes, err := Adjust(r.Context(), db, req.CategoryID, req.Percent, req.Preview)
		if errors.Is(err, ErrInvalidPercent) {
			httpx.WriteError(w, "Percentual inválido.", http.StatusBadRequest)
			return
		}
		if err != nil {
			log.Error("price adjustment failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao reajustar preços.", http.StatusInternalServerError)
			return
		}
		msg := fmt.Sprintf("%d preços reajustados.", len(changes))
		if req.Preview {
			msg = fmt.Sprintf("%d preços seriam reajustados.", len(changes))
		} else {
			log.Info("prices adjusted", zap.String("category", req.CategoryID), zap.Float64("percent", req.Percent), zap.Int("changed", len(changes)))
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": msg, "changes": changes})
	}
}
