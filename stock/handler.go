package stock

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/auth"
	"liontech/database"
	"liontech/httpx"
	"liontech/model"
	"liontech/parsers"
)

const maxCountFile = 5 << 20

type movementRequest struct {
	ProductID string `json:"productId"`
	Kind      string `json:"kind"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

func userID(r *http.Request) string {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		return u.ID
	}
	return ""
}

// writeMovementError maps movement errors to responses.
func writeMovementError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, ErrInsufficient):
		httpx.WriteError(w, "Estoque insuficiente para esta saída.", http.StatusConflict)
	case errors.Is(err, ErrInvalidKind):
		httpx.WriteError(w, "Tipo de movimentação inválido.", http.StatusBadRequest)
	case errors.Is(err, ErrInvalidQuantity):
		httpx.WriteError(w, "Quantidade inválida.", http.StatusBadRequest)
	case errors.Is(err, ErrConcurrentUpdate):
		httpx.WriteError(w, "O estoque foi alterado por outra operação. Tente novamente.", http.StatusConflict)
	case database.IsNotFound(err):
		httpx.WriteError(w, "Produto não encontrado.", http.StatusNotFound)
	default:
		log.Error("stock movement failed", zap.Error(err))
		httpx.WriteError(w, "Falha ao registrar movimentação.", http.StatusInternalServerError)
	}
}

// RecordMovementHandler handles POST /api/admin/stock/movements. Sales are
// recorded by checkout only.
func RecordMovementHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req movementRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		if req.Kind == model.MovementSale {
			httpx.WriteError(w, "Vendas são registradas pelo checkout.", http.StatusBadRequest)
			return
		}
		m, err := RecordMovement(r.Context(), db, MovementInput{
			ProductID: req.ProductID,
			Kind:      req.Kind,
			Quantity:  req.Quantity,
			Reason:    strings.TrimSpace(req.Reason),
			UserID:    userID(r),
		})
		if err != nil {
			writeMovementError(w, err, log)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, m)
	}
}

// ListMovementsHandler handles GET /api/admin/stock/movements.
func ListMovementsHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		kind := q.Get("kind")
		if kind != "" && !ValidKind(kind) {
			httpx.WriteError(w, "Tipo de movimentação inválido.", http.StatusBadRequest)
			return
		}
		page := httpx.ParsePage(r, 50, 200)
		rows, err := database.GetStockMovements(r.Context(), db, model.MovementFilters{
			ProductID: q.Get("product_id"),
			Kind:      kind,
			Limit:     page.PerPage,
			Offset:    page.Offset(),
		})
		if err != nil {
			log.Error("list stock movements failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar movimentações.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, rows)
	}
}

// ImportCountHandler handles POST /api/admin/stock/count: a multipart
// "file" with sku,quantity rows, the count "date" (YYYY-MM-DD) and an
// optional "encoding". The count replaces the stock of every product.
func ImportCountHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxCountFile)
		date := r.FormValue("date")
		if _, err := time.Parse("2006-01-02", date); err != nil {
			httpx.WriteError(w, "Data da contagem inválida (use AAAA-MM-DD).", http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			httpx.WriteError(w, "Falha ao ler o arquivo CSV.", http.StatusBadRequest)
			return
		}
		defer file.Close()

		decoded, err := parsers.Decode(file, r.FormValue("encoding"))
		if err != nil {
			httpx.WriteError(w, "Codificação de arquivo não suportada.", http.StatusBadRequest)
			return
		}
		records, rowErrs, err := parsers.ParseStockCountCSV(decoded)
		if err != nil {
			httpx.WriteError(w, "Falha ao interpretar o CSV: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(rowErrs) > 0 {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
				"message":   "O arquivo tem linhas inválidas; nenhuma alteração foi feita.",
				"rowErrors": rowErrs,
			})
			return
		}

		reference := "COUNT-" + strings.ReplaceAll(date, "-", "")
		var res CountResult
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			var err error
			res, err = ApplyCountInTx(r.Context(), tx, records, reference, userID(r))
			return err
		})
		if err != nil {
			log.Error("stock count failed", zap.String("reference", reference), zap.Error(err))
			httpx.WriteError(w, "Falha ao aplicar a contagem de estoque.", http.StatusInternalServerError)
			return
		}
		res.RowErrors = []parsers.RowError{}
		log.Info("stock count applied", zap.String("reference", reference),
			zap.Int("adjusted", res.Adjusted), zap.Int("zeroed", res.Zeroed), zap.Int("unknown", len(res.UnknownSKUs)))
		httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"message": fmt.Sprintf("Contagem aplicada: %d ajustados, %d zerados, %d sem alteração.", res.Adjusted, res.Zeroed, res.Unchanged),
			"result":  res,
		})
	}
}
