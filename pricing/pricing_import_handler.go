package pricing

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/httpx"
	"liontech/parsers"
)

const maxPriceFile = 5 << 20

// ImportHandler handles POST /api/admin/pricing/import with a multipart
// "file" (sku,price) and optional "encoding". A file with invalid rows is
// rejected whole; otherwise every price is written in one transaction.
func ImportHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxPriceFile)
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
		records, rowErrs, err := parsers.ParsePriceCSV(decoded)
		if err != nil {
			httpx.WriteError(w, "Falha ao interpretar o CSV: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(rowErrs) > 0 {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
				"message":   "O arquivo tem linhas inválidas; nenhum preço foi alterado.",
				"rowErrors": rowErrs,
			})
			return
		}

		var changes []Change
		var unknown []string
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			var err error
			changes, unknown, err = ApplyPriceListInTx(r.Context(), tx, records)
			return err
		})
		if err != nil {
			log.Error("price list import failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao importar a tabela de preços.", http.StatusInternalServerError)
			return
		}
		log.Info("price list imported", zap.Int("changed", len(changes)), zap.Int("unknown", len(unknown)))
		httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"message":     fmt.Sprintf("%d preços atualizados.", len(changes)),
			"changes":     changes,
			"unknownSkus": unknown,
		})
	}
}
