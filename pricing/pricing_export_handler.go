package pricing

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/httpx"
	"liontech/money"
)

func formatPrice(cents int64) string {
	return money.FormatDecimal(cents)
}

// ExportHandler handles GET /api/admin/pricing/export: the price list as
// sku,name,category,price. Only sku and price are read back on import.
func ExportHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := database.GetAllProducts(r.Context(), db)
		if err != nil {
			log.Error("export price list failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao exportar a tabela de preços.", http.StatusInternalServerError)
			return
		}
		cw := httpx.StartCSV(w, "tabela-precos-"+time.Now().Format("20060102")+".csv")
		cw.Write([]string{"sku", "name", "category", "price"})
		for _, p := range products {
			cw.Write(priceListRow(p))
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			log.Error("write price list failed", zap.Error(err))
		}
	}
}
