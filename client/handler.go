// Package client serves the customer list of the dashboard. Customers are
// created by checkout; this package only reads them.
package client

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/httpx"
	"liontech/model"
	"liontech/money"
)

type customerView struct {
	model.Customer
	model.CustomerStats
	Spent string `json:"spent"`
}

func loadViews(r *http.Request, db *sqlx.DB, customers []model.Customer) ([]customerView, error) {
	ids := make([]string, 0, len(customers))
	for _, c := range customers {
		ids = append(ids, c.ID)
	}
	stats, err := database.GetCustomerStats(r.Context(), db, ids)
	if err != nil {
		return nil, err
	}
	views := make([]customerView, 0, len(customers))
	for _, c := range customers {
		st := stats[c.ID]
		views = append(views, customerView{Customer: c, CustomerStats: st, Spent: money.FormatBRL(st.SpentCents)})
	}
	return views, nil
}

// ListCustomersHandler handles GET /api/admin/customers?q=&page=&per_page=.
func ListCustomersHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		page := httpx.ParsePage(r, 50, 200)
		customers, err := database.GetCustomers(r.Context(), db, query, page.PerPage, page.Offset())
		if err != nil {
			log.Error("list customers failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar clientes.", http.StatusInternalServerError)
			return
		}
		total, err := database.CountCustomers(r.Context(), db, query)
		if err != nil {
			log.Error("count customers failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar clientes.", http.StatusInternalServerError)
			return
		}
		views, err := loadViews(r, db, customers)
		if err != nil {
			log.Error("customer stats failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar clientes.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.Paged{Items: views, Total: total, Page: page.Page, PerPage: page.PerPage})
	}
}

// ExportCustomersHandler handles GET /api/admin/customers/export.
func ExportCustomersHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customers, err := database.GetCustomers(r.Context(), db, "", 0, 0)
		if err != nil {
			log.Error("export customers failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao exportar clientes.", http.StatusInternalServerError)
			return
		}
		views, err := loadViews(r, db, customers)
		if err != nil {
			log.Error("customer stats failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao exportar clientes.", http.StatusInternalServerError)
			return
		}
		cw := httpx.StartCSV(w, "clientes-"+time.Now().Format("20060102")+".csv")
		cw.Write([]string{"nome", "email", "telefone", "documento", "pedidos", "total_gasto", "cliente_desde"})
		for _, v := range views {
			cw.Write([]string{v.Name, v.Email, v.Phone, v.Document, strconv.Itoa(v.Orders),
				money.FormatDecimal(v.SpentCents), v.CreatedAt.Format("2006-01-02")})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			log.Error("write customers csv failed", zap.Error(err))
		}
	}
}
