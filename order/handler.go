package order

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/auth"
	"liontech/automation"
	"liontech/config"
	"liontech/database"
	"liontech/httpx"
	"liontech/model"
	"liontech/money"
	"liontech/render"
)

func parseFilters(r *http.Request) (model.OrderFilters, error) {
	q := r.URL.Query()
	loc := config.GetConfig().StoreLocation()
	f := model.OrderFilters{Status: q.Get("status"), Query: strings.TrimSpace(q.Get("q"))}
	if f.Status != "" && !ValidStatus(f.Status) {
		return f, fmt.Errorf("invalid status %q", f.Status)
	}
	from, err := httpx.ParseDate(q.Get("from"), loc)
	if err != nil {
		return f, err
	}
	to, err := httpx.ParseDate(q.Get("to"), loc)
	if err != nil {
		return f, err
	}
	f.From = from
	if to != nil {
		end := to.AddDate(0, 0, 1)
		f.To = &end
	}
	return f, nil
}

// ListHandler handles GET /api/admin/orders.
func ListHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilters(r)
		if err != nil {
			httpx.WriteError(w, "Filtro inválido.", http.StatusBadRequest)
			return
		}
		page := httpx.ParsePage(r, 25, 100)
		f.Limit, f.Offset = page.PerPage, page.Offset()
		orders, err := database.GetFilteredOrders(r.Context(), db, f)
		if err != nil {
			log.Error("list orders failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar pedidos.", http.StatusInternalServerError)
			return
		}
		total, err := database.CountFilteredOrders(r.Context(), db, f)
		if err != nil {
			log.Error("count orders failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar pedidos.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.Paged{Items: orders, Total: total, Page: page.Page, PerPage: page.PerPage})
	}
}

type detailResponse struct {
	model.OrderDetail
	NextStatuses []string `json:"nextStatuses"`
}

func loadDetail(w http.ResponseWriter, r *http.Request, db *sqlx.DB, log *zap.Logger) (*model.OrderDetail, bool) {
	o, err := database.GetOrderDetail(r.Context(), db, mux.Vars(r)["id"])
	if err != nil {
		if database.IsNotFound(err) {
			httpx.WriteError(w, "Pedido não encontrado.", http.StatusNotFound)
			return nil, false
		}
		log.Error("get order failed", zap.Error(err))
		httpx.WriteError(w, "Falha ao carregar pedido.", http.StatusInternalServerError)
		return nil, false
	}
	return o, true
}

// DetailHandler handles GET /api/admin/orders/{id}.
func DetailHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, ok := loadDetail(w, r, db, log)
		if !ok {
			return
		}
		httpx.WriteJSON(w, http.StatusOK, detailResponse{OrderDetail: *o, NextStatuses: NextStatuses(o.Status)})
	}
}

type statusRequest struct {
	Status       string `json:"status"`
	TrackingCode string `json:"trackingCode"`
	Note         string `json:"note"`
}

// UpdateStatusHandler handles PATCH /api/admin/orders/{id}/status.
func UpdateStatusHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil || !ValidStatus(req.Status) {
			httpx.WriteError(w, "Status inválido.", http.StatusBadRequest)
			return
		}
		opts := TransitionOptions{
			TrackingCode: strings.TrimSpace(req.TrackingCode),
			Note:         strings.TrimSpace(req.Note),
			Notify:       true,
		}
		if u, ok := auth.UserFromContext(r.Context()); ok {
			opts.UserID = u.ID
			if opts.Note != "" {
				opts.Note = u.Name + ": " + opts.Note
			}
		}
		o, _, err := s.Transition(r.Context(), mux.Vars(r)["id"], req.Status, opts)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				httpx.WriteError(w, "Pedido não encontrado.", http.StatusNotFound)
			case errors.Is(err, ErrInvalidTransition) && o != nil:
				httpx.WriteError(w, fmt.Sprintf("Não é possível mudar de %s para %s.",
					render.StatusLabel(o.Status), render.StatusLabel(req.Status)), http.StatusConflict)
			case errors.Is(err, ErrStatusChanged):
				httpx.WriteError(w, "O pedido foi alterado por outra operação. Recarregue e tente novamente.", http.StatusConflict)
			default:
				s.log.Error("update order status failed", zap.Error(err))
				httpx.WriteError(w, "Falha ao atualizar o pedido.", http.StatusInternalServerError)
			}
			return
		}
		httpx.WriteJSON(w, http.StatusOK, o)
	}
}

// ExportCSVHandler handles GET /api/admin/orders/export with the list
// filters.
func ExportCSVHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilters(r)
		if err != nil {
			httpx.WriteError(w, "Filtro inválido.", http.StatusBadRequest)
			return
		}
		orders, err := database.GetFilteredOrders(r.Context(), db, f)
		if err != nil {
			log.Error("export orders failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao exportar pedidos.", http.StatusInternalServerError)
			return
		}
		loc := config.GetConfig().StoreLocation()
		cw := httpx.StartCSV(w, fmt.Sprintf("pedidos_%s.csv", time.Now().In(loc).Format("20060102")))
		defer cw.Flush()
		cw.Write([]string{"numero", "data", "status", "cliente", "email", "telefone", "entrega", "pagamento",
			"subtotal", "desconto", "desconto_pix", "frete", "total", "cupom", "rastreio"})
		for _, o := range orders {
			cw.Write([]string{
				o.Number,
				o.CreatedAt.In(loc).Format("2006-01-02 15:04"),
				render.StatusLabel(o.Status),
				o.CustomerName,
				o.CustomerEmail,
				o.CustomerPhone,
				o.DeliveryMethod,
				o.PaymentMethod + "/" + strconv.Itoa(o.Installments),
				money.FormatDecimal(o.SubtotalCents),
				money.FormatDecimal(o.DiscountCents),
				money.FormatDecimal(o.PixDiscountCents),
				money.FormatDecimal(o.ShippingCents),
				money.FormatDecimal(o.TotalCents),
				o.CouponCode,
				o.TrackingCode,
			})
		}
		if err := cw.Error(); err != nil {
			log.Warn("order csv write failed", zap.Error(err))
		}
	}
}

func receiptHTML(o *model.OrderDetail) string {
	s := config.GetConfig()
	return render.RenderOrderReceiptHTML(*o, s.StoreName, s.StoreAddress)
}

// ReceiptHandler handles GET /api/admin/orders/{id}/receipt.
func ReceiptHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, ok := loadDetail(w, r, db, log)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(receiptHTML(o)))
	}
}

// ReceiptPDFHandler handles GET /api/admin/orders/{id}/receipt.pdf. It
// answers 503 when no browser is available.
func ReceiptPDFHandler(db *sqlx.DB, pdf *automation.PDFRenderer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, ok := loadDetail(w, r, db, log)
		if !ok {
			return
		}
		if pdf == nil {
			httpx.WriteError(w, "Geração de PDF indisponível neste servidor.", http.StatusServiceUnavailable)
			return
		}
		data, err := pdf.RenderPDF(r.Context(), receiptHTML(o))
		if err != nil {
			if errors.Is(err, automation.ErrNoBrowser) {
				httpx.WriteError(w, "Geração de PDF indisponível neste servidor.", http.StatusServiceUnavailable)
				return
			}
			log.Error("render receipt pdf failed", zap.String("order", o.Number), zap.Error(err))
			httpx.WriteError(w, "Falha ao gerar o PDF.", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "pedido-"+o.Number+".pdf"))
		w.Write(data)
	}
}
