package checkout

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/auth"
	"liontech/coupon"
	"liontech/database"
	"liontech/httpx"
	"liontech/model"
	"liontech/money"
	"liontech/render"
)

// CartCookie holds the id of the visitor's server-side cart.
const CartCookie = "lt_cart"

// CartIDFromRequest returns the cart id of the cookie, or "".
func CartIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(CartCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// OrderView is the order as the customer sees it. Internal notes are left
// out.
type OrderView struct {
	ID               string            `json:"id"`
	Number           string            `json:"number"`
	AccessToken      string            `json:"accessToken,omitempty"`
	Status           string            `json:"status"`
	StatusLabel      string            `json:"statusLabel"`
	CustomerName     string            `json:"customerName"`
	DeliveryMethod   string            `json:"deliveryMethod"`
	ShippingAddress  string            `json:"shippingAddress,omitempty"`
	Items            []model.OrderItem `json:"items"`
	SubtotalCents    int64             `json:"subtotalCents"`
	DiscountCents    int64             `json:"discountCents"`
	PixDiscountCents int64             `json:"pixDiscountCents"`
	ShippingCents    int64             `json:"shippingCents"`
	TotalCents       int64             `json:"totalCents"`
	Total            string            `json:"total"`
	CouponCode       string            `json:"couponCode,omitempty"`
	PaymentMethod    string            `json:"paymentMethod"`
	Installments     int               `json:"installments"`
	PaymentStatus    string            `json:"paymentStatus"`
	PixQRCode        string            `json:"pixQrCode,omitempty"`
	PixQRCodeBase64  string            `json:"pixQrCodeBase64,omitempty"`
	PaymentURL       string            `json:"paymentUrl,omitempty"`
	TrackingCode     string            `json:"trackingCode,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	PaidAt           *time.Time        `json:"paidAt,omitempty"`
}

// ToOrderView builds the public view. The access token is included only
// when withToken is set, right after checkout.
func ToOrderView(o model.OrderDetail, withToken bool) OrderView {
	v := OrderView{
		ID:               o.ID,
		Number:           o.Number,
		Status:           o.Status,
		StatusLabel:      render.StatusLabel(o.Status),
		CustomerName:     o.CustomerName,
		DeliveryMethod:   o.DeliveryMethod,
		Items:            o.Items,
		SubtotalCents:    o.SubtotalCents,
		DiscountCents:    o.DiscountCents,
		PixDiscountCents: o.PixDiscountCents,
		ShippingCents:    o.ShippingCents,
		TotalCents:       o.TotalCents,
		Total:            money.FormatBRL(o.TotalCents),
		CouponCode:       o.CouponCode,
		PaymentMethod:    o.PaymentMethod,
		Installments:     o.Installments,
		PaymentStatus:    o.PaymentStatus,
		PixQRCode:        o.PixQRCode,
		PixQRCodeBase64:  o.PixQRCodeBase64,
		PaymentURL:       o.PaymentURL,
		TrackingCode:     o.TrackingCode,
		CreatedAt:        o.CreatedAt,
		PaidAt:           o.PaidAt,
	}
	if o.DeliveryMethod == model.DeliveryShipping {
		v.ShippingAddress = render.ShippingAddress(o.Order)
	}
	if withToken {
		v.AccessToken = o.AccessToken
	}
	return v
}

// PlaceOrderHandler handles POST /api/checkout.
func PlaceOrderHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		req.CartID = CartIDFromRequest(r)

		o, err := s.PlaceOrder(r.Context(), req)
		if err != nil {
			writeCheckoutError(w, err, s.log)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, ToOrderView(*o, true))
	}
}

func writeCheckoutError(w http.ResponseWriter, err error, log *zap.Logger) {
	var verr *ValidationError
	var serr *StockError
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, verr.Message, http.StatusBadRequest)
	case errors.Is(err, ErrEmptyCart):
		httpx.WriteError(w, "Seu carrinho está vazio.", http.StatusBadRequest)
	case errors.As(err, &serr) && errors.Is(err, ErrUnavailable):
		httpx.WriteError(w, serr.Name+" não está mais disponível.", http.StatusConflict)
	case errors.As(err, &serr):
		httpx.WriteError(w, fmt.Sprintf("Estoque insuficiente para %s: disponível %d.", serr.Name, serr.Available), http.StatusConflict)
	case coupon.IsValidationError(err):
		httpx.WriteError(w, coupon.Message(err), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrPaymentRejected):
		httpx.WriteError(w, "Pagamento recusado. Verifique os dados do cartão ou escolha outra forma de pagamento.", http.StatusPaymentRequired)
	case errors.Is(err, ErrPaymentFailed):
		httpx.WriteError(w, "Não foi possível iniciar o pagamento. Tente novamente em instantes.", http.StatusBadGateway)
	default:
		log.Error("checkout failed", zap.Error(err))
		httpx.WriteError(w, "Falha ao finalizar o pedido.", http.StatusInternalServerError)
	}
}

// GetOrderHandler handles GET /api/orders/{id}?token=.
func GetOrderHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := database.GetOrderDetail(r.Context(), db, mux.Vars(r)["id"])
		if err != nil && !database.IsNotFound(err) {
			log.Error("get order failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao carregar pedido.", http.StatusInternalServerError)
			return
		}
		if err != nil || !auth.TokenEqual(r.URL.Query().Get("token"), o.AccessToken) {
			httpx.WriteError(w, "Pedido não encontrado.", http.StatusNotFound)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, ToOrderView(*o, false))
	}
}
