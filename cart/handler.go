package cart

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/checkout"
	"liontech/config"
	"liontech/coupon"
	"liontech/database"
	"liontech/httpx"
	"liontech/mappers"
	"liontech/model"
	"liontech/money"
)

type lineView struct {
	ProductID      string `json:"productId"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	ImageURL       string `json:"imageUrl,omitempty"`
	Quantity       int    `json:"quantity"`
	Stock          int    `json:"stock"`
	Available      bool   `json:"available"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	UnitPrice      string `json:"unitPrice"`
	LineTotalCents int64  `json:"lineTotalCents"`
	LineTotal      string `json:"lineTotal"`
}

type cartView struct {
	Lines         []lineView      `json:"lines"`
	Totals        checkout.Totals `json:"totals"`
	CouponMessage string          `json:"couponMessage,omitempty"`
}

type itemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// GetHandler handles GET /api/cart?coupon=&payment=&delivery=. Lines are
// repriced from the catalog on every read.
func GetHandler(db *sqlx.DB, settings func() config.Settings, url mappers.URLFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := buildView(r, db, checkout.CartIDFromRequest(r), settings(), url)
		if err != nil {
			log.Error("load cart failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao carregar o carrinho.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, view)
	}
}

func buildView(r *http.Request, db *sqlx.DB, cartID string, s config.Settings, url mappers.URLFunc) (*cartView, error) {
	lines := []model.CartLine{}
	if cartID != "" {
		var err error
		if lines, err = database.GetCartLines(r.Context(), db, cartID); err != nil {
			return nil, err
		}
	}

	q := r.URL.Query()
	view := &cartView{Lines: make([]lineView, 0, len(lines))}
	var subtotal int64
	for _, l := range lines {
		total := l.UnitPriceCents * int64(l.Quantity)
		subtotal += total
		lv := lineView{
			ProductID:      l.ProductID,
			SKU:            l.SKU,
			Name:           l.Name,
			Slug:           l.Slug,
			Quantity:       l.Quantity,
			Stock:          l.Stock,
			Available:      l.Active && l.Quantity <= l.Stock,
			UnitPriceCents: l.UnitPriceCents,
			UnitPrice:      money.FormatBRL(l.UnitPriceCents),
			LineTotalCents: total,
			LineTotal:      money.FormatBRL(total),
		}
		if l.ImageKey != "" && url != nil {
			lv.ImageURL = url(l.ImageKey)
		}
		view.Lines = append(view.Lines, lv)
	}

	var c *model.Coupon
	if code := q.Get("coupon"); code != "" {
		found, err := coupon.Lookup(r.Context(), db, code, subtotal, time.Now().UTC())
		switch {
		case err == nil:
			c = found
		case coupon.IsValidationError(err):
			view.CouponMessage = coupon.Message(err)
		default:
			return nil, err
		}
	}

	payment := q.Get("payment")
	if payment == "" {
		payment = model.PaymentCard
	}
	delivery := q.Get("delivery")
	if delivery == "" {
		delivery = model.DeliveryShipping
	}
	view.Totals = checkout.Quote(lines, c, payment, delivery, s)
	return view, nil
}

// AddItemHandler handles POST /api/cart/items. The quantity is added to
// the existing line.
func AddItemHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req itemRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil || req.ProductID == "" {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		if req.Quantity < 0 {
			writeCartError(w, ErrQuantity, log)
			return
		}
		cartID, err := ensureCart(r.Context(), w, r, db)
		if err != nil {
			writeCartError(w, err, log)
			return
		}
		qty, err := SetQuantity(r.Context(), db, cartID, req.ProductID, req.Quantity, true)
		if err != nil {
			writeCartError(w, err, log)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, itemRequest{ProductID: req.ProductID, Quantity: qty})
	}
}

// UpdateItemHandler handles PUT /api/cart/items/{product_id}. Quantity 0
// removes the line.
func UpdateItemHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req itemRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		productID := mux.Vars(r)["product_id"]
		cartID, err := ensureCart(r.Context(), w, r, db)
		if err != nil {
			writeCartError(w, err, log)
			return
		}
		if req.Quantity == 0 {
			if err := database.RemoveCartItem(r.Context(), db, cartID, productID); err != nil {
				writeCartError(w, err, log)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, itemRequest{ProductID: productID})
			return
		}
		qty, err := SetQuantity(r.Context(), db, cartID, productID, req.Quantity, false)
		if err != nil {
			writeCartError(w, err, log)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, itemRequest{ProductID: productID, Quantity: qty})
	}
}

// RemoveItemHandler handles DELETE /api/cart/items/{product_id}.
func RemoveItemHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID := checkout.CartIDFromRequest(r)
		if cartID != "" {
			if err := database.RemoveCartItem(r.Context(), db, cartID, mux.Vars(r)["product_id"]); err != nil {
				writeCartError(w, err, log)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearHandler handles DELETE /api/cart.
func ClearHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cartID := checkout.CartIDFromRequest(r); cartID != "" {
			if err := database.ClearCart(r.Context(), db, cartID); err != nil {
				writeCartError(w, err, log)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeCartError(w http.ResponseWriter, err error, log *zap.Logger) {
	var serr *StockError
	switch {
	case errors.As(err, &serr):
		msg := fmt.Sprintf("Estoque insuficiente para %s: disponível %d.", serr.Name, serr.Available)
		if serr.Available == 0 {
			msg = serr.Name + " está esgotado."
		}
		httpx.WriteError(w, msg, http.StatusConflict)
	case errors.Is(err, ErrProductNotFound):
		httpx.WriteError(w, "Produto não encontrado.", http.StatusNotFound)
	case errors.Is(err, ErrUnavailable):
		httpx.WriteError(w, "Produto indisponível.", http.StatusConflict)
	case errors.Is(err, ErrQuantity):
		httpx.WriteError(w, fmt.Sprintf("A quantidade deve estar entre 1 e %d.", MaxQuantity), http.StatusBadRequest)
	default:
		log.Error("cart update failed", zap.Error(err))
		httpx.WriteError(w, "Falha ao atualizar o carrinho.", http.StatusInternalServerError)
	}
}
