package coupon

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/httpx"
	"liontech/model"
	"liontech/money"
)

type validateRequest struct {
	Code          string `json:"code"`
	SubtotalCents int64  `json:"subtotalCents"`
}

type validateResponse struct {
	Valid         bool   `json:"valid"`
	DiscountCents int64  `json:"discountCents"`
	Discount      string `json:"discount"`
	Message       string `json:"message"`
}

// ValidateHandler handles POST /api/coupons/validate. Rule failures are
// reported in the body with status 200.
func ValidateHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Code == "" || req.SubtotalCents < 0 {
			httpx.WriteError(w, "Informe o código do cupom.", http.StatusBadRequest)
			return
		}
		c, err := Lookup(r.Context(), db, req.Code, req.SubtotalCents, time.Now().UTC())
		if err != nil {
			if !IsValidationError(err) {
				log.Error("coupon lookup failed", zap.String("code", req.Code), zap.Error(err))
				httpx.WriteError(w, "Falha ao validar cupom.", http.StatusInternalServerError)
				return
			}
			msg := Message(err)
			if errors.Is(err, ErrMinimumNotMet) && c != nil {
				msg = "Pedido mínimo para este cupom: " + money.FormatBRL(c.MinOrderCents) + "."
			}
			httpx.WriteJSON(w, http.StatusOK, validateResponse{Message: msg})
			return
		}
		d := Discount(*c, req.SubtotalCents)
		httpx.WriteJSON(w, http.StatusOK, validateResponse{
			Valid:         true,
			DiscountCents: d,
			Discount:      money.FormatBRL(d),
			Message:       "Cupom aplicado.",
		})
	}
}

func ListHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coupons, err := database.GetAllCoupons(r.Context(), db)
		if err != nil {
			log.Error("list coupons failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar cupons.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, coupons)
	}
}

type couponRequest struct {
	Code             string     `json:"code"`
	Kind             string     `json:"kind"`
	Value            int64      `json:"value"`
	MinOrderCents    int64      `json:"minOrderCents"`
	MaxDiscountCents int64      `json:"maxDiscountCents"`
	MaxUses          int        `json:"maxUses"`
	StartsAt         *time.Time `json:"startsAt"`
	ExpiresAt        *time.Time `json:"expiresAt"`
	Active           bool       `json:"active"`
}

func (req couponRequest) apply(c *model.Coupon) {
	c.Code = req.Code
	c.Kind = req.Kind
	c.Value = req.Value
	c.MinOrderCents = req.MinOrderCents
	c.MaxDiscountCents = req.MaxDiscountCents
	c.MaxUses = req.MaxUses
	if req.StartsAt != nil {
		c.StartsAt = req.StartsAt.UTC()
	} else if c.StartsAt.IsZero() {
		c.StartsAt = time.Now().UTC()
	}
	c.ExpiresAt = nil
	if req.ExpiresAt != nil {
		exp := req.ExpiresAt.UTC()
		c.ExpiresAt = &exp
	}
	c.Active = req.Active
}

func save(w http.ResponseWriter, r *http.Request, db *sqlx.DB, log *zap.Logger, c *model.Coupon, status int) {
	if err := Normalize(c); err != nil {
		log.Debug("coupon rejected", zap.Error(err))
		httpx.WriteError(w, "Dados do cupom inválidos.", http.StatusBadRequest)
		return
	}
	if err := database.SaveCoupon(r.Context(), db, c); err != nil {
		if database.IsUniqueViolation(err) {
			httpx.WriteError(w, "Já existe um cupom com este código.", http.StatusConflict)
			return
		}
		log.Error("save coupon failed", zap.String("code", c.Code), zap.Error(err))
		httpx.WriteError(w, "Falha ao salvar cupom.", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, status, c)
}

func CreateHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req couponRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		c := &model.Coupon{ID: uuid.NewString()}
		req.apply(c)
		save(w, r, db, log, c, http.StatusCreated)
	}
}

// UpdateHandler replaces the editable fields; used_count is kept.
func UpdateHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := database.GetCouponByID(r.Context(), db, mux.Vars(r)["id"])
		if err != nil {
			if database.IsNotFound(err) {
				httpx.WriteError(w, "Cupom não encontrado.", http.StatusNotFound)
				return
			}
			log.Error("get coupon failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao carregar cupom.", http.StatusInternalServerError)
			return
		}
		var req couponRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		req.apply(c)
		save(w, r, db, log, c, http.StatusOK)
	}
}

func DeleteHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := database.DeleteCoupon(r.Context(), db, mux.Vars(r)["id"]); err != nil {
			if database.IsNotFound(err) {
				httpx.WriteError(w, "Cupom não encontrado.", http.StatusNotFound)
				return
			}
			log.Error("delete coupon failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao excluir cupom.", http.StatusInternalServerError)
			return
		}
		httpx.WriteMessage(w, "Cupom excluído.")
	}
}
