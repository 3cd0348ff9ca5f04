package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/httpx"
	"liontech/metrics"
	"liontech/model"
	"liontech/order"
)

const maxSignatureAge = 10 * time.Minute

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrBadSignature     = errors.New("webhook signature mismatch")
	ErrStaleSignature   = errors.New("webhook signature is too old")
)

// OrderStatus maps a gateway status to the order status it leads to. The
// empty string means the order stays as it is.
func OrderStatus(paymentStatus string) string {
	switch paymentStatus {
	case StatusApproved:
		return model.OrderPaid
	case StatusRejected, StatusCancelled:
		return model.OrderCancelled
	case StatusRefunded, StatusChargedBack:
		return model.OrderRefunded
	default:
		return ""
	}
}

// VerifySignature checks an x-signature header of the form "ts=..,v1=.."
// against HMAC-SHA256(secret, "id:{dataID};request-id:{requestID};ts:{ts};").
// ts may be in seconds or milliseconds.
func VerifySignature(secret, header, requestID, dataID string, now time.Time) error {
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return ErrMissingSignature
	}
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad ts", ErrBadSignature)
	}
	signedAt := time.Unix(n, 0)
	if n > 1e12 {
		signedAt = time.UnixMilli(n)
	}
	if age := now.Sub(signedAt); age > maxSignatureAge || age < -maxSignatureAge {
		return ErrStaleSignature
	}

	manifest := "id:" + strings.ToLower(dataID) + ";"
	if requestID != "" {
		manifest += "request-id:" + requestID + ";"
	}
	manifest += "ts:" + ts + ";"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(v1))) {
		return ErrBadSignature
	}
	return nil
}

type notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// dataID accepts numeric and string ids and falls back to the data.id
// query parameter.
func (n notification) dataID(r *http.Request) string {
	if len(n.Data.ID) > 0 {
		var s string
		if json.Unmarshal(n.Data.ID, &s) == nil {
			return s
		}
		return strings.TrimSpace(string(n.Data.ID))
	}
	return r.URL.Query().Get("data.id")
}

// WebhookHandler handles POST /api/webhooks/payment. The body is only a
// hint: the payment is re-read from the gateway before the order is
// touched. Once the signature is valid the answer is 200 unless a
// retryable failure happened.
func WebhookHandler(db *sqlx.DB, gw Gateway, orders *order.Service, secret string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			httpx.WriteError(w, "invalid body", http.StatusBadRequest)
			return
		}
		var n notification
		if len(body) > 0 {
			if err := json.Unmarshal(body, &n); err != nil {
				metrics.PaymentWebhooks.WithLabelValues("malformed").Inc()
				httpx.WriteError(w, "invalid body", http.StatusBadRequest)
				return
			}
		}
		if n.Type == "" {
			n.Type = r.URL.Query().Get("type")
		}
		id := n.dataID(r)

		if secret != "" {
			err := VerifySignature(secret, r.Header.Get("x-signature"), r.Header.Get("x-request-id"), id, time.Now())
			if err != nil {
				metrics.PaymentWebhooks.WithLabelValues("invalid_signature").Inc()
				log.Warn("payment webhook rejected", zap.Error(err))
				httpx.WriteError(w, "invalid signature", http.StatusUnauthorized)
				return
			}
		}
		if n.Type != "payment" || id == "" {
			metrics.PaymentWebhooks.WithLabelValues("ignored").Inc()
			httpx.WriteMessage(w, "ignored")
			return
		}
		if !ValidPaymentID(id) {
			metrics.PaymentWebhooks.WithLabelValues("malformed").Inc()
			log.Warn("payment webhook with invalid id", zap.String("payment", id))
			httpx.WriteError(w, "invalid payment id", http.StatusBadRequest)
			return
		}

		p, err := gw.GetPayment(r.Context(), id)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
				metrics.PaymentWebhooks.WithLabelValues("unknown_payment").Inc()
				log.Warn("payment webhook for unknown payment", zap.String("payment", id))
				httpx.WriteMessage(w, "ignored")
				return
			}
			metrics.PaymentWebhooks.WithLabelValues("gateway_error").Inc()
			log.Error("payment lookup failed", zap.String("payment", id), zap.Error(err))
			httpx.WriteError(w, "payment lookup failed", http.StatusBadGateway)
			return
		}

		if err := Apply(r.Context(), db, orders, p, log); err != nil {
			metrics.PaymentWebhooks.WithLabelValues("error").Inc()
			log.Error("payment webhook failed", zap.String("payment", id), zap.Error(err))
			httpx.WriteError(w, "processing failed", http.StatusInternalServerError)
			return
		}
		metrics.PaymentWebhooks.WithLabelValues(p.Status).Inc()
		httpx.WriteMessage(w, "ok")
	}
}

// Apply stores the payment status on its order and moves the order when
// the state machine allows it. Repeated deliveries change nothing.
func Apply(ctx context.Context, db *sqlx.DB, orders *order.Service, p *Payment, log *zap.Logger) error {
	o, err := database.GetOrderByID(ctx, db, p.ExternalReference)
	if err != nil {
		if database.IsNotFound(err) {
			log.Warn("payment without matching order", zap.String("payment", p.IDString()),
				zap.String("reference", p.ExternalReference))
			return nil
		}
		return err
	}
	if o.PaymentStatus != p.Status || o.PaymentID == "" {
		update := database.PaymentUpdate{
			PaymentID:       p.IDString(),
			PaymentStatus:   p.Status,
			PixQRCode:       o.PixQRCode,
			PixQRCodeBase64: o.PixQRCodeBase64,
			PaymentURL:      o.PaymentURL,
		}
		if err := database.UpdateOrderPayment(ctx, db, o.ID, update); err != nil {
			return err
		}
	}

	target := OrderStatus(p.Status)
	if target == "" || target == o.Status {
		return nil
	}
	if !order.CanTransition(o.Status, target) {
		log.Warn("payment status does not apply to order", zap.String("order", o.Number),
			zap.String("orderStatus", o.Status), zap.String("paymentStatus", p.Status))
		return nil
	}
	_, _, err = orders.Transition(ctx, o.ID, target, order.TransitionOptions{
		Note:   "Pagamento " + p.IDString() + ": " + p.Status,
		Notify: true,
	})
	if errors.Is(err, order.ErrInvalidTransition) || errors.Is(err, order.ErrStatusChanged) {
		log.Info("payment transition skipped", zap.String("order", o.Number), zap.Error(err))
		return nil
	}
	return err
}
