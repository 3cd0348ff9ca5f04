// Package order owns the order lifecycle: status transitions with their
// stock and coupon side effects, the dashboard endpoints and the expiry of
// unpaid orders.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/metrics"
	"liontech/model"
	"liontech/realtime"
	"liontech/stock"
	"liontech/whatsapp"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrStatusChanged     = errors.New("order status changed concurrently")
)

// Service applies transitions and fans their effects out.
type Service struct {
	db       *sqlx.DB
	notifier *whatsapp.Notifier
	hub      *realtime.Hub
	log      *zap.Logger
	now      func() time.Time
}

func NewService(db *sqlx.DB, notifier *whatsapp.Notifier, hub *realtime.Hub, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, notifier: notifier, hub: hub, log: log, now: time.Now}
}

// TransitionOptions are the optional effects of a status change.
type TransitionOptions struct {
	TrackingCode string
	Note         string
	UserID       string
	// Notify sends the status message to the customer when the status
	// changes.
	Notify bool
}

// TransitionInTx moves the order to status to. Moving to the current
// status is a no-op and reports changed=false. Cancelling returns the
// stock and the coupon use; refunding returns the stock. Stock is returned
// at most once per order.
func TransitionInTx(ctx context.Context, tx *sqlx.Tx, id, to, userID string) (o *model.Order, changed bool, err error) {
	o, err = database.GetOrderByID(ctx, tx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}
	if o.Status == to {
		return o, false, nil
	}
	if !CanTransition(o.Status, to) {
		return o, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	ok, err := database.UpdateOrderStatus(ctx, tx, id, o.Status, to)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, ErrStatusChanged
	}
	if returnsStock(to) {
		if err := restockInTx(ctx, tx, o, userID); err != nil {
			return nil, false, err
		}
	}
	if to == model.OrderCancelled && o.CouponCode != "" {
		if err := database.ReleaseCouponUse(ctx, tx, o.CouponCode); err != nil {
			return nil, false, err
		}
	}
	o, err = database.GetOrderByID(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

func restockInTx(ctx context.Context, tx *sqlx.Tx, o *model.Order, userID string) error {
	first, err := database.MarkOrderRestockedInTx(ctx, tx, o.ID)
	if err != nil || !first {
		return err
	}
	items, err := database.GetOrderItems(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	for _, it := range items {
		_, err := stock.RecordMovementInTx(ctx, tx, stock.MovementInput{
			ProductID: it.ProductID,
			Kind:      model.MovementReturn,
			Quantity:  it.Quantity,
			Reason:    "Devolução do pedido " + o.Number,
			Reference: o.ID,
			UserID:    userID,
		})
		if err != nil {
			return fmt.Errorf("failed to restock %s of order %s: %w", it.SKU, o.Number, err)
		}
	}
	return nil
}

// Transition runs TransitionInTx with the tracking code and note in the
// same transaction, then notifies the customer and publishes the change.
func (s *Service) Transition(ctx context.Context, id, to string, opts TransitionOptions) (*model.Order, bool, error) {
	var o *model.Order
	var changed bool
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		o, changed, err = TransitionInTx(ctx, tx, id, to, opts.UserID)
		if err != nil {
			return err
		}
		if opts.TrackingCode != "" && opts.TrackingCode != o.TrackingCode {
			if err := database.UpdateOrderTracking(ctx, tx, id, opts.TrackingCode); err != nil {
				return err
			}
			o.TrackingCode = opts.TrackingCode
		}
		if opts.Note != "" {
			note := fmt.Sprintf("[%s] %s", s.now().UTC().Format("2006-01-02 15:04"), opts.Note)
			if err := database.AppendOrderNote(ctx, tx, id, note); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return o, false, err
	}
	if changed {
		s.log.Info("order status changed", zap.String("order", o.Number), zap.String("status", o.Status))
		if opts.Notify {
			s.notifier.OrderStatusChanged(ctx, *o)
		}
		s.Publish("order.updated", o)
	}
	return o, changed, nil
}

// Publish sends an order event to the dashboard feed.
func (s *Service) Publish(eventType string, o *model.Order) {
	if s.hub == nil || o == nil {
		return
	}
	s.hub.Publish(realtime.TopicAdmin, realtime.Event{
		Type: eventType,
		Data: map[string]interface{}{
			"id":         o.ID,
			"number":     o.Number,
			"status":     o.Status,
			"totalCents": o.TotalCents,
		},
		At: s.now().UTC(),
	})
}

// ExpireStale cancels pending orders older than ttl and returns how many
// were cancelled. Orders paid in the meantime are skipped.
func (s *Service) ExpireStale(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	ids, err := database.GetStalePendingOrderIDs(ctx, s.db, s.now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		_, changed, err := s.Transition(ctx, id, model.OrderCancelled, TransitionOptions{
			Note:   "Cancelado automaticamente: pagamento não confirmado no prazo.",
			Notify: true,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrStatusChanged) {
				continue
			}
			return n, fmt.Errorf("failed to expire order %s: %w", id, err)
		}
		if changed {
			n++
			metrics.OrdersExpired.Inc()
		}
	}
	if n > 0 {
		s.log.Info("expired stale pending orders", zap.Int("count", n))
	}
	return n, nil
}
