package whatsapp

import (
	"context"
	"time"

	"go.uber.org/zap"

	"liontech/config"
	"liontech/metrics"
	"liontech/model"
	"liontech/render"
)

// Sender is implemented by Client.
type Sender interface {
	SendText(ctx context.Context, phone, text string) error
}

// Notifier sends event notifications to customers and staff. Every send is
// a single best-effort attempt: failures are logged and counted, never
// returned.
type Notifier struct {
	sender   Sender
	log      *zap.Logger
	settings func() config.Settings
	timeout  time.Duration
}

// NewNotifier returns a no-op notifier when sender is nil.
func NewNotifier(sender Sender, log *zap.Logger, settings func() config.Settings) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	if settings == nil {
		settings = config.GetConfig
	}
	return &Notifier{sender: sender, log: log, settings: settings, timeout: 10 * time.Second}
}

func (n *Notifier) send(ctx context.Context, event, phone, text string) {
	if n == nil || n.sender == nil || phone == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.sender.SendText(ctx, phone, text); err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		n.log.Warn("whatsapp notification failed", zap.String("event", event), zap.Error(err))
		return
	}
	metrics.NotificationsSent.WithLabelValues("sent").Inc()
}

func (n *Notifier) sendStaff(ctx context.Context, event, text string) {
	if n == nil {
		return
	}
	for _, phone := range n.settings().StaffPhones {
		n.send(ctx, event, phone, text)
	}
}

func (n *Notifier) OrderCreated(ctx context.Context, o model.OrderDetail) {
	if n == nil {
		return
	}
	s := n.settings()
	n.send(ctx, "order.created", o.CustomerPhone, render.OrderCreatedCustomerText(s.StoreName, o))
	n.sendStaff(ctx, "order.created", render.OrderCreatedStaffText(o))
}

func (n *Notifier) OrderStatusChanged(ctx context.Context, o model.Order) {
	if n == nil {
		return
	}
	n.send(ctx, "order.status", o.CustomerPhone, render.OrderStatusText(n.settings().StoreName, o))
}

func (n *Notifier) TicketCreated(ctx context.Context, t model.ChatTicket, firstMessage string) {
	n.sendStaff(ctx, "ticket.created", render.TicketCreatedStaffText(t, firstMessage))
}

func (n *Notifier) TicketReply(ctx context.Context, t model.ChatTicket, reply model.ChatMessage) {
	if n == nil {
		return
	}
	n.send(ctx, "ticket.reply", t.CustomerPhone, render.TicketReplyCustomerText(n.settings().StoreName, t, reply))
}

func (n *Notifier) ContactReceived(ctx context.Context, m model.ContactMessage) {
	n.sendStaff(ctx, "contact.received", render.ContactStaffText(m))
}
