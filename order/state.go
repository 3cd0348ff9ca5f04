package order

import "liontech/model"

var transitions = map[string][]string{
	model.OrderPending:    {model.OrderPaid, model.OrderCancelled},
	model.OrderPaid:       {model.OrderProcessing, model.OrderCancelled, model.OrderRefunded},
	model.OrderProcessing: {model.OrderShipped, model.OrderCancelled, model.OrderRefunded},
	model.OrderShipped:    {model.OrderDelivered, model.OrderRefunded},
	model.OrderDelivered:  {model.OrderRefunded},
}

// CanTransition reports whether an order may move from one status to
// another. Cancelled and refunded are terminal.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case model.OrderPending, model.OrderPaid, model.OrderProcessing, model.OrderShipped,
		model.OrderDelivered, model.OrderCancelled, model.OrderRefunded:
		return true
	}
	return false
}

// NextStatuses lists the statuses reachable from s.
func NextStatuses(s string) []string {
	next := transitions[s]
	if next == nil {
		return []string{}
	}
	return append([]string(nil), next...)
}

func returnsStock(status string) bool {
	return status == model.OrderCancelled || status == model.OrderRefunded
}
