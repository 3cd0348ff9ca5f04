package render

import (
	"fmt"
	"strings"
	"time"

	"liontech/mappers"
	"liontech/model"
	"liontech/money"
)

// Texts sent over WhatsApp. WhatsApp renders *bold* and _italic_.

func OrderCreatedCustomerText(storeName string, o model.OrderDetail) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Olá, %s! Recebemos seu pedido *%s* na %s.\n\n", firstName(o.CustomerName), o.Number, storeName)
	for _, it := range o.Items {
		fmt.Fprintf(&sb, "• %dx %s - %s\n", it.Quantity, it.Name, money.FormatBRL(it.LineTotalCents))
	}
	fmt.Fprintf(&sb, "\nTotal: *%s*\n", money.FormatBRL(o.TotalCents))
	if o.PaymentMethod == model.PaymentPix && o.Status == model.OrderPending {
		sb.WriteString("\nPara pagar com PIX, use o código copia e cola abaixo:\n")
		sb.WriteString(o.PixQRCode)
		if o.PaymentURL != "" {
			fmt.Fprintf(&sb, "\n\nOu acesse: %s", o.PaymentURL)
		}
	} else if o.Status == model.OrderPaid {
		sb.WriteString("\nPagamento aprovado. Avisaremos quando o pedido for enviado.")
	}
	return sb.String()
}

func OrderCreatedStaffText(o model.OrderDetail) string {
	items := 0
	for _, it := range o.Items {
		items += it.Quantity
	}
	delivery := "envio"
	if o.DeliveryMethod == model.DeliveryPickup {
		delivery = "retirada"
	}
	return fmt.Sprintf("Novo pedido *%s*\nCliente: %s (%s)\nItens: %d\nTotal: %s\nPagamento: %s\nEntrega: %s",
		o.Number, o.CustomerName, o.CustomerPhone, items, money.FormatBRL(o.TotalCents),
		strings.ToUpper(o.PaymentMethod), delivery)
}

func OrderStatusText(storeName string, o model.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Olá, %s! Seu pedido *%s* na %s agora está: *%s*.", firstName(o.CustomerName), o.Number, storeName, StatusLabel(o.Status))
	if o.Status == model.OrderShipped && o.TrackingCode != "" {
		fmt.Fprintf(&sb, "\nCódigo de rastreio: %s", o.TrackingCode)
	}
	if o.Status == model.OrderCancelled {
		sb.WriteString("\nSe tiver dúvidas, responda esta mensagem.")
	}
	return sb.String()
}

func TicketCreatedStaffText(t model.ChatTicket, firstMessage string) string {
	return fmt.Sprintf("Novo atendimento *%s*\n%s (%s)\nAssunto: %s\n\n%s",
		t.Number, t.CustomerName, t.CustomerPhone, t.Subject, truncate(firstMessage, 300))
}

func TicketReplyCustomerText(storeName string, t model.ChatTicket, reply model.ChatMessage) string {
	return fmt.Sprintf("%s respondeu seu atendimento *%s*:\n\n%s", storeName, t.Number, truncate(reply.Body, 1000))
}

func ContactStaffText(m model.ContactMessage) string {
	return fmt.Sprintf("Nova mensagem de contato\n%s <%s> %s\nAssunto: %s\n\n%s",
		m.Name, m.Email, m.Phone, m.Subject, truncate(m.Message, 500))
}

// OutsideHoursText is the system message appended to tickets opened while
// the store is closed.
func OutsideHoursText(next time.Time, ok bool) string {
	if !ok {
		return "No momento estamos fora do horário de atendimento. Responderemos assim que possível."
	}
	return fmt.Sprintf("No momento estamos fora do horário de atendimento. Voltamos %s às %s.",
		weekdayNames[next.Weekday()], next.Format("15:04"))
}

var weekdayNames = [...]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"}

func WeekdayName(d time.Weekday) string { return weekdayNames[d] }

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return name
}

func truncate(s string, n int) string {
	if cut := mappers.Truncate(s, n); cut != s {
		return cut + "…"
	}
	return s
}
