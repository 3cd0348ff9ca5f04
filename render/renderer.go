package render

import (
	"fmt"
	"html"
	"strings"

	"liontech/model"
	"liontech/money"
)

var statusLabels = map[string]string{
	model.OrderPending:    "Aguardando pagamento",
	model.OrderPaid:       "Pago",
	model.OrderProcessing: "Em separação",
	model.OrderShipped:    "Enviado",
	model.OrderDelivered:  "Entregue",
	model.OrderCancelled:  "Cancelado",
	model.OrderRefunded:   "Reembolsado",
}

// StatusLabel returns the customer facing name of an order status.
func StatusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status
}

// RenderOrderReceiptHTML builds the printable receipt of an order. The same
// HTML is converted to PDF by the automation package.
func RenderOrderReceiptHTML(o model.OrderDetail, storeName, storeAddress string) string {
	var sb strings.Builder
	e := html.EscapeString

	sb.WriteString(`<!DOCTYPE html><html lang="pt-BR"><head><meta charset="utf-8">`)
	sb.WriteString(fmt.Sprintf(`<title>Pedido %s</title>`, e(o.Number)))
	sb.WriteString(`<style>
body { font-family: Arial, sans-serif; font-size: 12px; margin: 24px; color: #111; }
h1 { font-size: 18px; margin: 0 0 4px; }
table { width: 100%; border-collapse: collapse; margin-top: 12px; }
th, td { border-bottom: 1px solid #ddd; padding: 4px 6px; }
th { text-align: left; background: #f3f3f3; }
.right { text-align: right; }
.totals td { border: none; }
.muted { color: #666; }
</style></head><body>`)

	sb.WriteString(fmt.Sprintf(`<h1>%s</h1>`, e(storeName)))
	if storeAddress != "" {
		sb.WriteString(fmt.Sprintf(`<div class="muted">%s</div>`, e(storeAddress)))
	}
	sb.WriteString(fmt.Sprintf(`<h2>Pedido %s</h2>`, e(o.Number)))
	sb.WriteString(fmt.Sprintf(`<div>Data: %s</div>`, o.CreatedAt.Format("02/01/2006 15:04")))
	sb.WriteString(fmt.Sprintf(`<div>Situação: %s</div>`, e(StatusLabel(o.Status))))
	sb.WriteString(fmt.Sprintf(`<div>Cliente: %s &lt;%s&gt; %s</div>`, e(o.CustomerName), e(o.CustomerEmail), e(o.CustomerPhone)))
	if o.CustomerDocument != "" {
		sb.WriteString(fmt.Sprintf(`<div>CPF/CNPJ: %s</div>`, e(o.CustomerDocument)))
	}
	if o.DeliveryMethod == model.DeliveryPickup {
		sb.WriteString(`<div>Entrega: retirada na loja</div>`)
	} else {
		sb.WriteString(fmt.Sprintf(`<div>Entrega: %s</div>`, e(ShippingAddress(o.Order))))
	}
	if o.TrackingCode != "" {
		sb.WriteString(fmt.Sprintf(`<div>Rastreio: %s</div>`, e(o.TrackingCode)))
	}

	sb.WriteString(`<table><thead><tr><th>SKU</th><th>Produto</th><th class="right">Qtd</th><th class="right">Unitário</th><th class="right">Total</th></tr></thead><tbody>`)
	if len(o.Items) == 0 {
		sb.WriteString(`<tr><td colspan="5">Nenhum item.</td></tr>`)
	}
	for _, it := range o.Items {
		sb.WriteString(`<tr>`)
		sb.WriteString(fmt.Sprintf(`<td>%s</td>`, e(it.SKU)))
		sb.WriteString(fmt.Sprintf(`<td>%s</td>`, e(it.Name)))
		sb.WriteString(fmt.Sprintf(`<td class="right">%d</td>`, it.Quantity))
		sb.WriteString(fmt.Sprintf(`<td class="right">%s</td>`, money.FormatBRL(it.UnitPriceCents)))
		sb.WriteString(fmt.Sprintf(`<td class="right">%s</td>`, money.FormatBRL(it.LineTotalCents)))
		sb.WriteString(`</tr>`)
	}
	sb.WriteString(`</tbody></table>`)

	sb.WriteString(`<table class="totals">`)
	writeTotal := func(label string, cents int64) {
		sb.WriteString(fmt.Sprintf(`<tr><td class="right">%s</td><td class="right" style="width:120px">%s</td></tr>`, label, money.FormatBRL(cents)))
	}
	writeTotal("Subtotal", o.SubtotalCents)
	if o.DiscountCents > 0 {
		writeTotal(fmt.Sprintf("Cupom %s", e(o.CouponCode)), -o.DiscountCents)
	}
	if o.PixDiscountCents > 0 {
		writeTotal("Desconto PIX", -o.PixDiscountCents)
	}
	writeTotal("Frete", o.ShippingCents)
	writeTotal("<strong>Total</strong>", o.TotalCents)
	sb.WriteString(`</table>`)

	sb.WriteString(fmt.Sprintf(`<p class="muted">Pagamento: %s`, e(paymentLabel(o.Order))))
	if o.PaymentID != "" {
		sb.WriteString(fmt.Sprintf(` (transação %s)`, e(o.PaymentID)))
	}
	sb.WriteString(`</p></body></html>`)
	return sb.String()
}

// ShippingAddress formats the delivery address on one line.
func ShippingAddress(o model.Order) string {
	parts := []string{strings.TrimSpace(o.ShipStreet + ", " + o.ShipNumber)}
	if o.ShipComplement != "" {
		parts = append(parts, o.ShipComplement)
	}
	parts = append(parts, o.ShipDistrict, o.ShipCity+"/"+o.ShipState, "CEP "+o.ShipZip)
	return strings.Join(parts, " - ")
}

func paymentLabel(o model.Order) string {
	if o.PaymentMethod == model.PaymentPix {
		return "PIX"
	}
	if o.Installments > 1 {
		return fmt.Sprintf("Cartão de crédito em %dx", o.Installments)
	}
	return "Cartão de crédito à vista"
}
