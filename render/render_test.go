package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"liontech/model"
)

func sampleOrder() model.OrderDetail {
	return model.OrderDetail{
		Order: model.Order{
			Number:         "LT2610190001",
			CustomerName:   "Ana <b>Souza</b>",
			CustomerEmail:  "ana@example.com",
			CustomerPhone:  "11999998888",
			DeliveryMethod: model.DeliveryShipping,
			ShipStreet:     "Rua A",
			ShipNumber:     "10",
			ShipDistrict:   "Centro",
			ShipCity:       "São Paulo",
			ShipState:      "SP",
			ShipZip:        "01001000",
			SubtotalCents:  20000,
			DiscountCents:  2000,
			ShippingCents:  2500,
			TotalCents:     20500,
			CouponCode:     "BEMVINDO",
			PaymentMethod:  model.PaymentPix,
			PixQRCode:      "000201...",
			Status:         model.OrderPending,
			CreatedAt:      time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC),
		},
		Items: []model.OrderItem{
			{SKU: "NB-01", Name: "Notebook", Quantity: 2, UnitPriceCents: 10000, LineTotalCents: 20000},
		},
	}
}

func TestRenderOrderReceiptHTML(t *testing.T) {
	out := RenderOrderReceiptHTML(sampleOrder(), "Lion Tech", "Rua B, 1")
	assert.Contains(t, out, "Pedido LT2610190001")
	assert.Contains(t, out, "Ana &lt;b&gt;Souza&lt;/b&gt;")
	assert.NotContains(t, out, "<b>Souza</b>")
	assert.Contains(t, out, "R$ 205,00")
	assert.Contains(t, out, "Cupom BEMVINDO")
	assert.Contains(t, out, "Rua A, 10 - Centro - São Paulo/SP - CEP 01001000")
}

func TestOrderCreatedCustomerText(t *testing.T) {
	out := OrderCreatedCustomerText("Lion Tech", sampleOrder())
	assert.True(t, strings.HasPrefix(out, "Olá, Ana!"))
	assert.Contains(t, out, "2x Notebook - R$ 200,00")
	assert.Contains(t, out, "000201...")
}

func TestOutsideHoursText(t *testing.T) {
	next := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) // Monday
	assert.Equal(t, "No momento estamos fora do horário de atendimento. Voltamos segunda-feira às 09:00.", OutsideHoursText(next, true))
	assert.Contains(t, OutsideHoursText(time.Time{}, false), "assim que possível")
}
