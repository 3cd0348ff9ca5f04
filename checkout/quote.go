// Package checkout prices carts and turns them into orders.
package checkout

import (
	"liontech/config"
	"liontech/coupon"
	"liontech/model"
	"liontech/money"
)

// Totals is the price breakdown of a cart or order. Every amount is in
// cents.
type Totals struct {
	ItemCount        int    `json:"itemCount"`
	SubtotalCents    int64  `json:"subtotalCents"`
	DiscountCents    int64  `json:"discountCents"`
	PixDiscountCents int64  `json:"pixDiscountCents"`
	ShippingCents    int64  `json:"shippingCents"`
	TotalCents       int64  `json:"totalCents"`
	CouponCode       string `json:"couponCode,omitempty"`
	Subtotal         string `json:"subtotal"`
	Total            string `json:"total"`
}

// Quote computes the totals of lines at their current prices. c must
// already be validated for the subtotal; nil means no coupon.
func Quote(lines []model.CartLine, c *model.Coupon, paymentMethod, deliveryMethod string, s config.Settings) Totals {
	var t Totals
	for _, l := range lines {
		t.ItemCount += l.Quantity
		t.SubtotalCents += l.UnitPriceCents * int64(l.Quantity)
	}
	if c != nil {
		t.CouponCode = c.Code
		t.DiscountCents = coupon.Discount(*c, t.SubtotalCents)
	}
	afterCoupon := t.SubtotalCents - t.DiscountCents
	if paymentMethod == model.PaymentPix && s.PixDiscountPercent > 0 {
		t.PixDiscountCents = money.Percent(afterCoupon, int64(s.PixDiscountPercent))
	}
	discounted := afterCoupon - t.PixDiscountCents

	switch {
	case deliveryMethod == model.DeliveryPickup:
	case t.ItemCount == 0:
	case s.FreeShippingThresholdCents > 0 && discounted >= s.FreeShippingThresholdCents:
	default:
		t.ShippingCents = s.ShippingFeeCents
	}

	t.TotalCents = discounted + t.ShippingCents
	if t.TotalCents < 0 {
		t.TotalCents = 0
	}
	t.Subtotal = money.FormatBRL(t.SubtotalCents)
	t.Total = money.FormatBRL(t.TotalCents)
	return t
}
