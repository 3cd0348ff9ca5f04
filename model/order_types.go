package model

import "time"

const (
	OrderPending    = "pending"
	OrderPaid       = "paid"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
	OrderRefunded   = "refunded"
)

const (
	DeliveryShipping = "shipping"
	DeliveryPickup   = "pickup"
)

const (
	PaymentPix  = "pix"
	PaymentCard = "card"
)

type Customer struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Document  string    `db:"document" json:"document"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type CustomerStats struct {
	CustomerID string `db:"customer_id" json:"-"`
	Orders     int    `db:"orders" json:"orders"`
	SpentCents int64  `db:"spent_cents" json:"spentCents"`
}

// CartLine is a cart item joined with the current product data.
type CartLine struct {
	ProductID      string `db:"product_id" json:"productId"`
	Quantity       int    `db:"quantity" json:"quantity"`
	SKU            string `db:"sku" json:"sku"`
	Name           string `db:"name" json:"name"`
	Slug           string `db:"slug" json:"slug"`
	ImageKey       string `db:"image_key" json:"imageKey"`
	UnitPriceCents int64  `db:"price_cents" json:"unitPriceCents"`
	Stock          int    `db:"stock" json:"stock"`
	Active         bool   `db:"active" json:"active"`
}

type Coupon struct {
	ID               string     `db:"id" json:"id"`
	Code             string     `db:"code" json:"code"`
	Kind             string     `db:"kind" json:"kind"`
	Value            int64      `db:"value" json:"value"`
	MinOrderCents    int64      `db:"min_order_cents" json:"minOrderCents"`
	MaxDiscountCents int64      `db:"max_discount_cents" json:"maxDiscountCents"`
	MaxUses          int        `db:"max_uses" json:"maxUses"`
	UsedCount        int        `db:"used_count" json:"usedCount"`
	StartsAt         time.Time  `db:"starts_at" json:"startsAt"`
	ExpiresAt        *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	Active           bool       `db:"active" json:"active"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

type Order struct {
	ID               string     `db:"id" json:"id"`
	Number           string     `db:"number" json:"number"`
	AccessToken      string     `db:"access_token" json:"-"`
	CustomerID       string     `db:"customer_id" json:"customerId"`
	CustomerName     string     `db:"customer_name" json:"customerName"`
	CustomerEmail    string     `db:"customer_email" json:"customerEmail"`
	CustomerPhone    string     `db:"customer_phone" json:"customerPhone"`
	CustomerDocument string     `db:"customer_document" json:"customerDocument"`
	DeliveryMethod   string     `db:"delivery_method" json:"deliveryMethod"`
	ShipZip          string     `db:"ship_zip" json:"shipZip"`
	ShipStreet       string     `db:"ship_street" json:"shipStreet"`
	ShipNumber       string     `db:"ship_number" json:"shipNumber"`
	ShipComplement   string     `db:"ship_complement" json:"shipComplement"`
	ShipDistrict     string     `db:"ship_district" json:"shipDistrict"`
	ShipCity         string     `db:"ship_city" json:"shipCity"`
	ShipState        string     `db:"ship_state" json:"shipState"`
	SubtotalCents    int64      `db:"subtotal_cents" json:"subtotalCents"`
	DiscountCents    int64      `db:"discount_cents" json:"discountCents"`
	PixDiscountCents int64      `db:"pix_discount_cents" json:"pixDiscountCents"`
	ShippingCents    int64      `db:"shipping_cents" json:"shippingCents"`
	TotalCents       int64      `db:"total_cents" json:"totalCents"`
	CouponCode       string     `db:"coupon_code" json:"couponCode"`
	PaymentMethod    string     `db:"payment_method" json:"paymentMethod"`
	Installments     int        `db:"installments" json:"installments"`
	PaymentID        string     `db:"payment_id" json:"paymentId"`
	PaymentStatus    string     `db:"payment_status" json:"paymentStatus"`
	PixQRCode        string     `db:"pix_qr_code" json:"pixQrCode,omitempty"`
	PixQRCodeBase64  string     `db:"pix_qr_code_base64" json:"pixQrCodeBase64,omitempty"`
	PaymentURL       string     `db:"payment_url" json:"paymentUrl,omitempty"`
	Status           string     `db:"status" json:"status"`
	TrackingCode     string     `db:"tracking_code" json:"trackingCode"`
	Notes            string     `db:"notes" json:"notes"`
	Restocked        bool       `db:"restocked" json:"restocked"`
	PaidAt           *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

type OrderItem struct {
	ID             string `db:"id" json:"id"`
	OrderID        string `db:"order_id" json:"orderId"`
	ProductID      string `db:"product_id" json:"productId"`
	SKU            string `db:"sku" json:"sku"`
	Name           string `db:"name" json:"name"`
	UnitPriceCents int64  `db:"unit_price_cents" json:"unitPriceCents"`
	Quantity       int    `db:"quantity" json:"quantity"`
	LineTotalCents int64  `db:"line_total_cents" json:"lineTotalCents"`
}

type OrderFilters struct {
	Status string
	Query  string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// OrderDetail is an order with its lines.
type OrderDetail struct {
	Order
	Items []OrderItem `json:"items"`
}
