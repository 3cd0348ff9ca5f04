package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/config"
	"liontech/coupon"
	"liontech/database"
	"liontech/dbtest"
	"liontech/model"
	"liontech/order"
	"liontech/payment"
)

func TestQuote(t *testing.T) {
	s := config.Settings{ShippingFeeCents: 2500, FreeShippingThresholdCents: 30000, PixDiscountPercent: 5}
	lines := []model.CartLine{
		{UnitPriceCents: 10000, Quantity: 2},
		{UnitPriceCents: 1999, Quantity: 1},
	}

	q := Quote(lines, nil, model.PaymentCard, model.DeliveryShipping, s)
	assert.Equal(t, int64(21999), q.SubtotalCents)
	assert.Equal(t, int64(2500), q.ShippingCents)
	assert.Equal(t, int64(24499), q.TotalCents)
	assert.Equal(t, 3, q.ItemCount)

	q = Quote(lines, nil, model.PaymentPix, model.DeliveryShipping, s)
	assert.Equal(t, int64(1099), q.PixDiscountCents)
	assert.Equal(t, int64(21999-1099+2500), q.TotalCents)

	pct := &model.Coupon{Code: "DEZ", Kind: coupon.KindPercentage, Value: 10}
	q = Quote(lines, pct, model.PaymentPix, model.DeliveryPickup, s)
	assert.Equal(t, int64(2199), q.DiscountCents)
	assert.Equal(t, int64((21999-2199)*5/100), q.PixDiscountCents)
	assert.Zero(t, q.ShippingCents)
	assert.Equal(t, "DEZ", q.CouponCode)

	big := []model.CartLine{{UnitPriceCents: 30000, Quantity: 1}}
	q = Quote(big, nil, model.PaymentCard, model.DeliveryShipping, s)
	assert.Zero(t, q.ShippingCents, "free shipping at the threshold")

	s.FreeShippingThresholdCents = 0
	q = Quote(big, nil, model.PaymentCard, model.DeliveryShipping, s)
	assert.Equal(t, int64(2500), q.ShippingCents, "threshold 0 never frees shipping")

	fixed := &model.Coupon{Code: "ALL", Kind: coupon.KindFixed, Value: 99999}
	q = Quote(big, fixed, model.PaymentCard, model.DeliveryPickup, s)
	assert.Zero(t, q.TotalCents)

	q = Quote(nil, nil, model.PaymentCard, model.DeliveryShipping, s)
	assert.Zero(t, q.TotalCents)
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []payment.Request
	payment  *payment.Payment
	err      error
}

func (f *fakeGateway) CreatePayment(ctx context.Context, req payment.Request) (*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	p := *f.payment
	p.ExternalReference = req.ExternalReference
	return &p, nil
}

func (f *fakeGateway) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	return nil, errors.New("not implemented")
}

type fixture struct {
	db      *sqlx.DB
	svc     *Service
	gateway *fakeGateway
	a, b    *model.Product
	cartID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	gw := &fakeGateway{payment: &payment.Payment{
		ID:     987654,
		Status: payment.StatusPending,
		PointOfInteraction: payment.PointOfInteraction{TransactionData: payment.TransactionData{
			QRCode: "00020126pix", QRCodeBase64: "iVBOR", TicketURL: "https://pay.example/ticket",
		}},
	}}
	settings := func() config.Settings {
		s := config.Defaults()
		s.Timezone = ""
		s.PixDiscountPercent = 5
		s.ShippingFeeCents = 2000
		return s
	}
	orders := order.NewService(db, nil, nil, zap.NewNop())
	f := &fixture{
		db:      db,
		gateway: gw,
		svc:     NewService(db, gw, orders, nil, zap.NewNop(), settings, "https://loja.example"),
		a:       dbtest.Product(t, db, "MOUSE", 5000, 10),
		b:       dbtest.Product(t, db, "PAD", 2500, 1),
		cartID:  uuid.NewString(),
	}
	ctx := context.Background()
	require.NoError(t, database.EnsureCart(ctx, db, f.cartID))
	require.NoError(t, database.SetCartItem(ctx, db, f.cartID, f.a.ID, 2))
	require.NoError(t, database.SetCartItem(ctx, db, f.cartID, f.b.ID, 1))
	return f
}

func (f *fixture) request() Request {
	return Request{
		CartID:   f.cartID,
		Customer: CustomerInput{Name: "Ana Souza", Email: "Ana@Example.com", Phone: "(11) 98765-4321", Document: "123.456.789-09"},
		Delivery: DeliveryInput{Method: model.DeliveryShipping, Zip: "01310-100", Street: "Av. Paulista", Number: "1000", City: "São Paulo", State: "sp"},
		Payment:  PaymentInput{Method: model.PaymentPix},
	}
}

func stockOf(t *testing.T, db *sqlx.DB, id string) int {
	n, err := database.GetProductStock(context.Background(), db, id)
	require.NoError(t, err)
	return n
}

func TestPlaceOrderPix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.PlaceOrder(ctx, f.request())
	require.NoError(t, err)

	assert.Regexp(t, `^LT\d{6}0001$`, o.Number)
	assert.Len(t, o.AccessToken, 32)
	assert.Equal(t, model.OrderPending, o.Status)
	assert.Equal(t, int64(12500), o.SubtotalCents)
	assert.Equal(t, int64(625), o.PixDiscountCents)
	assert.Equal(t, int64(2000), o.ShippingCents)
	assert.Equal(t, int64(12500-625+2000), o.TotalCents)
	assert.Equal(t, "987654", o.PaymentID)
	assert.Equal(t, "00020126pix", o.PixQRCode)
	assert.Equal(t, "11987654321", o.CustomerPhone)
	assert.Equal(t, "ana@example.com", o.CustomerEmail)
	assert.Equal(t, "SP", o.ShipState)
	assert.Len(t, o.Items, 2)

	assert.Equal(t, 8, stockOf(t, f.db, f.a.ID))
	assert.Equal(t, 0, stockOf(t, f.db, f.b.ID))

	lines, err := database.GetCartLines(ctx, f.db, f.cartID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, "pix", req.PaymentMethodID)
	assert.Equal(t, o.ID, req.IdempotencyKey)
	assert.Equal(t, "138.75", req.TransactionAmount.String())
	assert.Equal(t, "https://loja.example/api/webhooks/payment", req.NotificationURL)
	require.NotNil(t, req.Payer.Identification)
	assert.Equal(t, "CPF", req.Payer.Identification.Type)
}

func TestPlaceOrderPaymentFailureCancelsAndRestocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := model.Coupon{ID: uuid.NewString(), Code: "DEZ", Kind: coupon.KindPercentage, Value: 10, MaxUses: 1, Active: true, StartsAt: time.Now().Add(-time.Hour)}
	require.NoError(t, database.SaveCoupon(ctx, f.db, &c))
	f.gateway.err = &payment.APIError{Status: 500, Message: "boom"}

	req := f.request()
	req.CouponCode = "dez"
	_, err := f.svc.PlaceOrder(ctx, req)
	assert.ErrorIs(t, err, ErrPaymentFailed)

	assert.Equal(t, 10, stockOf(t, f.db, f.a.ID))
	assert.Equal(t, 1, stockOf(t, f.db, f.b.ID))

	got, err := database.GetCouponByID(ctx, f.db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsedCount)

	orders, err := database.GetFilteredOrders(ctx, f.db, model.OrderFilters{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, model.OrderCancelled, orders[0].Status)
	assert.True(t, orders[0].Restocked)
	assert.Equal(t, int64(1250), orders[0].DiscountCents)
}

func TestPlaceOrderInsufficientStockCommitsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, database.SetCartItem(ctx, f.db, f.cartID, f.b.ID, 3))

	_, err := f.svc.PlaceOrder(ctx, f.request())
	var serr *StockError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 1, serr.Available)

	assert.Equal(t, 10, stockOf(t, f.db, f.a.ID))
	orders, err := database.GetFilteredOrders(ctx, f.db, model.OrderFilters{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.gateway.requests)
}

func TestPlaceOrderCardApprovedIsPaid(t *testing.T) {
	f := newFixture(t)
	f.gateway.payment = &payment.Payment{ID: 1, Status: payment.StatusApproved}
	req := f.request()
	req.Payment = PaymentInput{Method: model.PaymentCard, CardToken: "tok", PaymentMethodID: "visa", Installments: 3}

	o, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaid, o.Status)
	assert.NotNil(t, o.PaidAt)
	assert.Zero(t, o.PixDiscountCents)
	assert.Equal(t, 3, f.gateway.requests[0].Installments)
}

func TestPlaceOrderCardRejected(t *testing.T) {
	f := newFixture(t)
	f.gateway.payment = &payment.Payment{ID: 2, Status: payment.StatusRejected, StatusDetail: "cc_rejected_insufficient_amount"}
	req := f.request()
	req.Payment = PaymentInput{Method: model.PaymentCard, CardToken: "tok", PaymentMethodID: "visa"}

	_, err := f.svc.PlaceOrder(context.Background(), req)
	assert.ErrorIs(t, err, ErrPaymentRejected)
	assert.Equal(t, 10, stockOf(t, f.db, f.a.ID))
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	base := Request{
		Customer: CustomerInput{Name: "Ana", Email: "ana@example.com", Phone: "11987654321"},
		Delivery: DeliveryInput{Method: model.DeliveryPickup},
		Payment:  PaymentInput{Method: model.PaymentPix},
	}
	cases := map[string]func(r *Request){
		"email":    func(r *Request) { r.Customer.Email = "ana" },
		"phone":    func(r *Request) { r.Customer.Phone = "1234" },
		"document": func(r *Request) { r.Customer.Document = "123" },
		"zip":      func(r *Request) { r.Delivery = DeliveryInput{Method: model.DeliveryShipping, Zip: "1"} },
		"delivery": func(r *Request) { r.Delivery.Method = "drone" },
		"card":     func(r *Request) { r.Payment = PaymentInput{Method: model.PaymentCard} },
		"installments": func(r *Request) {
			r.Payment = PaymentInput{Method: model.PaymentCard, CardToken: "t", PaymentMethodID: "visa", Installments: 13}
		},
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			req := base
			mutate(&req)
			err := req.normalize(12)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, field, verr.Field)
		})
	}
	ok := base
	assert.NoError(t, ok.normalize(12))
}

func TestNormalizeTruncatesNotesOnCharacters(t *testing.T) {
	req := Request{
		Customer: CustomerInput{Name: "Ana", Email: "ana@example.com", Phone: "11987654321"},
		Delivery: DeliveryInput{Method: model.DeliveryPickup},
		Payment:  PaymentInput{Method: model.PaymentPix},
		Notes:    "  " + strings.Repeat("é", 999) + "ção  ",
	}
	require.NoError(t, req.normalize(12))
	assert.True(t, utf8.ValidString(req.Notes))
	assert.Equal(t, maxNotes, utf8.RuneCountInString(req.Notes))
	assert.Equal(t, strings.Repeat("é", 999)+"ç", req.Notes)
}

func TestCheckoutHandlers(t *testing.T) {
	f := newFixture(t)
	body, err := json.Marshal(f.request())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: CartCookie, Value: f.cartID})
	rec := httptest.NewRecorder()
	PlaceOrderHandler(f.svc)(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view OrderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotEmpty(t, view.AccessToken)

	r := mux.NewRouter()
	r.HandleFunc("/api/orders/{id}", GetOrderHandler(f.db, zap.NewNop()))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/"+view.ID+"?token="+view.AccessToken, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "accessToken")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/"+view.ID+"?token=wrong", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: CartCookie, Value: f.cartID})
	PlaceOrderHandler(f.svc)(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "cart is empty after checkout")
}
