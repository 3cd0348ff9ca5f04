package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/auth"
	"liontech/config"
	"liontech/coupon"
	"liontech/database"
	"liontech/mappers"
	"liontech/metrics"
	"liontech/model"
	"liontech/order"
	"liontech/payment"
	"liontech/stock"
	"liontech/whatsapp"
)

const maxNotes = 1000

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrUnavailable     = errors.New("product unavailable")
	ErrOutOfStock      = errors.New("product out of stock")
	ErrPaymentFailed   = errors.New("payment creation failed")
	ErrPaymentRejected = errors.New("payment rejected")
)

// ValidationError is a request field error with a customer-facing
// message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StockError names the line that could not be reserved.
type StockError struct {
	Name      string
	Available int
	Err       error
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%s: %v (available %d)", e.Name, e.Err, e.Available)
}

func (e *StockError) Unwrap() error { return e.Err }

type CustomerInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
}

type DeliveryInput struct {
	Method     string `json:"method"`
	Zip        string `json:"zip"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}

type PaymentInput struct {
	Method          string `json:"method"`
	CardToken       string `json:"cardToken"`
	Installments    int    `json:"installments"`
	PaymentMethodID string `json:"paymentMethodId"`
}

// Request is a checkout submission. Prices are never taken from it.
type Request struct {
	CartID     string        `json:"-"`
	Customer   CustomerInput `json:"customer"`
	Delivery   DeliveryInput `json:"delivery"`
	Payment    PaymentInput  `json:"payment"`
	CouponCode string        `json:"couponCode"`
	Notes      string        `json:"notes"`
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// normalize trims the request and checks every field that does not need
// the database.
func (req *Request) normalize(maxInstallments int) error {
	c := &req.Customer
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = digits(c.Phone)
	c.Document = digits(c.Document)
	if c.Name == "" {
		return &ValidationError{"name", "Informe seu nome."}
	}
	if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
		return &ValidationError{"email", "Informe um e-mail válido."}
	}
	if len(c.Phone) < 10 || len(c.Phone) > 13 {
		return &ValidationError{"phone", "Informe um telefone com DDD."}
	}
	if c.Document != "" && len(c.Document) != 11 && len(c.Document) != 14 {
		return &ValidationError{"document", "CPF ou CNPJ inválido."}
	}

	d := &req.Delivery
	switch d.Method {
	case model.DeliveryPickup:
	case model.DeliveryShipping:
		d.Zip = digits(d.Zip)
		d.State = strings.ToUpper(strings.TrimSpace(d.State))
		for _, f := range []*string{&d.Street, &d.Number, &d.Complement, &d.District, &d.City} {
			*f = strings.TrimSpace(*f)
		}
		if len(d.Zip) != 8 {
			return &ValidationError{"zip", "CEP inválido."}
		}
		if d.Street == "" || d.Number == "" || d.City == "" || len(d.State) != 2 {
			return &ValidationError{"address", "Endereço de entrega incompleto."}
		}
	default:
		return &ValidationError{"delivery", "Escolha entrega ou retirada."}
	}

	p := &req.Payment
	switch p.Method {
	case model.PaymentPix:
		p.Installments = 1
	case model.PaymentCard:
		if p.CardToken == "" || p.PaymentMethodID == "" {
			return &ValidationError{"card", "Dados do cartão ausentes."}
		}
		if p.Installments == 0 {
			p.Installments = 1
		}
		if p.Installments < 1 || p.Installments > maxInstallments {
			return &ValidationError{"installments", fmt.Sprintf("Parcelamento em até %dx.", maxInstallments)}
		}
	default:
		return &ValidationError{"payment", "Escolha PIX ou cartão."}
	}
	req.CouponCode = strings.TrimSpace(req.CouponCode)
	req.Notes = strings.TrimSpace(req.Notes)
	req.Notes = mappers.Truncate(req.Notes, maxNotes)
	return nil
}

// Service places orders.
type Service struct {
	db        *sqlx.DB
	gateway   payment.Gateway
	orders    *order.Service
	notifier  *whatsapp.Notifier
	log       *zap.Logger
	settings  func() config.Settings
	publicURL string
	now       func() time.Time
}

// NewService wires checkout. gateway may be nil, in which case orders stay
// pending without payment instructions.
func NewService(db *sqlx.DB, gateway payment.Gateway, orders *order.Service, notifier *whatsapp.Notifier,
	log *zap.Logger, settings func() config.Settings, publicURL string) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if settings == nil {
		settings = config.GetConfig
	}
	return &Service{
		db:        db,
		gateway:   gateway,
		orders:    orders,
		notifier:  notifier,
		log:       log,
		settings:  settings,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// PlaceOrder turns the cart into a pending order, then creates its payment.
// The order, its items, the stock sales, the coupon use and the cart
// clearing commit together. A failed payment creation cancels the order,
// which returns the stock and the coupon use.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*model.OrderDetail, error) {
	if req.CartID == "" {
		return nil, ErrEmptyCart
	}
	settings := s.settings()
	if err := req.normalize(settings.MaxInstallments); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var orderID string
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		id, err := s.createOrderInTx(ctx, tx, req, settings, now)
		orderID = id
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.OrdersCreated.Inc()

	o, err := s.createPayment(ctx, orderID, req)
	if err != nil {
		return nil, err
	}

	s.notifier.OrderCreated(ctx, *o)
	s.orders.Publish("order.created", &o.Order)
	s.log.Info("order placed", zap.String("order", o.Number), zap.Int64("totalCents", o.TotalCents),
		zap.String("payment", o.PaymentMethod))
	return o, nil
}

func (s *Service) createOrderInTx(ctx context.Context, tx *sqlx.Tx, req Request, settings config.Settings, now time.Time) (string, error) {
	lines, err := database.GetCartLines(ctx, tx, req.CartID)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", ErrEmptyCart
	}
	var subtotal int64
	for _, l := range lines {
		if !l.Active {
			return "", &StockError{Name: l.Name, Err: ErrUnavailable}
		}
		if l.Quantity > l.Stock {
			return "", &StockError{Name: l.Name, Available: l.Stock, Err: ErrOutOfStock}
		}
		subtotal += l.UnitPriceCents * int64(l.Quantity)
	}

	var c *model.Coupon
	if req.CouponCode != "" {
		c, _, err = coupon.RedeemInTx(ctx, tx, req.CouponCode, subtotal, now)
		if err != nil {
			return "", err
		}
	}
	totals := Quote(lines, c, req.Payment.Method, req.Delivery.Method, settings)

	cust := &model.Customer{
		Name:     req.Customer.Name,
		Email:    req.Customer.Email,
		Phone:    req.Customer.Phone,
		Document: req.Customer.Document,
	}
	if err := database.UpsertCustomerInTx(ctx, tx, cust); err != nil {
		return "", err
	}

	day := now.In(settings.StoreLocation()).Format("060102")
	number, err := database.NextSequenceInTx(ctx, tx, "ORDER-"+day, "LT"+day, 4)
	if err != nil {
		return "", err
	}

	o := &model.Order{
		ID:               uuid.NewString(),
		Number:           number,
		AccessToken:      auth.NewAccessToken(),
		CustomerID:       cust.ID,
		CustomerName:     cust.Name,
		CustomerEmail:    cust.Email,
		CustomerPhone:    cust.Phone,
		CustomerDocument: cust.Document,
		DeliveryMethod:   req.Delivery.Method,
		SubtotalCents:    totals.SubtotalCents,
		DiscountCents:    totals.DiscountCents,
		PixDiscountCents: totals.PixDiscountCents,
		ShippingCents:    totals.ShippingCents,
		TotalCents:       totals.TotalCents,
		CouponCode:       totals.CouponCode,
		PaymentMethod:    req.Payment.Method,
		Installments:     req.Payment.Installments,
		Status:           model.OrderPending,
		Notes:            req.Notes,
	}
	if req.Delivery.Method == model.DeliveryShipping {
		d := req.Delivery
		o.ShipZip, o.ShipStreet, o.ShipNumber, o.ShipComplement = d.Zip, d.Street, d.Number, d.Complement
		o.ShipDistrict, o.ShipCity, o.ShipState = d.District, d.City, d.State
	}
	if err := database.InsertOrderInTx(ctx, tx, o); err != nil {
		return "", err
	}

	for _, l := range lines {
		item := model.OrderItem{
			ID:             uuid.NewString(),
			OrderID:        o.ID,
			ProductID:      l.ProductID,
			SKU:            l.SKU,
			Name:           l.Name,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
			LineTotalCents: l.UnitPriceCents * int64(l.Quantity),
		}
		if err := database.InsertOrderItemInTx(ctx, tx, item); err != nil {
			return "", err
		}
		_, err := stock.RecordMovementInTx(ctx, tx, stock.MovementInput{
			ProductID: l.ProductID,
			Kind:      model.MovementSale,
			Quantity:  l.Quantity,
			Reason:    "Venda " + o.Number,
			Reference: o.ID,
		})
		if err != nil {
			if errors.Is(err, stock.ErrInsufficient) || errors.Is(err, stock.ErrConcurrentUpdate) {
				available, _ := database.GetProductStock(ctx, tx, l.ProductID)
				return "", &StockError{Name: l.Name, Available: available, Err: ErrOutOfStock}
			}
			return "", err
		}
	}

	if err := database.ClearCart(ctx, tx, req.CartID); err != nil {
		return "", err
	}
	return o.ID, nil
}

func payer(c CustomerInput) payment.Payer {
	first, last, _ := strings.Cut(c.Name, " ")
	p := payment.Payer{Email: c.Email, FirstName: first, LastName: strings.TrimSpace(last)}
	switch len(c.Document) {
	case 11:
		p.Identification = &payment.Identification{Type: "CPF", Number: c.Document}
	case 14:
		p.Identification = &payment.Identification{Type: "CNPJ", Number: c.Document}
	}
	return p
}

// createPayment registers the order at the gateway and stores the payment
// instructions. The order id is the idempotency key, so a retried call
// cannot charge twice.
func (s *Service) createPayment(ctx context.Context, orderID string, req Request) (*model.OrderDetail, error) {
	o, err := database.GetOrderDetail(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		s.log.Warn("payment gateway disabled, order left pending", zap.String("order", o.Number))
		return o, nil
	}

	preq := payment.Request{
		TransactionAmount: payment.Amount(o.TotalCents),
		Description:       s.settings().StoreName + " - pedido " + o.Number,
		ExternalReference: o.ID,
		Payer:             payer(req.Customer),
		IdempotencyKey:    o.ID,
	}
	if s.publicURL != "" {
		preq.NotificationURL = s.publicURL + "/api/webhooks/payment"
	}
	if req.Payment.Method == model.PaymentPix {
		preq.PaymentMethodID = "pix"
	} else {
		preq.PaymentMethodID = req.Payment.PaymentMethodID
		preq.Token = req.Payment.CardToken
		preq.Installments = req.Payment.Installments
	}

	p, err := s.gateway.CreatePayment(ctx, preq)
	if err != nil {
		s.log.Error("payment creation failed", zap.String("order", o.Number), zap.Error(err))
		s.cancel(ctx, o.ID, "Falha ao criar o pagamento.")
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	td := p.PointOfInteraction.TransactionData
	update := database.PaymentUpdate{
		PaymentID:       p.IDString(),
		PaymentStatus:   p.Status,
		PixQRCode:       td.QRCode,
		PixQRCodeBase64: td.QRCodeBase64,
		PaymentURL:      td.TicketURL,
	}
	if err := database.UpdateOrderPayment(ctx, s.db, o.ID, update); err != nil {
		return nil, err
	}

	switch payment.OrderStatus(p.Status) {
	case model.OrderPaid:
		if _, _, err := s.orders.Transition(ctx, o.ID, model.OrderPaid, order.TransitionOptions{}); err != nil {
			return nil, err
		}
	case model.OrderCancelled:
		s.cancel(ctx, o.ID, "Pagamento recusado: "+p.StatusDetail)
		return nil, fmt.Errorf("%w: %s", ErrPaymentRejected, p.StatusDetail)
	}
	return database.GetOrderDetail(ctx, s.db, o.ID)
}

func (s *Service) cancel(ctx context.Context, id, note string) {
	ctx = context.WithoutCancel(ctx)
	if _, _, err := s.orders.Transition(ctx, id, model.OrderCancelled, order.TransitionOptions{Note: note}); err != nil {
		s.log.Error("failed to cancel order after payment failure", zap.String("order", id), zap.Error(err))
	}
}
