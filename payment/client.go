// Package payment talks to the payment gateway (Mercado Pago REST shape)
// and applies its webhook notifications to orders.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"liontech/money"
)

// Gateway payment statuses.
const (
	StatusApproved    = "approved"
	StatusPending     = "pending"
	StatusInProcess   = "in_process"
	StatusAuthorized  = "authorized"
	StatusRejected    = "rejected"
	StatusCancelled   = "cancelled"
	StatusRefunded    = "refunded"
	StatusChargedBack = "charged_back"
)

// ErrInvalidPaymentID is returned for ids that are not gateway payment
// numbers.
var ErrInvalidPaymentID = errors.New("invalid payment id")

// ValidPaymentID reports whether id is a gateway payment number.
func ValidPaymentID(id string) bool {
	if id == "" || len(id) > 20 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Gateway is implemented by Client.
type Gateway interface {
	CreatePayment(ctx context.Context, req Request) (*Payment, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
}

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type Payer struct {
	Email          string          `json:"email"`
	FirstName      string          `json:"first_name,omitempty"`
	LastName       string          `json:"last_name,omitempty"`
	Identification *Identification `json:"identification,omitempty"`
}

// Request creates a payment. Amounts are sent as exact decimal strings.
type Request struct {
	TransactionAmount json.Number `json:"transaction_amount"`
	Description       string      `json:"description"`
	PaymentMethodID   string      `json:"payment_method_id"`
	Token             string      `json:"token,omitempty"`
	Installments      int         `json:"installments,omitempty"`
	ExternalReference string      `json:"external_reference"`
	NotificationURL   string      `json:"notification_url,omitempty"`
	Payer             Payer       `json:"payer"`

	IdempotencyKey string `json:"-"`
}

// Amount converts cents to the gateway's decimal amount.
func Amount(cents int64) json.Number {
	return json.Number(money.FormatDecimal(cents))
}

type TransactionData struct {
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	TicketURL    string `json:"ticket_url"`
}

type PointOfInteraction struct {
	TransactionData TransactionData `json:"transaction_data"`
}

type Payment struct {
	ID                 int64              `json:"id"`
	Status             string             `json:"status"`
	StatusDetail       string             `json:"status_detail"`
	ExternalReference  string             `json:"external_reference"`
	PaymentMethodID    string             `json:"payment_method_id"`
	TransactionAmount  float64            `json:"transaction_amount"`
	PointOfInteraction PointOfInteraction `json:"point_of_interaction"`
}

func (p Payment) IDString() string {
	return strconv.FormatInt(p.ID, 10)
}

// APIError is a non-2xx gateway response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment gateway returned %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		http:        &http.Client{Timeout: 20 * time.Second},
	}
}

// Enabled reports whether an access token is configured.
func (c *Client) Enabled() bool { return c != nil && c.accessToken != "" }

func (c *Client) CreatePayment(ctx context.Context, req Request) (*Payment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("X-Idempotency-Key", req.IdempotencyKey)
	}
	var p Payment
	if err := c.do(httpReq, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if !ValidPaymentID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentID, id)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var p Payment
	if err := c.do(httpReq, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("payment gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return fmt.Errorf("failed to read payment gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Message string `json:"message"`
		}
		json.Unmarshal(body, &e)
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Message}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode payment gateway response: %w", err)
	}
	return nil
}
