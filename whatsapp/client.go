// Package whatsapp sends text messages through an Evolution API style
// WhatsApp gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the gateway. A Client without base URL is disabled.
type Client struct {
	baseURL  string
	apiKey   string
	instance string
	http     *http.Client
}

func NewClient(baseURL, apiKey, instance string) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		instance: instance,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Enabled() bool { return c != nil && c.baseURL != "" }

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// SendText delivers text to phone. The phone is normalized first.
func (c *Client) SendText(ctx context.Context, phone, text string) error {
	number, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	body, err := json.Marshal(sendTextRequest{Number: number, Text: text})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, url.PathEscape(c.instance))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// NormalizePhone strips everything but digits and prepends the Brazilian
// country code when missing. Local numbers have 10 or 11 digits (area code
// plus 8 or 9 digit number).
func NormalizePhone(phone string) (string, error) {
	var sb strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(sb.String(), "0")
	switch {
	case len(digits) == 10 || len(digits) == 11:
		return "55" + digits, nil
	case (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, "55"):
		return digits, nil
	default:
		return "", fmt.Errorf("invalid phone number %q", phone)
	}
}
