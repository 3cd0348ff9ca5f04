// Package cart keeps the server-side shopping cart of a storefront
// visitor.
package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"liontech/checkout"
	"liontech/database"
)

const (
	MaxQuantity = 99
	cookieTTL   = 30 * 24 * time.Hour
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnavailable     = errors.New("product unavailable")
	ErrQuantity        = errors.New("quantity out of range")
)

// StockError reports a quantity above the product's stock.
type StockError struct {
	Name      string
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("only %d of %s available", e.Available, e.Name)
}

// ensureCart returns the cart id of the request, creating the cart and its
// cookie when there is none yet.
func ensureCart(ctx context.Context, w http.ResponseWriter, r *http.Request, db *sqlx.DB) (string, error) {
	id := checkout.CartIDFromRequest(r)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	if err := database.EnsureCart(ctx, db, id); err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     checkout.CartCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cookieTTL / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// SetQuantity sets the line of productID to quantity after checking the
// product can be sold in that amount. add makes quantity relative to the
// current line.
func SetQuantity(ctx context.Context, db *sqlx.DB, cartID, productID string, quantity int, add bool) (int, error) {
	p, err := database.GetProductByID(ctx, db, productID)
	if err != nil {
		if database.IsNotFound(err) {
			return 0, ErrProductNotFound
		}
		return 0, err
	}
	if !p.Active {
		return 0, ErrUnavailable
	}
	if add {
		current, err := database.GetCartItemQuantity(ctx, db, cartID, productID)
		if err != nil {
			return 0, err
		}
		quantity += current
	}
	if quantity < 1 || quantity > MaxQuantity {
		return 0, ErrQuantity
	}
	if quantity > p.Stock {
		return 0, &StockError{Name: p.Name, Available: p.Stock}
	}
	if err := database.SetCartItem(ctx, db, cartID, productID, quantity); err != nil {
		return 0, err
	}
	return quantity, nil
}
