// Package pricing applies bulk price changes: percentage adjustments and
// price list files.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jmoiron/sqlx"

	"liontech/database"
	"liontech/model"
	"liontech/parsers"
)

var ErrInvalidPercent = errors.New("percent must be between -99.99 and 1000 and not zero")

// Change is one product price before and after a bulk operation.
type Change struct {
	ProductID string `json:"productId"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	OldCents  int64  `json:"oldPriceCents"`
	NewCents  int64  `json:"newPriceCents"`
}

// AdjustedPrice applies percent to cents, rounding half up to the cent
// and never going below one cent. Percent is taken with two decimals.
func AdjustedPrice(cents int64, percent float64) int64 {
	bp := int64(math.Round(percent * 100))
	v := (cents*(10000+bp) + 5000) / 10000
	if v < 1 {
		return 1
	}
	return v
}

// Adjust changes the price of every product, or of one category when
// categoryID is set, by percent. With preview set nothing is written.
func Adjust(ctx context.Context, db *sqlx.DB, categoryID string, percent float64, preview bool) ([]Change, error) {
	if percent == 0 || percent <= -100 || percent > 1000 || math.IsNaN(percent) {
		return nil, ErrInvalidPercent
	}
	changes := []Change{}
	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		products, err := database.GetAllProducts(ctx, tx)
		if err != nil {
			return err
		}
		for _, p := range products {
			if categoryID != "" && p.CategoryID != categoryID {
				continue
			}
			next := AdjustedPrice(p.PriceCents, percent)
			if next == p.PriceCents {
				continue
			}
			changes = append(changes, Change{ProductID: p.ID, SKU: p.SKU, Name: p.Name, OldCents: p.PriceCents, NewCents: next})
			if preview {
				continue
			}
			if err := database.UpdateProductPrice(ctx, tx, p.ID, next); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adjust prices: %w", err)
	}
	return changes, nil
}

// ApplyPriceListInTx sets the price of each listed SKU. SKUs that do not
// exist are returned, not treated as errors.
func ApplyPriceListInTx(ctx context.Context, tx *sqlx.Tx, records []parsers.PriceCSVRecord) ([]Change, []string, error) {
	changes := []Change{}
	unknown := []string{}
	for _, rec := range records {
		sku := strings.ToUpper(strings.TrimSpace(rec.SKU))
		p, err := database.GetProductBySKU(ctx, tx, sku)
		if database.IsNotFound(err) {
			unknown = append(unknown, sku)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if p.PriceCents == rec.PriceCents {
			continue
		}
		if err := database.UpdateProductPrice(ctx, tx, p.ID, rec.PriceCents); err != nil {
			return nil, nil, err
		}
		changes = append(changes, Change{ProductID: p.ID, SKU: p.SKU, Name: p.Name, OldCents: p.PriceCents, NewCents: rec.PriceCents})
	}
	return changes, unknown, nil
}

// priceListRow is the exported shape of a product price.
func priceListRow(p model.ProductRow) []string {
	return []string{p.SKU, p.Name, p.CategoryName, formatPrice(p.PriceCents)}
}
