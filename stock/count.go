package stock

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"liontech/database"
	"liontech/model"
	"liontech/parsers"
)

// CountResult summarizes an inventory count.
type CountResult struct {
	Adjusted    int                `json:"adjusted"`
	Unchanged   int                `json:"unchanged"`
	Zeroed      int                `json:"zeroed"`
	UnknownSKUs []string           `json:"unknownSkus"`
	RowErrors   []parsers.RowError `json:"rowErrors"`
}

// ApplyCountInTx replaces the stock of the whole catalog with a count.
// Counted products get the counted quantity; active products missing from
// the count are set to zero. Each change is an adjustment movement whose
// reference is the count reference.
func ApplyCountInTx(ctx context.Context, tx *sqlx.Tx, records []parsers.StockCountRecord, reference, userID string) (CountResult, error) {
	res := CountResult{UnknownSKUs: []string{}}

	products, err := database.GetAllProducts(ctx, tx)
	if err != nil {
		return res, err
	}
	bySKU := make(map[string]model.ProductRow, len(products))
	for _, p := range products {
		bySKU[p.SKU] = p
	}

	counted := make(map[string]int, len(records))
	for _, rec := range records {
		if _, ok := bySKU[rec.SKU]; !ok {
			res.UnknownSKUs = append(res.UnknownSKUs, rec.SKU)
			continue
		}
		counted[rec.SKU] = rec.Quantity
	}

	for _, p := range products {
		qty, ok := counted[p.SKU]
		if !ok {
			if !p.Active || p.Stock == 0 {
				continue
			}
			qty = 0
		}
		if qty == p.Stock {
			res.Unchanged++
			continue
		}
		in := MovementInput{
			ProductID: p.ID,
			Kind:      model.MovementAdjustment,
			Quantity:  qty,
			Reason:    "Contagem de estoque",
			Reference: reference,
			UserID:    userID,
		}
		if _, err := RecordMovementInTx(ctx, tx, in); err != nil {
			return res, fmt.Errorf("failed to adjust %s: %w", p.SKU, err)
		}
		if ok {
			res.Adjusted++
		} else {
			res.Zeroed++
		}
	}
	return res, nil
}
