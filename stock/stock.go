// Package stock records product stock changes. Every change goes through
// RecordMovementInTx so the products.stock column and the movement ledger
// never disagree.
package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"liontech/database"
	"liontech/model"
)

var (
	ErrInsufficient     = errors.New("insufficient stock")
	ErrInvalidQuantity  = errors.New("invalid movement quantity")
	ErrInvalidKind      = errors.New("invalid movement kind")
	ErrConcurrentUpdate = errors.New("stock changed concurrently")
)

// MovementInput describes a requested change. For adjustments Quantity is
// the new absolute stock; for every other kind it is the amount moved.
type MovementInput struct {
	ProductID string
	Kind      string
	Quantity  int
	Reason    string
	Reference string
	UserID    string
}

// ValidKind reports whether kind is a known movement kind.
func ValidKind(kind string) bool {
	switch kind {
	case model.MovementIn, model.MovementOut, model.MovementSale, model.MovementReturn, model.MovementAdjustment:
		return true
	}
	return false
}

// apply returns the stock after the movement and the signed quantity to
// store on the movement row.
func apply(previous int, in MovementInput) (newStock, delta int, err error) {
	switch in.Kind {
	case model.MovementIn, model.MovementReturn:
		if in.Quantity <= 0 {
			return 0, 0, ErrInvalidQuantity
		}
		return previous + in.Quantity, in.Quantity, nil
	case model.MovementOut, model.MovementSale:
		if in.Quantity <= 0 {
			return 0, 0, ErrInvalidQuantity
		}
		if previous < in.Quantity {
			return 0, 0, fmt.Errorf("%w: available %d, requested %d", ErrInsufficient, previous, in.Quantity)
		}
		return previous - in.Quantity, -in.Quantity, nil
	case model.MovementAdjustment:
		if in.Quantity < 0 {
			return 0, 0, ErrInvalidQuantity
		}
		return in.Quantity, in.Quantity - previous, nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidKind, in.Kind)
	}
}

// RecordMovementInTx applies in to the product and stores the movement.
// The product row is updated only if its stock is still the value that
// was read; on a concurrent change the read is retried once.
func RecordMovementInTx(ctx context.Context, tx *sqlx.Tx, in MovementInput) (*model.StockMovement, error) {
	if !ValidKind(in.Kind) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, in.Kind)
	}
	for attempt := 0; attempt < 2; attempt++ {
		previous, err := database.GetProductStock(ctx, tx, in.ProductID)
		if err != nil {
			return nil, err
		}
		newStock, delta, err := apply(previous, in)
		if err != nil {
			return nil, err
		}
		ok, err := database.CompareAndSetStock(ctx, tx, in.ProductID, previous, newStock)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		m := &model.StockMovement{
			ID:            uuid.NewString(),
			ProductID:     in.ProductID,
			Kind:          in.Kind,
			Quantity:      delta,
			PreviousStock: previous,
			NewStock:      newStock,
			Reason:        in.Reason,
			Reference:     in.Reference,
			UserID:        in.UserID,
		}
		if err := database.InsertStockMovement(ctx, tx, m); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: product %s", ErrConcurrentUpdate, in.ProductID)
}

// RecordMovement runs RecordMovementInTx in its own transaction.
func RecordMovement(ctx context.Context, db *sqlx.DB, in MovementInput) (*model.StockMovement, error) {
	var m *model.StockMovement
	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		var err error
		m, err = RecordMovementInTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
