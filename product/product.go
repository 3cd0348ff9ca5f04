// Package product manages the catalog: storefront listing, dashboard
// editing, images and CSV import/export.
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"liontech/barcode"
	"liontech/database"
	"liontech/model"
	"liontech/stock"
)

var (
	ErrDuplicate       = errors.New("sku or slug already in use")
	ErrUnknownCategory = errors.New("unknown category")
)

// InputError is a validation failure on one input field.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return e.Field + ": " + e.Message
}

// Normalize trims in and checks the catalog rules: SKU and name set,
// positive price, compare-at price either unset or above the price, and a
// valid EAN/UPC barcode when one is given.
func Normalize(in *model.ProductInput) error {
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.Barcode = strings.TrimSpace(in.Barcode)
	switch {
	case in.SKU == "":
		return &InputError{Field: "sku", Message: "Informe o SKU."}
	case in.Name == "":
		return &InputError{Field: "name", Message: "Informe o nome do produto."}
	case in.PriceCents <= 0:
		return &InputError{Field: "priceCents", Message: "O preço deve ser maior que zero."}
	case in.CompareAtCents != 0 && in.CompareAtCents <= in.PriceCents:
		return &InputError{Field: "compareAtCents", Message: "O preço \"de\" deve ser maior que o preço de venda."}
	case in.Stock < 0:
		return &InputError{Field: "stock", Message: "O estoque inicial não pode ser negativo."}
	}
	if in.Barcode != "" {
		if err := barcode.Validate(in.Barcode); err != nil {
			return &InputError{Field: "barcode", Message: "Código de barras inválido."}
		}
	}
	return nil
}

func checkCategory(ctx context.Context, db database.DBTX, id string) error {
	if id == "" {
		return nil
	}
	if _, err := database.GetCategoryByID(ctx, db, id); err != nil {
		if database.IsNotFound(err) {
			return ErrUnknownCategory
		}
		return err
	}
	return nil
}

func apply(p *model.Product, in model.ProductInput) {
	p.SKU, p.Name, p.Description = in.SKU, in.Name, in.Description
	p.CategoryID, p.Barcode = in.CategoryID, in.Barcode
	p.PriceCents, p.CompareAtCents = in.PriceCents, in.CompareAtCents
	p.Active, p.Featured = in.Active, in.Featured
}

// Create inserts a product. Initial stock is booked as an "in" movement in
// the same transaction.
func Create(ctx context.Context, db *sqlx.DB, in model.ProductInput, userID string) (*model.Product, error) {
	if err := Normalize(&in); err != nil {
		return nil, err
	}
	p := &model.Product{ID: uuid.NewString()}
	apply(p, in)
	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if err := checkCategory(ctx, tx, in.CategoryID); err != nil {
			return err
		}
		var err error
		if p.Slug, err = uniqueSlug(ctx, tx, in.Name, in.SKU, p.ID); err != nil {
			return err
		}
		if err := database.InsertProduct(ctx, tx, p); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		if in.Stock > 0 {
			m, err := stock.RecordMovementInTx(ctx, tx, stock.MovementInput{
				ProductID: p.ID,
				Kind:      model.MovementIn,
				Quantity:  in.Stock,
				Reason:    "Estoque inicial",
				UserID:    userID,
			})
			if err != nil {
				return err
			}
			p.Stock = m.NewStock
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update rewrites the editable fields. Stock is not touched: it changes
// only through movements.
func Update(ctx context.Context, db *sqlx.DB, id string, in model.ProductInput) (*model.ProductRow, error) {
	if err := Normalize(&in); err != nil {
		return nil, err
	}
	if err := checkCategory(ctx, db, in.CategoryID); err != nil {
		return nil, err
	}
	row, err := database.GetProductByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	p := row.Product
	if p.Name != in.Name {
		if p.Slug, err = uniqueSlug(ctx, db, in.Name, in.SKU, p.ID); err != nil {
			return nil, err
		}
	}
	apply(&p, in)
	if err := database.UpdateProduct(ctx, db, &p); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return database.GetProductByID(ctx, db, id)
}

// Delete hides products that appear in orders and removes the rest. It
// reports whether the row was actually deleted.
func Delete(ctx context.Context, db *sqlx.DB, id string) (*model.ProductRow, bool, error) {
	var row *model.ProductRow
	hard := false
	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		var err error
		row, err = database.GetProductByID(ctx, tx, id)
		if err != nil {
			return err
		}
		used, err := database.ProductHasOrders(ctx, tx, id)
		if err != nil {
			return err
		}
		if used {
			return database.DeactivateProduct(ctx, tx, id)
		}
		hard = true
		return database.DeleteProduct(ctx, tx, id)
	})
	if err != nil {
		return nil, false, fmt.Errorf("delete product %s: %w", id, err)
	}
	return row, hard, nil
}
