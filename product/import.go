package product

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/barcode"
	"liontech/database"
	"liontech/mappers"
	"liontech/model"
	"liontech/money"
	"liontech/parsers"
	"liontech/stock"
)

// ImportResult summarizes a catalog import.
type ImportResult struct {
	Created    int                `json:"created"`
	Updated    int                `json:"updated"`
	StockMoves int                `json:"stockMoves"`
	RowErrors  []parsers.RowError `json:"rowErrors"`
}

// ImportCSV upserts the catalog file by SKU in one transaction. Unknown
// categories are created. When the stock column differs from the current
// quantity an adjustment movement is recorded. Invalid rows are skipped
// and reported.
func ImportCSV(ctx context.Context, db *sqlx.DB, r io.Reader, encoding, userID string, log *zap.Logger) (ImportResult, error) {
	res := ImportResult{RowErrors: []parsers.RowError{}}
	decoded, err := parsers.Decode(r, encoding)
	if err != nil {
		return res, err
	}
	records, rowErrs, err := parsers.ParseProductCSV(decoded)
	if err != nil {
		return res, err
	}
	res.RowErrors = append(res.RowErrors, rowErrs...)

	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		categories := map[string]string{}
		for _, rec := range records {
			rec.SKU = strings.ToUpper(rec.SKU)
			if rec.Barcode != "" {
				if err := barcode.Validate(rec.Barcode); err != nil {
					res.RowErrors = append(res.RowErrors, parsers.RowError{Line: rec.Line, Message: "invalid barcode " + strconv.Quote(rec.Barcode)})
					continue
				}
			}
			categoryID, err := importCategory(ctx, tx, categories, rec.Category)
			if err != nil {
				return err
			}
			created, moved, err := importRecord(ctx, tx, rec, categoryID, userID)
			if err != nil {
				return fmt.Errorf("line %d: %w", rec.Line, err)
			}
			if created {
				res.Created++
			} else {
				res.Updated++
			}
			if moved {
				res.StockMoves++
			}
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("import products: %w", err)
	}
	log.Info("product import finished", zap.Int("created", res.Created), zap.Int("updated", res.Updated),
		zap.Int("stockMoves", res.StockMoves), zap.Int("skipped", len(res.RowErrors)))
	return res, nil
}

func importCategory(ctx context.Context, tx *sqlx.Tx, cache map[string]string, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	slug := mappers.Slugify(name)
	if id, ok := cache[slug]; ok {
		return id, nil
	}
	id, err := database.UpsertCategoryBySlug(ctx, tx, &model.Category{ID: uuid.NewString(), Name: name, Slug: slug})
	if err != nil {
		return "", err
	}
	cache[slug] = id
	return id, nil
}

func importRecord(ctx context.Context, tx *sqlx.Tx, rec parsers.ProductCSVRecord, categoryID, userID string) (created, moved bool, err error) {
	existing, err := database.GetProductBySKU(ctx, tx, rec.SKU)
	var p model.Product
	switch {
	case err == nil:
		p = existing.Product
		if p.Name != rec.Name {
			if p.Slug, err = uniqueSlug(ctx, tx, rec.Name, rec.SKU, p.ID); err != nil {
				return false, false, err
			}
		}
		p.Name, p.PriceCents, p.Active = rec.Name, rec.PriceCents, rec.Active
		if rec.Description != "" {
			p.Description = rec.Description
		}
		if rec.Barcode != "" {
			p.Barcode = rec.Barcode
		}
		if categoryID != "" {
			p.CategoryID = categoryID
		}
		if p.CompareAtCents <= p.PriceCents {
			p.CompareAtCents = 0
		}
		if err := database.UpdateProduct(ctx, tx, &p); err != nil {
			return false, false, err
		}
	case database.IsNotFound(err):
		created = true
		p = model.Product{
			ID:          uuid.NewString(),
			SKU:         rec.SKU,
			Name:        rec.Name,
			Description: rec.Description,
			CategoryID:  categoryID,
			PriceCents:  rec.PriceCents,
			Barcode:     rec.Barcode,
			Active:      rec.Active,
		}
		if p.Slug, err = uniqueSlug(ctx, tx, rec.Name, rec.SKU, ""); err != nil {
			return false, false, err
		}
		if err := database.InsertProduct(ctx, tx, &p); err != nil {
			return false, false, err
		}
	default:
		return false, false, err
	}

	if rec.Stock == nil || *rec.Stock == p.Stock {
		return created, false, nil
	}
	_, err = stock.RecordMovementInTx(ctx, tx, stock.MovementInput{
		ProductID: p.ID,
		Kind:      model.MovementAdjustment,
		Quantity:  *rec.Stock,
		Reason:    "Importação de catálogo",
		UserID:    userID,
	})
	if err != nil {
		return false, false, err
	}
	return created, true, nil
}

// uniqueSlug derives a slug from name, falling back to name plus SKU when
// another product already holds it.
func uniqueSlug(ctx context.Context, db database.DBTX, name, sku, selfID string) (string, error) {
	slug := mappers.Slugify(name)
	other, err := database.GetProductBySlug(ctx, db, slug)
	if database.IsNotFound(err) {
		return slug, nil
	}
	if err != nil {
		return "", err
	}
	if other.ID == selfID {
		return slug, nil
	}
	return mappers.Slugify(name + " " + sku), nil
}

// CSVWriter is the part of a CSV writer WriteCSV needs.
type CSVWriter interface {
	Write(record []string) error
	Flush()
	Error() error
}

// WriteCSV writes the catalog in the import format.
func WriteCSV(w CSVWriter, products []model.ProductRow) error {
	if err := w.Write(parsers.ProductCSVHeader); err != nil {
		return err
	}
	for _, p := range products {
		active := "0"
		if p.Active {
			active = "1"
		}
		rec := []string{
			p.SKU,
			p.Name,
			p.CategoryName,
			money.FormatDecimal(p.PriceCents),
			strconv.Itoa(p.Stock),
			p.Description,
			p.Barcode,
			active,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
