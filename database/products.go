package database

import (
	"context"
	"fmt"
	"strings"

	"liontech/model"
)

const productColumns = `p.id, p.sku, p.name, p.slug, p.description, p.category_id, p.price_cents,
	p.compare_at_cents, p.stock, p.barcode, p.image_key, p.active, p.featured, p.created_at, p.updated_at`

const productSelect = `SELECT ` + productColumns + `, COALESCE(c.name, '') AS category_name
	FROM products p LEFT JOIN categories c ON c.id = p.category_id`

func GetFilteredProducts(ctx context.Context, db DBTX, f model.ProductFilters) ([]model.ProductRow, error) {
	where, args := productWhere(f)
	q := productSelect + where + ` ORDER BY p.name, p.id`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	products := []model.ProductRow{}
	if err := db.SelectContext(ctx, &products, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to get filtered products: %w", err)
	}
	return products, nil
}

func CountFilteredProducts(ctx context.Context, db DBTX, f model.ProductFilters) (int, error) {
	where, args := productWhere(f)
	var n int
	q := `SELECT COUNT(*) FROM products p LEFT JOIN categories c ON c.id = p.category_id` + where
	if err := db.GetContext(ctx, &n, db.Rebind(q), args...); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func productWhere(f model.ProductFilters) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.ActiveOnly {
		conds = append(conds, "p.active = ?")
		args = append(args, true)
	}
	if f.FeaturedOnly {
		conds = append(conds, "p.featured = ?")
		args = append(args, true)
	}
	if f.CategorySlug != "" {
		conds = append(conds, "c.slug = ?")
		args = append(args, f.CategorySlug)
	}
	if strings.TrimSpace(f.Query) != "" {
		conds = append(conds, `(LOWER(p.name) LIKE ? ESCAPE '\' OR LOWER(p.sku) LIKE ? ESCAPE '\' OR LOWER(p.description) LIKE ? ESCAPE '\')`)
		pattern := likePattern(f.Query)
		args = append(args, pattern, pattern, pattern)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func GetAllProducts(ctx context.Context, db DBTX) ([]model.ProductRow, error) {
	return GetFilteredProducts(ctx, db, model.ProductFilters{})
}

func GetProductByID(ctx context.Context, db DBTX, id string) (*model.ProductRow, error) {
	var p model.ProductRow
	if err := db.GetContext(ctx, &p, db.Rebind(productSelect+` WHERE p.id = ?`), id); err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return &p, nil
}

func GetProductBySlug(ctx context.Context, db DBTX, slug string) (*model.ProductRow, error) {
	var p model.ProductRow
	if err := db.GetContext(ctx, &p, db.Rebind(productSelect+` WHERE p.slug = ?`), slug); err != nil {
		return nil, fmt.Errorf("failed to get product by slug %s: %w", slug, err)
	}
	return &p, nil
}

func GetProductBySKU(ctx context.Context, db DBTX, sku string) (*model.ProductRow, error) {
	var p model.ProductRow
	if err := db.GetContext(ctx, &p, db.Rebind(productSelect+` WHERE p.sku = ?`), sku); err != nil {
		return nil, fmt.Errorf("failed to get product by sku %s: %w", sku, err)
	}
	return &p, nil
}

// GetLowStockProducts returns active products whose stock is at or below
// the threshold, lowest first.
func GetLowStockProducts(ctx context.Context, db DBTX, threshold int) ([]model.ProductRow, error) {
	products := []model.ProductRow{}
	q := productSelect + ` WHERE p.active = ? AND p.stock <= ? ORDER BY p.stock, p.name`
	if err := db.SelectContext(ctx, &products, db.Rebind(q), true, threshold); err != nil {
		return nil, fmt.Errorf("failed to get low stock products: %w", err)
	}
	return products, nil
}

// InsertProduct stores a new product with zero stock. Initial stock is
// recorded afterwards as a stock movement.
func InsertProduct(ctx context.Context, db DBTX, p *model.Product) error {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	const q = `
		INSERT INTO products (id, sku, name, slug, description, category_id, price_cents, compare_at_cents,
			stock, barcode, image_key, active, featured, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, db.Rebind(q), p.ID, p.SKU, p.Name, p.Slug, p.Description, p.CategoryID,
		p.PriceCents, p.CompareAtCents, p.Barcode, p.ImageKey, p.Active, p.Featured, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("InsertProduct (SKU: %s) failed: %w", p.SKU, err)
	}
	p.Stock = 0
	return nil
}

// UpdateProduct updates every editable column except stock and image.
func UpdateProduct(ctx context.Context, db DBTX, p *model.Product) error {
	p.UpdatedAt = now()
	const q = `
		UPDATE products SET sku = ?, name = ?, slug = ?, description = ?, category_id = ?, price_cents = ?,
			compare_at_cents = ?, barcode = ?, active = ?, featured = ?, updated_at = ?
		WHERE id = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), p.SKU, p.Name, p.Slug, p.Description, p.CategoryID, p.PriceCents,
		p.CompareAtCents, p.Barcode, p.Active, p.Featured, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("UpdateProduct (ID: %s) failed: %w", p.ID, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("UpdateProduct (ID: %s): %w", p.ID, errNoRows)
	}
	return nil
}

func UpdateProductImage(ctx context.Context, db DBTX, id, imageKey string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`UPDATE products SET image_key = ?, updated_at = ? WHERE id = ?`), imageKey, now(), id)
	if err != nil {
		return fmt.Errorf("UpdateProductImage (ID: %s) failed: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("UpdateProductImage (ID: %s): %w", id, errNoRows)
	}
	return nil
}

// UpdateProductPrice sets the price and drops a compare-at price that
// would no longer be above it.
func UpdateProductPrice(ctx context.Context, db DBTX, id string, priceCents int64) error {
	const q = `
		UPDATE products SET price_cents = ?,
			compare_at_cents = CASE WHEN compare_at_cents > ? THEN compare_at_cents ELSE 0 END,
			updated_at = ?
		WHERE id = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), priceCents, priceCents, now(), id)
	if err != nil {
		return fmt.Errorf("UpdateProductPrice (ID: %s) failed: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("UpdateProductPrice (ID: %s): %w", id, errNoRows)
	}
	return nil
}

// CompareAndSetStock writes newStock only when the row still holds
// expected. It reports whether the row was updated.
func CompareAndSetStock(ctx context.Context, db DBTX, id string, expected, newStock int) (bool, error) {
	const q = `UPDATE products SET stock = ?, updated_at = ? WHERE id = ? AND stock = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), newStock, now(), id, expected)
	if err != nil {
		return false, fmt.Errorf("failed to set stock of product %s: %w", id, err)
	}
	return rowsAffected(res) == 1, nil
}

func DeactivateProduct(ctx context.Context, db DBTX, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`UPDATE products SET active = ?, updated_at = ? WHERE id = ?`), false, now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate product %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("failed to deactivate product %s: %w", id, errNoRows)
	}
	return nil
}

// DeleteProduct removes the product and its stock history.
func DeleteProduct(ctx context.Context, db DBTX, id string) error {
	if _, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM stock_movements WHERE product_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete movements of product %s: %w", id, err)
	}
	if _, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM cart_items WHERE product_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete cart items of product %s: %w", id, err)
	}
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("failed to delete product %s: %w", id, errNoRows)
	}
	return nil
}

func ProductHasOrders(ctx context.Context, db DBTX, id string) (bool, error) {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM order_items WHERE product_id = ?`), id); err != nil {
		return false, fmt.Errorf("failed to count orders of product %s: %w", id, err)
	}
	return n > 0, nil
}
