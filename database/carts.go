package database

import (
	"context"
	"fmt"

	"liontech/model"
)

func EnsureCart(ctx context.Context, db DBTX, cartID string) error {
	t := now()
	const q = `
		INSERT INTO carts (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, db.Rebind(q), cartID, t, t); err != nil {
		return fmt.Errorf("EnsureCart (ID: %s) failed: %w", cartID, err)
	}
	return nil
}

// GetCartLines returns the cart items joined with the current product data.
func GetCartLines(ctx context.Context, db DBTX, cartID string) ([]model.CartLine, error) {
	lines := []model.CartLine{}
	const q = `
		SELECT ci.product_id, ci.quantity, p.sku, p.name, p.slug, p.image_key, p.price_cents, p.stock, p.active
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = ?
		ORDER BY ci.added_at, p.name`
	if err := db.SelectContext(ctx, &lines, db.Rebind(q), cartID); err != nil {
		return nil, fmt.Errorf("failed to get lines of cart %s: %w", cartID, err)
	}
	return lines, nil
}

func GetCartItemQuantity(ctx context.Context, db DBTX, cartID, productID string) (int, error) {
	var qty int
	err := db.GetContext(ctx, &qty, db.Rebind(`SELECT quantity FROM cart_items WHERE cart_id = ? AND product_id = ?`), cartID, productID)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get cart item quantity: %w", err)
	}
	return qty, nil
}

func SetCartItem(ctx context.Context, db DBTX, cartID, productID string, quantity int) error {
	const q = `
		INSERT INTO cart_items (cart_id, product_id, quantity, added_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(cart_id, product_id) DO UPDATE SET quantity = excluded.quantity`
	if _, err := db.ExecContext(ctx, db.Rebind(q), cartID, productID, quantity, now()); err != nil {
		return fmt.Errorf("SetCartItem (Cart: %s, Product: %s) failed: %w", cartID, productID, err)
	}
	return nil
}

func RemoveCartItem(ctx context.Context, db DBTX, cartID, productID string) error {
	if _, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?`), cartID, productID); err != nil {
		return fmt.Errorf("RemoveCartItem failed: %w", err)
	}
	return nil
}

func ClearCart(ctx context.Context, db DBTX, cartID string) error {
	if _, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM cart_items WHERE cart_id = ?`), cartID); err != nil {
		return fmt.Errorf("ClearCart (ID: %s) failed: %w", cartID, err)
	}
	return nil
}
