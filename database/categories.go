package database

import (
	"context"
	"fmt"

	"liontech/model"
)

const categoryColumns = `id, name, slug, description, sort_order, created_at`

func GetAllCategories(ctx context.Context, db DBTX) ([]model.Category, error) {
	categories := []model.Category{}
	err := db.SelectContext(ctx, &categories, `SELECT `+categoryColumns+` FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all categories: %w", err)
	}
	return categories, nil
}

func GetCategoryByID(ctx context.Context, db DBTX, id string) (*model.Category, error) {
	var c model.Category
	err := db.GetContext(ctx, &c, db.Rebind(`SELECT `+categoryColumns+` FROM categories WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get category %s: %w", id, err)
	}
	return &c, nil
}

func GetCategoryBySlug(ctx context.Context, db DBTX, slug string) (*model.Category, error) {
	var c model.Category
	err := db.GetContext(ctx, &c, db.Rebind(`SELECT `+categoryColumns+` FROM categories WHERE slug = ?`), slug)
	if err != nil {
		return nil, fmt.Errorf("failed to get category by slug %s: %w", slug, err)
	}
	return &c, nil
}

// GetCategoryMap returns category names keyed by id.
func GetCategoryMap(ctx context.Context, db DBTX) (map[string]string, error) {
	categories, err := GetAllCategories(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to get category list for map: %w", err)
	}
	m := make(map[string]string, len(categories))
	for _, c := range categories {
		m[c.ID] = c.Name
	}
	return m, nil
}

func CreateCategory(ctx context.Context, db DBTX, c *model.Category) error {
	c.CreatedAt = now()
	const q = `INSERT INTO categories (id, name, slug, description, sort_order, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, db.Rebind(q), c.ID, c.Name, c.Slug, c.Description, c.SortOrder, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("CreateCategory failed: %w", err)
	}
	return nil
}

// UpsertCategoryBySlug inserts a category or returns the id of the existing
// one with the same slug.
func UpsertCategoryBySlug(ctx context.Context, db DBTX, c *model.Category) (string, error) {
	existing, err := GetCategoryBySlug(ctx, db, c.Slug)
	if err == nil {
		return existing.ID, nil
	}
	if !IsNotFound(err) {
		return "", err
	}
	if err := CreateCategory(ctx, db, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

func UpdateCategory(ctx context.Context, db DBTX, c *model.Category) error {
	const q = `UPDATE categories SET name = ?, slug = ?, description = ?, sort_order = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), c.Name, c.Slug, c.Description, c.SortOrder, c.ID)
	if err != nil {
		return fmt.Errorf("UpdateCategory (ID: %s) failed: %w", c.ID, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("UpdateCategory (ID: %s): %w", c.ID, errNoRows)
	}
	return nil
}

func CountProductsInCategory(ctx context.Context, db DBTX, id string) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM products WHERE category_id = ?`), id); err != nil {
		return 0, fmt.Errorf("failed to count products of category %s: %w", id, err)
	}
	return n, nil
}

func DeleteCategory(ctx context.Context, db DBTX, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM categories WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete category with id %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("failed to delete category with id %s: %w", id, errNoRows)
	}
	return nil
}
