package database

import (
	"context"
	"fmt"

	"liontech/model"
)

const serviceColumns = `id, title, slug, summary, body, icon, price_from_cents, sort_order, active, created_at, updated_at`

func GetServices(ctx context.Context, db DBTX, activeOnly bool) ([]model.ServiceOffering, error) {
	services := []model.ServiceOffering{}
	q := `SELECT ` + serviceColumns + ` FROM services`
	var args []interface{}
	if activeOnly {
		q += ` WHERE active = ?`
		args = append(args, true)
	}
	q += ` ORDER BY sort_order, title`
	if err := db.SelectContext(ctx, &services, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to get services: %w", err)
	}
	return services, nil
}

func GetServiceByID(ctx context.Context, db DBTX, id string) (*model.ServiceOffering, error) {
	var s model.ServiceOffering
	if err := db.GetContext(ctx, &s, db.Rebind(`SELECT `+serviceColumns+` FROM services WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("failed to get service %s: %w", id, err)
	}
	return &s, nil
}

func SaveService(ctx context.Context, db DBTX, s *model.ServiceOffering) error {
	t := now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t
	}
	s.UpdatedAt = t
	const q = `
		INSERT INTO services (id, title, slug, summary, body, icon, price_from_cents, sort_order, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, slug = excluded.slug, summary = excluded.summary, body = excluded.body,
			icon = excluded.icon, price_from_cents = excluded.price_from_cents, sort_order = excluded.sort_order,
			active = excluded.active, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, db.Rebind(q), s.ID, s.Title, s.Slug, s.Summary, s.Body, s.Icon,
		s.PriceFromCents, s.SortOrder, s.Active, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("SaveService (ID: %s) failed: %w", s.ID, err)
	}
	return nil
}

func DeleteService(ctx context.Context, db DBTX, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM services WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete service %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("failed to delete service %s: %w", id, errNoRows)
	}
	return nil
}

const caseColumns = `id, title, slug, client, summary, body, image_key, published_at, active, created_at, updated_at`

func GetCases(ctx context.Context, db DBTX, publishedOnly bool) ([]model.Case, error) {
	cases := []model.Case{}
	q := `SELECT ` + caseColumns + ` FROM cases`
	var args []interface{}
	if publishedOnly {
		q += ` WHERE active = ? AND published_at IS NOT NULL AND published_at <= ?`
		args = append(args, true, now())
	}
	q += ` ORDER BY published_at DESC, title`
	if err := db.SelectContext(ctx, &cases, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to get cases: %w", err)
	}
	return cases, nil
}

func GetCaseByID(ctx context.Context, db DBTX, id string) (*model.Case, error) {
	var c model.Case
	if err := db.GetContext(ctx, &c, db.Rebind(`SELECT `+caseColumns+` FROM cases WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", id, err)
	}
	return &c, nil
}

func GetCaseBySlug(ctx context.Context, db DBTX, slug string) (*model.Case, error) {
	var c model.Case
	if err := db.GetContext(ctx, &c, db.Rebind(`SELECT `+caseColumns+` FROM cases WHERE slug = ?`), slug); err != nil {
		return nil, fmt.Errorf("failed to get case by slug %s: %w", slug, err)
	}
	return &c, nil
}

func SaveCase(ctx context.Context, db DBTX, c *model.Case) error {
	t := now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = t
	}
	c.UpdatedAt = t
	const q = `
		INSERT INTO cases (id, title, slug, client, summary, body, image_key, published_at, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, slug = excluded.slug, client = excluded.client, summary = excluded.summary,
			body = excluded.body, image_key = excluded.image_key, published_at = excluded.published_at,
			active = excluded.active, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, db.Rebind(q), c.ID, c.Title, c.Slug, c.Client, c.Summary, c.Body, c.ImageKey,
		c.PublishedAt, c.Active, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("SaveCase (ID: %s) failed: %w", c.ID, err)
	}
	return nil
}

func DeleteCase(ctx context.Context, db DBTX, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM cases WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete case %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("failed to delete case %s: %w", id, errNoRows)
	}
	return nil
}
