package model

import "time"

type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description"`
	SortOrder   int       `db:"sort_order" json:"sortOrder"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Product is a row of the products table. Prices are in cents.
type Product struct {
	ID             string    `db:"id" json:"id"`
	SKU            string    `db:"sku" json:"sku"`
	Name           string    `db:"name" json:"name"`
	Slug           string    `db:"slug" json:"slug"`
	Description    string    `db:"description" json:"description"`
	CategoryID     string    `db:"category_id" json:"categoryId"`
	PriceCents     int64     `db:"price_cents" json:"priceCents"`
	CompareAtCents int64     `db:"compare_at_cents" json:"compareAtCents"`
	Stock          int       `db:"stock" json:"stock"`
	Barcode        string    `db:"barcode" json:"barcode"`
	ImageKey       string    `db:"image_key" json:"imageKey"`
	Active         bool      `db:"active" json:"active"`
	Featured       bool      `db:"featured" json:"featured"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// ProductRow is a product joined with its category name.
type ProductRow struct {
	Product
	CategoryName string `db:"category_name" json:"categoryName"`
}

type ProductInput struct {
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	CategoryID     string `json:"categoryId"`
	PriceCents     int64  `json:"priceCents"`
	CompareAtCents int64  `json:"compareAtCents"`
	Stock          int    `json:"stock"`
	Barcode        string `json:"barcode"`
	Active         bool   `json:"active"`
	Featured       bool   `json:"featured"`
}

type ProductFilters struct {
	CategorySlug string
	Query        string
	FeaturedOnly bool
	ActiveOnly   bool
	Limit        int
	Offset       int
}

// ProductView is the product shape returned to the storefront and dashboard.
type ProductView struct {
	ProductRow
	Price          string `json:"price"`
	CompareAtPrice string `json:"compareAtPrice,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	InStock        bool   `json:"inStock"`
	LowStock       bool   `json:"lowStock"`
}

// ServiceOffering is one of the services the business sells (repairs,
// installations, consulting...).
type ServiceOffering struct {
	ID             string    `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	Slug           string    `db:"slug" json:"slug"`
	Summary        string    `db:"summary" json:"summary"`
	Body           string    `db:"body" json:"body"`
	Icon           string    `db:"icon" json:"icon"`
	PriceFromCents int64     `db:"price_from_cents" json:"priceFromCents"`
	SortOrder      int       `db:"sort_order" json:"sortOrder"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Case is a published portfolio entry.
type Case struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Slug        string     `db:"slug" json:"slug"`
	Client      string     `db:"client" json:"client"`
	Summary     string     `db:"summary" json:"summary"`
	Body        string     `db:"body" json:"body"`
	ImageKey    string     `db:"image_key" json:"imageKey"`
	PublishedAt *time.Time `db:"published_at" json:"publishedAt,omitempty"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}
