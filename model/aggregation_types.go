package model

import "time"

type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"cnt" json:"count"`
}

type TopProduct struct {
	ProductID string `db:"product_id" json:"productId"`
	Name      string `db:"name" json:"name"`
	Quantity  int    `db:"qty" json:"quantity"`
	Revenue   int64  `db:"revenue" json:"revenueCents"`
}

// SaleRecord is one order counted as revenue.
type SaleRecord struct {
	CreatedAt  time.Time `db:"created_at"`
	TotalCents int64     `db:"total_cents"`
}

type DailySales struct {
	Date         string `json:"date"`
	Orders       int    `json:"orders"`
	RevenueCents int64  `json:"revenueCents"`
}

type DashboardSummary struct {
	From           string        `json:"from"`
	To             string        `json:"to"`
	RevenueCents   int64         `json:"revenueCents"`
	Revenue        string        `json:"revenue"`
	PaidOrders     int           `json:"paidOrders"`
	AverageTicket  string        `json:"averageTicket"`
	OrdersByStatus []StatusCount `json:"ordersByStatus"`
	Daily          []DailySales  `json:"daily"`
	TopProducts    []TopProduct  `json:"topProducts"`
	LowStock       []ProductRow  `json:"lowStock"`
	OpenTickets    int           `json:"openTickets"`
	UnreadContacts int           `json:"unreadContacts"`
}

type ValuationRow struct {
	CategoryID   string `db:"category_id" json:"categoryId"`
	CategoryName string `db:"category_name" json:"categoryName"`
	Products     int    `db:"products" json:"products"`
	Units        int    `db:"units" json:"units"`
	ValueCents   int64  `db:"value_cents" json:"valueCents"`
	Value        string `db:"-" json:"value"`
}

type DeadStockRecord struct {
	ProductID  string    `db:"id" json:"productId"`
	SKU        string    `db:"sku" json:"sku"`
	Name       string    `db:"name" json:"name"`
	Stock      int       `db:"stock" json:"stock"`
	PriceCents int64     `db:"price_cents" json:"priceCents"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	LastSaleAt string    `db:"-" json:"lastSaleAt,omitempty"`
	ValueCents int64     `db:"-" json:"valueCents"`
}
