package model

import "time"

const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementSale       = "sale"
	MovementReturn     = "return"
	MovementAdjustment = "adjustment"
)

// StockMovement records one change of a product's stock.
type StockMovement struct {
	ID            string    `db:"id" json:"id"`
	ProductID     string    `db:"product_id" json:"productId"`
	Kind          string    `db:"kind" json:"kind"`
	Quantity      int       `db:"quantity" json:"quantity"`
	PreviousStock int       `db:"previous_stock" json:"previousStock"`
	NewStock      int       `db:"new_stock" json:"newStock"`
	Reason        string    `db:"reason" json:"reason"`
	Reference     string    `db:"reference" json:"reference"`
	UserID        string    `db:"user_id" json:"userId"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

type StockMovementRow struct {
	StockMovement
	ProductName string `db:"product_name" json:"productName"`
	SKU         string `db:"sku" json:"sku"`
}

type MovementFilters struct {
	ProductID string
	Kind      string
	Limit     int
	Offset    int
}
