// Package reorder suggests restock quantities from recent sales.
package reorder

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"liontech/database"
	"liontech/model"
)

// Params controls the suggestion. A product needs restocking when its
// stock is below the reorder point:
//
//	daily average sales over Days × CoverDays × Coefficient
//
// and never below LowStockThreshold + 1 for products that sell.
type Params struct {
	Days              int     `json:"days"`
	CoverDays         int     `json:"coverDays"`
	Coefficient       float64 `json:"coefficient"`
	LowStockThreshold int     `json:"lowStockThreshold"`
}

// DefaultParams covers two weeks of sales observed over the last 30 days.
func DefaultParams(lowStockThreshold int) Params {
	return Params{Days: 30, CoverDays: 14, Coefficient: 1.5, LowStockThreshold: lowStockThreshold}
}

// Candidate is a product that should be restocked.
type Candidate struct {
	ProductID    string  `json:"productId"`
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	CategoryName string  `json:"categoryName"`
	Stock        int     `json:"stock"`
	Sold         int     `json:"sold"`
	DailyAverage float64 `json:"dailyAverage"`
	ReorderPoint int     `json:"reorderPoint"`
	Suggested    int     `json:"suggested"`
}

// Report is the list of candidates for one run.
type Report struct {
	Params     Params      `json:"params"`
	Since      time.Time   `json:"since"`
	Candidates []Candidate `json:"candidates"`
}

// ReorderPoint returns the stock level under which sold units over days
// call for a restock.
func ReorderPoint(sold int, p Params) (float64, int) {
	if sold <= 0 || p.Days <= 0 {
		return 0, 0
	}
	daily := float64(sold) / float64(p.Days)
	point := int(math.Ceil(daily * float64(p.CoverDays) * p.Coefficient))
	if point <= p.LowStockThreshold {
		point = p.LowStockThreshold + 1
	}
	return daily, point
}

// Suggest lists active products that sold in the window and whose stock
// is below their reorder point, most urgent first.
func Suggest(ctx context.Context, db *sqlx.DB, now time.Time, p Params) (*Report, error) {
	since := now.UTC().AddDate(0, 0, -p.Days)
	sold, err := database.GetUnitsSoldSince(ctx, db, since)
	if err != nil {
		return nil, err
	}
	products, err := database.GetFilteredProducts(ctx, db, model.ProductFilters{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	rep := &Report{Params: p, Since: since, Candidates: []Candidate{}}
	for _, prod := range products {
		units := sold[prod.ID]
		daily, point := ReorderPoint(units, p)
		if point == 0 || prod.Stock >= point {
			continue
		}
		rep.Candidates = append(rep.Candidates, Candidate{
			ProductID:    prod.ID,
			SKU:          prod.SKU,
			Name:         prod.Name,
			CategoryName: prod.CategoryName,
			Stock:        prod.Stock,
			Sold:         units,
			DailyAverage: math.Round(daily*100) / 100,
			ReorderPoint: point,
			Suggested:    point - prod.Stock,
		})
	}
	sort.SliceStable(rep.Candidates, func(i, j int) bool {
		a, b := rep.Candidates[i], rep.Candidates[j]
		return daysLeft(a) < daysLeft(b)
	})
	return rep, nil
}

func daysLeft(c Candidate) float64 {
	if c.DailyAverage == 0 {
		return math.Inf(1)
	}
	return float64(c.Stock) / c.DailyAverage
}
