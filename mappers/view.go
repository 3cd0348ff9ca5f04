package mappers

import (
	"liontech/model"
	"liontech/money"
)

// URLFunc turns a storage key into a public URL.
type URLFunc func(key string) string

// ToProductView converts a product row into its display shape.
func ToProductView(p model.ProductRow, lowStockThreshold int, url URLFunc) model.ProductView {
	v := model.ProductView{
		ProductRow: p,
		Price:      money.FormatBRL(p.PriceCents),
		InStock:    p.Stock > 0,
		LowStock:   p.Stock > 0 && p.Stock <= lowStockThreshold,
	}
	if p.CompareAtCents > p.PriceCents {
		v.CompareAtPrice = money.FormatBRL(p.CompareAtCents)
	}
	if p.ImageKey != "" && url != nil {
		v.ImageURL = url(p.ImageKey)
	}
	return v
}

func ToProductViews(products []model.ProductRow, lowStockThreshold int, url URLFunc) []model.ProductView {
	views := make([]model.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ToProductView(p, lowStockThreshold, url))
	}
	return views
}

// ToValuationRows fills the formatted value column.
func ToValuationRows(rows []model.ValuationRow) []model.ValuationRow {
	for i := range rows {
		rows[i].Value = money.FormatBRL(rows[i].ValueCents)
	}
	return rows
}
