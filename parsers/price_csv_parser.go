package parsers

import (
	"fmt"
	"io"

	"liontech/money"
)

type PriceCSVRecord struct {
	Line       int
	SKU        string
	PriceCents int64
}

// ParsePriceCSV reads "sku,price" rows of a price list.
func ParsePriceCSV(r io.Reader) ([]PriceCSVRecord, []RowError, error) {
	reader, err := newCSVReader(r)
	if err != nil {
		return nil, nil, err
	}
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	colIndex, err := getColIndex(header, []string{"sku", "price"})
	if err != nil {
		return nil, nil, err
	}

	var records []PriceCSVRecord
	var rowErrs []RowError
	line := 1
	for {
		line++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Message: err.Error()})
			continue
		}
		if isBlank(rec) {
			continue
		}
		sku := field(rec, colIndex, "sku")
		price, err := money.Parse(field(rec, colIndex, "price"))
		if sku == "" || err != nil || price <= 0 {
			rowErrs = append(rowErrs, RowError{Line: line, Message: "sku and a positive price are required"})
			continue
		}
		records = append(records, PriceCSVRecord{Line: line, SKU: sku, PriceCents: price})
	}
	return records, rowErrs, nil
}
