package parsers

import (
	"fmt"
	"io"
	"strconv"
)

// StockCountRecord is one counted SKU of an inventory count file.
type StockCountRecord struct {
	Line     int
	SKU      string
	Quantity int
}

// ParseStockCountCSV reads "sku,quantity" rows. A SKU listed twice is an
// error, since a count file replaces the whole stock.
func ParseStockCountCSV(r io.Reader) ([]StockCountRecord, []RowError, error) {
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
	colIndex, err := getColIndex(header, []string{"sku", "quantity"})
	if err != nil {
		return nil, nil, err
	}

	var records []StockCountRecord
	var rowErrs []RowError
	seen := make(map[string]int)
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
		qty, err := strconv.Atoi(field(rec, colIndex, "quantity"))
		if sku == "" || err != nil || qty < 0 {
			rowErrs = append(rowErrs, RowError{Line: line, Message: "sku and a non-negative integer quantity are required"})
			continue
		}
		if prev, dup := seen[sku]; dup {
			rowErrs = append(rowErrs, RowError{Line: line, Message: fmt.Sprintf("sku %s already counted on line %d", sku, prev)})
			continue
		}
		seen[sku] = line
		records = append(records, StockCountRecord{Line: line, SKU: sku, Quantity: qty})
	}
	return records, rowErrs, nil
}
