package parsers

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"liontech/money"
)

// ProductCSVRecord is one row of a catalog import file.
type ProductCSVRecord struct {
	Line        int
	SKU         string
	Name        string
	Category    string
	PriceCents  int64
	Stock       *int
	Description string
	Barcode     string
	Active      bool
}

// ProductCSVHeader is the column order of catalog exports.
var ProductCSVHeader = []string{"sku", "name", "category", "price", "stock", "description", "barcode", "active"}

// ParseProductCSV reads a catalog file with a header row. Rows that cannot
// be parsed are returned as RowErrors; the rest are returned as records.
func ParseProductCSV(r io.Reader) ([]ProductCSVRecord, []RowError, error) {
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
	colIndex, err := getColIndex(header, []string{"sku", "name", "price"})
	if err != nil {
		return nil, nil, err
	}

	var records []ProductCSVRecord
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

		p := ProductCSVRecord{
			Line:        line,
			SKU:         field(rec, colIndex, "sku"),
			Name:        field(rec, colIndex, "name"),
			Category:    field(rec, colIndex, "category"),
			Description: field(rec, colIndex, "description"),
			Barcode:     field(rec, colIndex, "barcode"),
			Active:      true,
		}
		if p.SKU == "" || p.Name == "" {
			rowErrs = append(rowErrs, RowError{Line: line, Message: "sku and name are required"})
			continue
		}
		price, err := money.Parse(field(rec, colIndex, "price"))
		if err != nil || price <= 0 {
			rowErrs = append(rowErrs, RowError{Line: line, Message: "invalid price"})
			continue
		}
		p.PriceCents = price

		if s := field(rec, colIndex, "stock"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				rowErrs = append(rowErrs, RowError{Line: line, Message: "invalid stock " + strconv.Quote(s)})
				continue
			}
			p.Stock = &n
		}
		if a := field(rec, colIndex, "active"); a != "" {
			p.Active = parseFlag(a)
		}
		records = append(records, p)
	}
	return records, rowErrs, nil
}

func newCSVReader(r io.Reader) (*csv.Reader, error) {
	br := bufio.NewReader(SkipBOM(r))
	first, err := br.Peek(br.Size())
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	firstLine := string(first)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	reader := csv.NewReader(br)
	reader.Comma = detectComma(firstLine)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "sim", "s", "y", "ativo":
		return true
	}
	return false
}
