package httpx

import (
	"encoding/csv"
	"net/http"
	"net/url"

	"liontech/parsers"
)

// CSVWriter is a csv.Writer whose cells are escaped against spreadsheet
// formula injection.
type CSVWriter struct {
	*csv.Writer
}

// Write escapes every cell of record and writes it.
func (w *CSVWriter) Write(record []string) error {
	escaped := make([]string, len(record))
	for i, cell := range record {
		escaped[i] = parsers.EscapeCell(cell)
	}
	return w.Writer.Write(escaped)
}

// StartCSV sets the attachment headers, writes the UTF-8 BOM and returns a
// writer for the body. Callers must Flush it.
func StartCSV(w http.ResponseWriter, filename string) *CSVWriter {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	parsers.WriteBOM(w)
	return &CSVWriter{Writer: csv.NewWriter(w)}
}
