package parsers

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrUnsupportedEncoding is returned by Decode for unknown encodings.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// SkipBOM skips a leading UTF-8 BOM.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	peeked, err := br.Peek(3)
	if err != nil {
		return br
	}
	if bytes.Equal(peeked, utf8BOM) {
		br.Discard(3)
	}
	return br
}

// WriteBOM writes the UTF-8 BOM spreadsheet programs need to detect the
// encoding of exported CSV files.
func WriteBOM(w io.Writer) error {
	_, err := w.Write(utf8BOM)
	return err
}

// Decode wraps r so that it yields UTF-8. Supported encodings are utf-8
// (default) and latin1 / iso-8859-1 / windows-1252, the encodings
// spreadsheet exports use in Brazil.
func Decode(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return SkipBOM(r), nil
	case "latin1", "iso-8859-1", "iso8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedEncoding, encoding)
	}
}

// RowError describes a CSV row that was skipped.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// getColIndex maps lower-cased header names to column positions and checks
// required columns.
func getColIndex(header []string, required []string) (map[string]int, error) {
	colIndex := make(map[string]int)
	for i, colName := range header {
		colIndex[strings.ToLower(strings.TrimSpace(colName))] = i
	}
	for _, req := range required {
		if _, ok := colIndex[req]; !ok {
			return nil, fmt.Errorf("required column not found: %s", req)
		}
	}
	return colIndex, nil
}

func field(rec []string, colIndex map[string]int, name string) string {
	idx, ok := colIndex[name]
	if !ok || idx >= len(rec) {
		return ""
	}
	return UnescapeCell(strings.TrimSpace(rec[idx]))
}

const formulaPrefixes = "=+-@\t\r"

// EscapeCell prefixes text that a spreadsheet would evaluate as a formula
// with a quote. Plain numbers such as "-5" are left alone.
func EscapeCell(s string) string {
	if s == "" || !strings.ContainsRune(formulaPrefixes, rune(s[0])) {
		return s
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return s
	}
	return "'" + s
}

// UnescapeCell reverses EscapeCell so exported files import unchanged.
func UnescapeCell(s string) string {
	if len(s) > 1 && s[0] == '\'' && strings.ContainsRune(formulaPrefixes, rune(s[1])) {
		return s[1:]
	}
	return s
}

// detectComma detects ';' separated files, the default of spreadsheets
// configured for pt-BR.
func detectComma(header string) rune {
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}
