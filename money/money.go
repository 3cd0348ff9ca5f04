// Package money formats and parses BRL amounts held as integer cents.
package money

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders cents as "R$ 1.234,56".
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, printer.Sprintf("%d", cents/100), cents%100)
}

// FormatDecimal renders cents as "1234.56", the format used in CSV exports.
func FormatDecimal(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Parse reads an amount written either as "1234.56", "1234,56",
// "1.234,56" or "R$ 1.234,56" and returns cents. At most two decimals are
// accepted.
func Parse(s string) (int64, error) {
	orig := s
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	var intPart, fracPart string
	switch {
	case lastComma > lastDot:
		intPart = strings.ReplaceAll(s[:lastComma], ".", "")
		fracPart = s[lastComma+1:]
	case lastDot > lastComma && lastComma >= 0:
		intPart = strings.ReplaceAll(s[:lastDot], ",", "")
		fracPart = s[lastDot+1:]
	case lastDot >= 0:
		// A single dot followed by exactly three digits is a thousands
		// separator ("1.234").
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			intPart = strings.ReplaceAll(s, ".", "")
		} else {
			intPart = s[:lastDot]
			fracPart = s[lastDot+1:]
		}
	default:
		intPart = s
	}

	if len(fracPart) > 2 {
		return 0, fmt.Errorf("invalid amount %q: more than two decimals", orig)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}
	if intPart == "" {
		intPart = "0"
	}
	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", orig)
	}
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", orig)
	}
	cents := units*100 + frac
	if neg {
		cents = -cents
	}
	return cents, nil
}

// Percent returns floor(cents * pct / 100).
func Percent(cents int64, pct int64) int64 {
	return cents * pct / 100
}
