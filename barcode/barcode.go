package barcode

import (
	"fmt"
	"strings"
)

// Validate checks length and check digit of an EAN-8, UPC-A, EAN-13 or GTIN-14.
func Validate(code string) error {
	code = strings.TrimSpace(code)
	switch len(code) {
	case 8, 12, 13, 14:
	default:
		return fmt.Errorf("barcode must have 8, 12, 13 or 14 digits, got %d", len(code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("barcode must contain only digits")
		}
	}
	want := CheckDigit(code[:len(code)-1])
	if got := int(code[len(code)-1] - '0'); got != want {
		return fmt.Errorf("invalid check digit: expected %d, got %d", want, got)
	}
	return nil
}

// CheckDigit computes the GS1 mod-10 check digit of the digits without the
// check position. Weights alternate 3,1 starting from the rightmost digit.
func CheckDigit(body string) int {
	sum := 0
	weight := 3
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * weight
		if weight == 3 {
			weight = 1
		} else {
			weight = 3
		}
	}
	return (10 - sum%10) % 10
}

// ToGTIN14 left pads shorter codes with zeros.
func ToGTIN14(code string) string {
	code = strings.TrimSpace(code)
	if len(code) >= 14 {
		return code
	}
	return fmt.Sprintf("%014s", code)
}
