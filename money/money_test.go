package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 0,00", FormatBRL(0))
	assert.Equal(t, "R$ 0,05", FormatBRL(5))
	assert.Equal(t, "R$ 12,30", FormatBRL(1230))
	assert.Equal(t, "R$ 1.234,56", FormatBRL(123456))
	assert.Equal(t, "-R$ 1,00", FormatBRL(-100))
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "1234.56", FormatDecimal(123456))
	assert.Equal(t, "0.07", FormatDecimal(7))
}

func TestParse(t *testing.T) {
	cases := map[string]int64{
		"1234.56":     123456,
		"1234,56":     123456,
		"1.234,56":    123456,
		"R$ 1.234,56": 123456,
		"1,234.56":    123456,
		"10":          1000,
		"10.5":        1050,
		"1.234":       123400,
		"-3,20":       -320,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "1.2345", "R$"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}
