package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := map[string]int64{
		"100":       100_000_000,
		"100.5":     100_500_000,
		"0.000001":  1,
		".25":       250_000,
		"7.":        7_000_000,
		" 1.100000": 1_100_000,
		"0":         0,
	}
	for in, want := range cases {
		got, err := ParseAmount(in, 6)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, in := range []string{"", ".", "-1", "1e6", "1.2.3", "abc", "1,5"} {
		_, err := ParseAmount(in, 6)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}

	_, err := ParseAmount("0.0000001", 6)
	assert.ErrorIs(t, err, ErrTooManyDecimals)

	_, err = ParseAmount("99999999999999999999", 6)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100.0", FormatAmount(100_000_000, 6))
	assert.Equal(t, "100.5", FormatAmount(100_500_000, 6))
	assert.Equal(t, "0.000001", FormatAmount(1, 6))
	assert.Equal(t, "-2.25", FormatAmount(-2_250_000, 6))
	assert.Equal(t, "42.0", FormatAmount(42, 0))
}
