package utils

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrTooManyDecimals  = errors.New("amount has too many decimal places")
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// ParseAmount converts a human-readable decimal string ("100.5") to base units
// with the given number of decimals (100500000 for 6 decimals).
func ParseAmount(s string, decimals int) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, ErrInvalidAmount
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > decimals {
		return 0, fmt.Errorf("%w: at most %d allowed", ErrTooManyDecimals, decimals)
	}

	scale := pow10(decimals)
	var w int64
	if whole != "" {
		var err error
		w, err = strconv.ParseInt(whole, 10, 64)
		if err != nil || w > math.MaxInt64/scale {
			return 0, ErrAmountOutOfRange
		}
	}
	var f int64
	if frac != "" {
		f, _ = strconv.ParseInt(frac+strings.Repeat("0", decimals-len(frac)), 10, 64)
	}
	if w*scale > math.MaxInt64-f {
		return 0, ErrAmountOutOfRange
	}
	return w*scale + f, nil
}

// FormatAmount renders base units as a decimal string, keeping at least one fractional digit.
func FormatAmount(units int64, decimals int) string {
	sign := ""
	u := uint64(units)
	if units < 0 {
		sign = "-"
		u = uint64(-(units + 1)) + 1
	}
	scale := uint64(pow10(decimals))
	whole := u / scale
	frac := ""
	if decimals > 0 {
		frac = strings.TrimRight(fmt.Sprintf("%0*d", decimals, u%scale), "0")
	}
	if frac == "" {
		frac = "0"
	}
	return sign + strconv.FormatUint(whole, 10) + "." + frac
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
