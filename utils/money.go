package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// exponents for currencies that do not use two decimal places.
var currencyExponents = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"BHD": 3,
	"KWD": 3,
}

func exponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ParseAmountMinor converts a decimal amount string ("12.34") into integer
// minor units for the given currency. Fractional minor units are rejected
// rather than rounded: "12.345" USD is a caller bug, not a rounding case.
func ParseAmountMinor(amount, currency string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %v", amount, err)
	}
	if d.IsNegative() || d.IsZero() {
		return 0, fmt.Errorf("amount must be positive, got %q", amount)
	}

	minor := d.Shift(exponent(currency))
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %q has more precision than %s allows", amount, currency)
	}
	return minor.IntPart(), nil
}

// FormatMinor renders minor units back to a decimal string for display.
func FormatMinor(minor int64, currency string) string {
	return decimal.NewFromInt(minor).Shift(-exponent(currency)).StringFixed(exponent(currency))
}
