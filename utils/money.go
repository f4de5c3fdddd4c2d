package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidMoney   = errors.New("invalid money amount")
	ErrMoneyPrecision = errors.New("money amount has more than two decimal places")
)

var hundred = decimal.NewFromInt(100)

// DollarsToCents converts a major-unit string such as "450" or "450.25" into cents.
func DollarsToCents(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, ErrInvalidMoney
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidMoney, err.Error())
	}
	cents := d.Mul(hundred)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, ErrMoneyPrecision
	}
	// IntPart wraps silently outside the int64 range
	if !cents.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidMoney, s)
	}
	return cents.IntPart(), nil
}

// CentsToDollars renders cents as a fixed two-decimal dollar string, e.g. 45025 -> "450.25".
func CentsToDollars(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// AverageCents returns sum/count rounded half away from zero. Zero count yields zero.
func AverageCents(sum int64, count int64) int64 {
	if count == 0 {
		return 0
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(count)).Round(0).IntPart()
}
