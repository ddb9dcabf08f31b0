package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are fixed-point int64 minor units with 4 decimal places.
// All ledger arithmetic happens on minor units; decimal.Decimal is used only
// at the parse/format boundary.
const (
	DecimalPlaces = 4
	Scale         = 10_000 // 10^DecimalPlaces
)

// Amount is a signed fixed-point monetary amount in minor units.
type Amount int64

var (
	// ErrOverflow is returned when an amount does not fit int64 minor units.
	ErrOverflow = errors.New("money: amount overflows int64 minor units")
)

// FromMinorUnits wraps a raw minor-unit value.
func FromMinorUnits(v int64) Amount {
	return Amount(v)
}

// MustParse parses s and panics on error. Test helper.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse converts a decimal string ("1.5", "0.0001", "-3") to minor units.
// Digits beyond 4 decimal places are truncated toward zero.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	minor := d.Truncate(DecimalPlaces).Shift(DecimalPlaces)
	bi := minor.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("money: parse %q: %w", s, ErrOverflow)
	}
	return Amount(bi.Int64()), nil
}

// Add returns a+b, failing on int64 overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, failing on int64 overflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, ErrOverflow
	}
	return diff, nil
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a == 0
}

// MinorUnits returns the raw minor-unit value, e.g. for persistence.
func (a Amount) MinorUnits() int64 {
	return int64(a)
}

// Decimal returns the amount as a decimal.Decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -DecimalPlaces)
}

// String renders the amount with minimal decimals: 80000 minor units -> "8",
// 15000 -> "1.5", 1 -> "0.0001".
func (a Amount) String() string {
	return a.Decimal().String()
}
