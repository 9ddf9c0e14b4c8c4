package client

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that are negative, too precise for
// the mint or overflow a u64.
var ErrInvalidAmount = errors.New("invalid token amount")

var maxU64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ParseAmount converts a UI amount such as "1.5" into base units for a mint
// with the given decimals.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	units := d.Shift(int32(decimals))
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, decimals)
	}
	if units.GreaterThan(maxU64) {
		return 0, fmt.Errorf("%w: %q overflows u64", ErrInvalidAmount, s)
	}
	return units.BigInt().Uint64(), nil
}

// FormatAmount renders base units as a UI amount with exactly decimals places.
func FormatAmount(units uint64, decimals uint8) string {
	return ToDecimal(units, decimals).StringFixed(int32(decimals))
}

// ToDecimal converts base units to a decimal UI amount.
func ToDecimal(units uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(decimals))
}
