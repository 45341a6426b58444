// Package amount converts between on-chain planck balances and
// human-readable token amounts.
package amount

import (
	"errors"
	"fmt"
	"strings"

	"governance-unlocks/internal/governance"

	"github.com/shopspring/decimal"
)

var (
	ErrNegative  = errors.New("amount must not be negative")
	ErrPrecision = errors.New("amount has more decimals than the token")
)

// Decimal returns b expressed in whole tokens.
func Decimal(b governance.Balance, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(b.Big(), -decimals)
}

// Format renders b in whole tokens with trailing zeros trimmed,
// followed by symbol when set.
func Format(b governance.Balance, decimals int32, symbol string) string {
	return withSymbol(Decimal(b, decimals).String(), symbol)
}

// FormatFixed renders b truncated to places decimals. Truncation never
// overstates what can be unlocked.
func FormatFixed(b governance.Balance, decimals, places int32, symbol string) string {
	return withSymbol(Decimal(b, decimals).Truncate(places).StringFixed(places), symbol)
}

// Parse converts a token amount such as "12.5" into planck.
func Parse(s string, decimals int32) (governance.Balance, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return governance.Balance{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return governance.Balance{}, fmt.Errorf("parse amount %q: %w", s, ErrNegative)
	}
	planck := d.Shift(decimals)
	if !planck.Equal(planck.Truncate(0)) {
		return governance.Balance{}, fmt.Errorf("parse amount %q: %w", s, ErrPrecision)
	}
	return governance.ParseBalance(planck.BigInt().String())
}

func withSymbol(v, symbol string) string {
	if symbol == "" {
		return v
	}
	return v + " " + symbol
}
