// Package money provides decimal amount helpers shared by the wallet and
// ledger packages. Amounts are decimal.Decimal end to end; floats never
// touch balances.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxScale is the maximum number of decimal places an amount may carry.
// Matches the NUMERIC(30,8) columns backing balances.
const MaxScale = 8

// fiatScale is the display scale for fiat currencies.
const fiatScale = 2

// cryptoCurrencies lists catalog currencies carried at full 8-digit scale.
var cryptoCurrencies = map[string]bool{
	"BTC":  true,
	"ETH":  true,
	"USDT": true,
}

// Parse parses an amount string into a positive decimal.
// Rejects empty input, non-numeric input, non-positive values and
// values with more than MaxScale decimal places.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive, got %s", d)
	}

	if int(d.Exponent()) < -MaxScale {
		return decimal.Zero, fmt.Errorf("amount %s exceeds %d decimal places", d, MaxScale)
	}

	return d, nil
}

// Scale returns the canonical scale for a currency code.
func Scale(currency string) int32 {
	if cryptoCurrencies[strings.ToUpper(currency)] {
		return MaxScale
	}
	return fiatScale
}

// Format renders an amount at the currency's canonical scale,
// keeping extra precision when the value carries it.
func Format(d decimal.Decimal, currency string) string {
	scale := Scale(currency)
	if -d.Exponent() > scale {
		return d.String()
	}
	return d.StringFixed(scale)
}
