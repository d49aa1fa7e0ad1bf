// Package fee implements the per-method fee calculator. Calculation is a
// pure function of (amount, method): no I/O, no clocks, no state.
package fee

import "github.com/shopspring/decimal"

// Rate is a single fee rule: a percentage of the amount plus a fixed charge.
type Rate struct {
	// Percent is a fraction, e.g. 0.025 for 2.5%.
	Percent decimal.Decimal
	// Fixed is a flat charge in the transaction currency.
	Fixed decimal.Decimal
}

// Breakdown is the result of a fee calculation.
type Breakdown struct {
	Percent decimal.Decimal `json:"percent"`
	Fixed   decimal.Decimal `json:"fixed"`
	Total   decimal.Decimal `json:"total"`
}

// Schedule maps method codes to fee rates, with a fallback rate for
// methods without an explicit entry.
type Schedule struct {
	rates    map[string]Rate
	fallback Rate
}

// NewSchedule builds a schedule from explicit per-method rates and a fallback.
func NewSchedule(rates map[string]Rate, fallback Rate) Schedule {
	copied := make(map[string]Rate, len(rates))
	for method, rate := range rates {
		copied[method] = rate
	}
	return Schedule{rates: copied, fallback: fallback}
}

// DefaultSchedule returns the platform fee table:
// bank 2.5% + 0.30, crypto 0.5% + 0, card 3% + 0.25, anything else 2% + 0.20.
func DefaultSchedule() Schedule {
	return NewSchedule(map[string]Rate{
		"bank":   {Percent: decimal.RequireFromString("0.025"), Fixed: decimal.RequireFromString("0.30")},
		"crypto": {Percent: decimal.RequireFromString("0.005"), Fixed: decimal.Zero},
		"card":   {Percent: decimal.RequireFromString("0.03"), Fixed: decimal.RequireFromString("0.25")},
	}, Rate{
		Percent: decimal.RequireFromString("0.02"),
		Fixed:   decimal.RequireFromString("0.20"),
	})
}

// Calculate computes the fee breakdown for an amount and method.
// Identical inputs always produce identical output.
func (s Schedule) Calculate(amount decimal.Decimal, method string) Breakdown {
	rate, ok := s.rates[method]
	if !ok {
		rate = s.fallback
	}

	percent := amount.Mul(rate.Percent)
	return Breakdown{
		Percent: percent,
		Fixed:   rate.Fixed,
		Total:   percent.Add(rate.Fixed),
	}
}
