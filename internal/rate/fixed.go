package rate

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FixedTable is an in-memory rate table. Same-currency pairs resolve to 1;
// missing pairs fall back to the inverse pair when present.
type FixedTable struct {
	rates map[string]decimal.Decimal
}

// NewFixedTable builds a table from pair keys like "USD/EUR".
func NewFixedTable(rates map[string]decimal.Decimal) *FixedTable {
	copied := make(map[string]decimal.Decimal, len(rates))
	for pair, r := range rates {
		copied[strings.ToUpper(pair)] = r
	}
	return &FixedTable{rates: copied}
}

// DefaultTable returns a table seeded with the built-in pairs. Pairs not
// listed resolve through the inverse fallback or fail with
// ErrRateUnavailable.
func DefaultTable() *FixedTable {
	return NewFixedTable(map[string]decimal.Decimal{
		"USD/EUR":  decimal.RequireFromString("0.85"),
		"USD/GBP":  decimal.RequireFromString("0.73"),
		"EUR/GBP":  decimal.RequireFromString("0.86"),
		"BTC/USD":  decimal.RequireFromString("60000"),
		"ETH/USD":  decimal.RequireFromString("3000"),
		"USDT/USD": decimal.RequireFromString("1"),
		"BTC/ETH":  decimal.RequireFromString("20"),
	})
}

// Rate implements Provider.
func (t *FixedTable) Rate(_ context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		return decimal.NewFromInt(1), nil
	}

	if r, ok := t.rates[pairKey(from, to)]; ok {
		return r, nil
	}

	// Inverse pair fallback
	if r, ok := t.rates[pairKey(to, from)]; ok && r.IsPositive() {
		return decimal.NewFromInt(1).DivRound(r, 8), nil
	}

	return decimal.Zero, fmt.Errorf("%w: %s/%s", ErrRateUnavailable, from, to)
}

func pairKey(from, to string) string {
	return from + "/" + to
}
