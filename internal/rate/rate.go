// Package rate abstracts exchange-rate lookup. The settlement engine only
// sees the Provider interface; where rates actually come from is an
// injection concern.
package rate

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrRateUnavailable is returned when no rate is known for a currency pair.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Provider resolves the exchange rate for a currency pair.
// Implementations must be side-effect free from the caller's perspective
// and safe for concurrent use.
type Provider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}
