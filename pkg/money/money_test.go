package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhmetov/payvault/pkg/money"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "integer", input: "100", want: "100"},
		{name: "two decimals", input: "20.50", want: "20.5"},
		{name: "eight decimals", input: "0.00000001", want: "0.00000001"},
		{name: "whitespace trimmed", input: " 5 ", want: "5"},
		{name: "empty", input: "", wantErr: true},
		{name: "zero", input: "0", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "too many decimals", input: "0.000000001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := money.Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"expected %s, got %s", tt.want, got)
		})
	}
}

func TestScale(t *testing.T) {
	assert.Equal(t, int32(2), money.Scale("USD"))
	assert.Equal(t, int32(2), money.Scale("EUR"))
	assert.Equal(t, int32(8), money.Scale("BTC"))
	assert.Equal(t, int32(8), money.Scale("btc"))
	assert.Equal(t, int32(8), money.Scale("USDT"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "79.40", money.Format(decimal.RequireFromString("79.4"), "USD"))
	assert.Equal(t, "0.01000000", money.Format(decimal.RequireFromString("0.01"), "BTC"))
	// Extra precision is preserved rather than silently rounded
	assert.Equal(t, "1.234", money.Format(decimal.RequireFromString("1.234"), "USD"))
}
