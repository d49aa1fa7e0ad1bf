package ledger_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhmetov/payvault/internal/ledger"
)

func TestType_IsValid(t *testing.T) {
	for _, typ := range ledger.AllTypes() {
		t.Run(string(typ), func(t *testing.T) {
			assert.True(t, typ.IsValid())
		})
	}
	assert.False(t, ledger.Type("loan").IsValid())
}

func TestType_RequiresApproval(t *testing.T) {
	assert.True(t, ledger.TypeDeposit.RequiresApproval())
	assert.True(t, ledger.TypeWithdrawal.RequiresApproval())
	assert.True(t, ledger.TypeSend.RequiresApproval())
	assert.True(t, ledger.TypeRequest.RequiresApproval())
	// Exchanges self-settle
	assert.False(t, ledger.TypeExchange.RequiresApproval())
}

func TestType_AllowsMethod(t *testing.T) {
	tests := []struct {
		typ     ledger.Type
		method  ledger.Method
		allowed bool
	}{
		{ledger.TypeDeposit, ledger.MethodBank, true},
		{ledger.TypeDeposit, ledger.MethodCard, true},
		{ledger.TypeDeposit, ledger.MethodSystem, false},
		{ledger.TypeWithdrawal, ledger.MethodCrypto, true},
		{ledger.TypeWithdrawal, ledger.MethodCard, false},
		{ledger.TypeSend, ledger.MethodManual, true},
		{ledger.TypeSend, ledger.MethodBank, false},
		{ledger.TypeExchange, ledger.MethodSystem, true},
		{ledger.TypeExchange, ledger.MethodManual, false},
		{ledger.TypeRequest, ledger.MethodManual, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+string(tt.method), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.typ.AllowsMethod(tt.method))
		})
	}
}

func TestStatus_CanTransitionTo(t *testing.T) {
	terminal := []ledger.Status{
		ledger.StatusCompleted,
		ledger.StatusFailed,
		ledger.StatusCancelled,
		ledger.StatusRejected,
	}

	for _, next := range terminal {
		assert.True(t, ledger.StatusPending.CanTransitionTo(next), "pending -> %s", next)
	}

	// Nothing leaves a terminal state, not even back to pending
	for _, from := range terminal {
		assert.True(t, from.IsTerminal())
		for _, next := range append(terminal, ledger.StatusPending) {
			assert.False(t, from.CanTransitionTo(next), "%s -> %s must be refused", from, next)
		}
	}

	assert.False(t, ledger.StatusPending.CanTransitionTo(ledger.StatusPending))
	assert.False(t, ledger.StatusPending.IsTerminal())
}

func newPendingTransaction() *ledger.Transaction {
	return &ledger.Transaction{
		ID:        uuid.New(),
		Reference: ledger.NewReference(),
		UserID:    uuid.New(),
		WalletID:  uuid.New(),
		Type:      ledger.TypeDeposit,
		Method:    ledger.MethodBank,
		Status:    ledger.StatusPending,
		Amount:    decimal.RequireFromString("100"),
		Currency:  "USD",
		Detail:    ledger.NoDetail(true),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestTransaction_MarkCompleted(t *testing.T) {
	tx := newPendingTransaction()
	approver := uuid.New()
	now := time.Now()

	require.NoError(t, tx.MarkCompleted(&approver, now))
	assert.Equal(t, ledger.StatusCompleted, tx.Status)
	require.NotNil(t, tx.ApprovedBy)
	assert.Equal(t, approver, *tx.ApprovedBy)
	require.NotNil(t, tx.ApprovedAt)

	// Terminal: a second transition is refused
	assert.ErrorIs(t, tx.MarkCompleted(&approver, now), ledger.ErrInvalidStateTransition)
	assert.ErrorIs(t, tx.MarkRejected(approver, "no", now), ledger.ErrInvalidStateTransition)
	assert.ErrorIs(t, tx.MarkCancelled("no", now), ledger.ErrInvalidStateTransition)
}

func TestTransaction_MarkRejected(t *testing.T) {
	tx := newPendingTransaction()
	approver := uuid.New()

	require.NoError(t, tx.MarkRejected(approver, "suspicious origin", time.Now()))
	assert.Equal(t, ledger.StatusRejected, tx.Status)
	require.NotNil(t, tx.FailureReason)
	assert.Equal(t, "suspicious origin", *tx.FailureReason)
}

func TestTransaction_MarkCancelled(t *testing.T) {
	tx := newPendingTransaction()

	require.NoError(t, tx.MarkCancelled("user cancelled", time.Now()))
	assert.Equal(t, ledger.StatusCancelled, tx.Status)
	assert.Nil(t, tx.ApprovedBy, "cancel is self-service, no approver stamped")
}

func TestTransaction_MarkFailed(t *testing.T) {
	tx := newPendingTransaction()

	require.NoError(t, tx.MarkFailed("rail returned an error", time.Now()))
	assert.Equal(t, ledger.StatusFailed, tx.Status)
	require.NotNil(t, tx.FailureReason)
	assert.ErrorIs(t, tx.MarkCompleted(nil, time.Now()), ledger.ErrInvalidStateTransition)
}

func TestTransaction_Validate(t *testing.T) {
	tx := newPendingTransaction()
	assert.NoError(t, tx.Validate())

	bad := *tx
	bad.Amount = decimal.Zero
	assert.ErrorIs(t, bad.Validate(), ledger.ErrInvalidAmount)

	bad = *tx
	bad.Method = ledger.MethodSystem // not allowed for deposit
	assert.ErrorIs(t, bad.Validate(), ledger.ErrInvalidMethod)

	bad = *tx
	bad.Reference = ""
	assert.ErrorIs(t, bad.Validate(), ledger.ErrMissingReference)

	bad = *tx
	bad.Type = ledger.TypeSend
	bad.Method = ledger.MethodManual
	assert.ErrorIs(t, bad.Validate(), ledger.ErrMissingCounterparty)
}

func TestNewReference_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := ledger.NewReference()
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

func TestDetail_RoundTrip(t *testing.T) {
	rate := decimal.RequireFromString("0.85")
	detail := ledger.Detail{
		Kind: ledger.DetailKindExchange,
		Exchange: &ledger.ExchangeDetail{
			FromCurrency: "USD",
			ToCurrency:   "EUR",
			Rate:         rate,
			Exchanged:    decimal.RequireFromString("85"),
			Fee:          decimal.RequireFromString("0.85"),
			Net:          decimal.RequireFromString("84.15"),
		},
	}

	data, err := json.Marshal(detail)
	require.NoError(t, err)

	var got ledger.Detail
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, ledger.DetailKindExchange, got.Kind)
	require.NotNil(t, got.Exchange)
	assert.True(t, got.Exchange.Net.Equal(decimal.RequireFromString("84.15")))
	assert.Nil(t, got.Bank)
	assert.Nil(t, got.Request)
}

func TestDetail_KindMismatch(t *testing.T) {
	// Kind says bank but no bank payload is set
	detail := ledger.Detail{Kind: ledger.DetailKindBank}
	_, err := json.Marshal(detail)
	assert.ErrorIs(t, err, ledger.ErrInvalidDetail)

	var got ledger.Detail
	err = json.Unmarshal([]byte(`{"kind":"teleport","data":{}}`), &got)
	assert.Error(t, err)
}

func TestDetail_RequiresApprovalCarried(t *testing.T) {
	detail := ledger.Detail{
		Kind:             ledger.DetailKindCrypto,
		RequiresApproval: true,
		Crypto:           &ledger.CryptoDetail{Network: "bitcoin", Address: "bc1qxy"},
	}

	data, err := json.Marshal(detail)
	require.NoError(t, err)

	var got ledger.Detail
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.RequiresApproval)
}
