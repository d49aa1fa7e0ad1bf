package ledger

import "errors"

// Validation errors
var (
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidMethod       = errors.New("method not allowed for transaction type")
	ErrInvalidStatus       = errors.New("invalid transaction status")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrMissingReference    = errors.New("transaction reference is required")
	ErrMissingCounterparty = errors.New("counterparty is required for this transaction type")
	ErrInvalidDetail       = errors.New("detail payload does not match transaction type")
)

// State machine and persistence errors
var (
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrDuplicateReference     = errors.New("duplicate transaction reference")
)
