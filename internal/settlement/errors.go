package settlement

import "errors"

var (
	// ErrPersistence is the opaque failure surfaced when the store fails
	// inside an atomic unit. Full detail is logged, never returned.
	ErrPersistence = errors.New("persistence failure")

	// ErrSelfCounterparty rejects transfers and requests addressed to the
	// transaction's own owner.
	ErrSelfCounterparty = errors.New("counterparty cannot be the transaction owner")

	// ErrNotOwner rejects self-service actions on someone else's transaction.
	ErrNotOwner = errors.New("transaction does not belong to this user")

	// ErrSameCurrency rejects exchanges between identical currencies.
	ErrSameCurrency = errors.New("exchange requires two different currencies")
)
