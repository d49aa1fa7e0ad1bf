// Package wallet holds the per-user, per-currency balance records. A wallet
// is created lazily with a zero balance on first reference and is never
// deleted, only deactivated. Balance mutations go through Credit and Debit
// so the non-negativity invariant is enforced in one place.
package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is a per-user, per-currency balance record.
// Unique per (UserID, Currency).
type Wallet struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Currency   string
	Balance    decimal.Decimal
	IsDefault  bool
	IsActive   bool
	LastAction time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// New creates a zero-balance wallet for a user and currency.
func New(userID uuid.UUID, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:         uuid.New(),
		UserID:     userID,
		Currency:   currency,
		Balance:    decimal.Zero,
		IsActive:   true,
		LastAction: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Credit increases the balance. Amount must be positive.
func (w *Wallet) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	w.Balance = w.Balance.Add(amount)
	w.touch()
	return nil
}

// Debit decreases the balance. Amount must be positive and must not
// exceed the current balance.
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	if amount.GreaterThan(w.Balance) {
		return ErrInsufficientFunds
	}

	w.Balance = w.Balance.Sub(amount)
	w.touch()
	return nil
}

// CanCover reports whether the balance covers the given amount.
func (w *Wallet) CanCover(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

func (w *Wallet) touch() {
	now := time.Now().UTC()
	w.LastAction = now
	w.UpdatedAt = now
}
