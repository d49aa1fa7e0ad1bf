package wallet

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for wallet persistence operations.
// GetOrCreate must be race-safe: concurrent calls for the same
// (user, currency) pair resolve to the same row.
type Repository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, currency string) (*Wallet, error)
	GetByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency string) (*Wallet, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Wallet, error)
	SetDefault(ctx context.Context, userID, walletID uuid.UUID) error
	SetActive(ctx context.Context, walletID uuid.UUID, active bool) error
}
