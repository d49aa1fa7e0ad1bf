package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/akhmetov/payvault/internal/wallet"
)

// Repository is the persistence port the settlement engine runs against.
//
// BeginTx returns a context carrying an open atomic unit; every method
// called with that context operates inside the unit, and the unit either
// commits as a whole or rolls back as a whole. The ForUpdate variants
// take row locks and are only meaningful inside a unit.
type Repository interface {
	// Wallet operations
	GetWallet(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error)
	GetWalletForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error)
	GetOrCreateWallet(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error)
	SaveWalletBalance(ctx context.Context, w *wallet.Wallet) error

	// Transaction operations
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetTransactionByReference(ctx context.Context, reference string) (*Transaction, error)
	SaveTransactionStatus(ctx context.Context, tx *Transaction) error
	ListTransactions(ctx context.Context, filter Filter, page Pagination) (*Page, error)

	// Atomic unit management
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}

// Filter narrows transaction listings.
type Filter struct {
	UserID   *uuid.UUID
	Type     *Type
	Status   *Status
	Currency *string
	From     *time.Time
	To       *time.Time
}

// Pagination bounds a listing. Limit is defaulted and clamped by Normalize.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	// DefaultLimit applies when no limit is requested.
	DefaultLimit = 20
	// MaxLimit caps a single page.
	MaxLimit = 100
)

// Normalize returns a copy with the limit defaulted and clamped and the
// offset floored at zero.
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Page is one page of a transaction listing.
type Page struct {
	Items  []*Transaction
	Total  int64
	Limit  int
	Offset int
}
