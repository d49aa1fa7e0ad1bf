package settlement

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/akhmetov/payvault/internal/ledger"
	"github.com/akhmetov/payvault/internal/wallet"
)

// Settler applies the balance mutations for one transaction type. Settle is
// always called inside an open atomic unit with the transaction row locked;
// any error aborts the whole unit.
type Settler interface {
	// Type returns the transaction type this settler handles.
	Type() ledger.Type

	// Settle re-reads the affected wallet balances under row locks and
	// applies the mutations for an approved transaction.
	Settle(ctx context.Context, tx *ledger.Transaction) error
}

// Reserver is implemented by settlers whose type takes money at creation
// time (e.g. a fee-prepaid request). Reserve runs inside the creation
// unit; Compensate undoes the reservation inside the reject/cancel unit.
type Reserver interface {
	Reserve(ctx context.Context, tx *ledger.Transaction) error
	Compensate(ctx context.Context, tx *ledger.Transaction) error
}

// Registry maps transaction types to settlers.
type Registry struct {
	settlers map[ledger.Type]Settler
	mu       sync.RWMutex
}

// NewRegistry creates an empty settler registry.
func NewRegistry() *Registry {
	return &Registry{settlers: make(map[ledger.Type]Settler)}
}

// Register registers a settler for its transaction type.
// Returns an error if the type already has a settler.
func (r *Registry) Register(s Settler) error {
	if s == nil {
		return fmt.Errorf("settler cannot be nil")
	}

	typ := s.Type()
	if !typ.IsValid() {
		return fmt.Errorf("invalid settler type: %s", typ)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.settlers[typ]; exists {
		return fmt.Errorf("settler for type %q already registered", typ)
	}

	r.settlers[typ] = s
	return nil
}

// Get retrieves the settler for a transaction type.
func (r *Registry) Get(typ ledger.Type) (Settler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.settlers[typ]
	if !exists {
		return nil, fmt.Errorf("no settler registered for transaction type %q", typ)
	}

	return s, nil
}

// walletKey orders wallets for deterministic locking.
type walletKey struct {
	userID   uuid.UUID
	currency string
}

func (k walletKey) sortKey() string {
	return k.userID.String() + "/" + k.currency
}

// lockWalletPair locks two wallets in a deterministic order so that
// concurrent settlements touching the same pair cannot deadlock. Both
// wallets must already exist. The returned wallets match the argument
// order, not the lock order.
func lockWalletPair(ctx context.Context, repo ledger.Repository, a, b walletKey) (*wallet.Wallet, *wallet.Wallet, error) {
	keys := [2]walletKey{a, b}
	swapped := false
	if keys[1].sortKey() < keys[0].sortKey() {
		keys[0], keys[1] = keys[1], keys[0]
		swapped = true
	}

	first, err := repo.GetWalletForUpdate(ctx, keys[0].userID, keys[0].currency)
	if err != nil {
		return nil, nil, err
	}
	second, err := repo.GetWalletForUpdate(ctx, keys[1].userID, keys[1].currency)
	if err != nil {
		return nil, nil, err
	}

	if swapped {
		return second, first, nil
	}
	return first, second, nil
}
