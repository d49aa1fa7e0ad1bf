package settlement

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/akhmetov/payvault/internal/ledger"
	"github.com/akhmetov/payvault/internal/wallet"
)

// memRepo is an in-memory ledger.Repository for engine tests. BeginTx takes
// the repo mutex and holds it until commit or rollback, which serializes
// concurrent units the way row locks would; RollbackTx restores the
// snapshot taken at BeginTx. Getters return copies and setters store
// copies, so stored records are never aliased by callers.
type memRepo struct {
	mu      sync.Mutex
	wallets map[string]*wallet.Wallet
	txs     map[uuid.UUID]*ledger.Transaction
	refs    map[string]uuid.UUID

	// failure injection
	refCollisions    int   // force this many duplicate-reference errors
	failSaveStatus   error // returned by SaveTransactionStatus
	failSaveBalance  error // returned by SaveWalletBalance
	saveBalanceCalls int   // fail only after this many successful saves
}

type memUnitKey struct{}

type memUnit struct {
	wallets map[string]*wallet.Wallet
	txs     map[uuid.UUID]*ledger.Transaction
	refs    map[string]uuid.UUID
}

func newMemRepo() *memRepo {
	return &memRepo{
		wallets: make(map[string]*wallet.Wallet),
		txs:     make(map[uuid.UUID]*ledger.Transaction),
		refs:    make(map[string]uuid.UUID),
	}
}

func walletMapKey(userID uuid.UUID, currency string) string {
	return userID.String() + "/" + currency
}

// seedWallet installs a wallet with the given balance.
func (r *memRepo) seedWallet(userID uuid.UUID, currency, balance string) *wallet.Wallet {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := wallet.New(userID, currency)
	w.Balance = decimal.RequireFromString(balance)
	r.wallets[walletMapKey(userID, currency)] = w
	clone := *w
	return &clone
}

func (r *memRepo) balance(userID uuid.UUID, currency string) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wallets[walletMapKey(userID, currency)]
	if !ok {
		return decimal.Zero
	}
	return w.Balance
}

func (r *memRepo) hasWallet(userID uuid.UUID, currency string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.wallets[walletMapKey(userID, currency)]
	return ok
}

// lock takes the repo mutex unless the context carries an open unit, which
// already holds it.
func (r *memRepo) lock(ctx context.Context) func() {
	if ctx.Value(memUnitKey{}) != nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *memRepo) BeginTx(ctx context.Context) (context.Context, error) {
	r.mu.Lock()

	snap := &memUnit{
		wallets: make(map[string]*wallet.Wallet, len(r.wallets)),
		txs:     make(map[uuid.UUID]*ledger.Transaction, len(r.txs)),
		refs:    make(map[string]uuid.UUID, len(r.refs)),
	}
	for k, v := range r.wallets {
		snap.wallets[k] = v
	}
	for k, v := range r.txs {
		snap.txs[k] = v
	}
	for k, v := range r.refs {
		snap.refs[k] = v
	}

	return context.WithValue(ctx, memUnitKey{}, snap), nil
}

var errNoOpenUnit = errors.New("no open unit in context")

func (r *memRepo) CommitTx(ctx context.Context) error {
	if ctx.Value(memUnitKey{}) == nil {
		return errNoOpenUnit
	}
	r.mu.Unlock()
	return nil
}

func (r *memRepo) RollbackTx(ctx context.Context) error {
	snap, ok := ctx.Value(memUnitKey{}).(*memUnit)
	if !ok {
		return errNoOpenUnit
	}
	r.wallets = snap.wallets
	r.txs = snap.txs
	r.refs = snap.refs
	r.mu.Unlock()
	return nil
}

func (r *memRepo) GetWallet(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	defer r.lock(ctx)()

	w, ok := r.wallets[walletMapKey(userID, currency)]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	clone := *w
	return &clone, nil
}

func (r *memRepo) GetWalletForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	return r.GetWallet(ctx, userID, currency)
}

func (r *memRepo) GetOrCreateWallet(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	defer r.lock(ctx)()

	key := walletMapKey(userID, currency)
	if w, ok := r.wallets[key]; ok {
		clone := *w
		return &clone, nil
	}
	w := wallet.New(userID, currency)
	r.wallets[key] = w
	clone := *w
	return &clone, nil
}

func (r *memRepo) SaveWalletBalance(ctx context.Context, w *wallet.Wallet) error {
	defer r.lock(ctx)()

	if r.failSaveBalance != nil {
		if r.saveBalanceCalls == 0 {
			return r.failSaveBalance
		}
		r.saveBalanceCalls--
	}

	clone := *w
	r.wallets[walletMapKey(w.UserID, w.Currency)] = &clone
	return nil
}

func (r *memRepo) CreateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	defer r.lock(ctx)()

	if r.refCollisions > 0 {
		r.refCollisions--
		return ledger.ErrDuplicateReference
	}
	if _, exists := r.refs[tx.Reference]; exists {
		return ledger.ErrDuplicateReference
	}

	clone := *tx
	r.txs[tx.ID] = &clone
	r.refs[tx.Reference] = tx.ID
	return nil
}

func (r *memRepo) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	defer r.lock(ctx)()

	tx, ok := r.txs[id]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	clone := *tx
	return &clone, nil
}

func (r *memRepo) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return r.GetTransaction(ctx, id)
}

func (r *memRepo) GetTransactionByReference(ctx context.Context, reference string) (*ledger.Transaction, error) {
	defer r.lock(ctx)()

	id, ok := r.refs[reference]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	clone := *r.txs[id]
	return &clone, nil
}

func (r *memRepo) SaveTransactionStatus(ctx context.Context, tx *ledger.Transaction) error {
	defer r.lock(ctx)()

	if r.failSaveStatus != nil {
		return r.failSaveStatus
	}
	if _, ok := r.txs[tx.ID]; !ok {
		return ledger.ErrTransactionNotFound
	}
	clone := *tx
	r.txs[tx.ID] = &clone
	return nil
}

func (r *memRepo) ListTransactions(ctx context.Context, filter ledger.Filter, page ledger.Pagination) (*ledger.Page, error) {
	defer r.lock(ctx)()

	var matched []*ledger.Transaction
	for _, tx := range r.txs {
		if filter.UserID != nil && tx.UserID != *filter.UserID {
			continue
		}
		if filter.Type != nil && tx.Type != *filter.Type {
			continue
		}
		if filter.Status != nil && tx.Status != *filter.Status {
			continue
		}
		if filter.Currency != nil && tx.Currency != *filter.Currency {
			continue
		}
		if filter.From != nil && tx.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && tx.CreatedAt.After(*filter.To) {
			continue
		}
		clone := *tx
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Reference > matched[j].Reference
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := page.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return &ledger.Page{
		Items:  matched[start:end],
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}, nil
}
