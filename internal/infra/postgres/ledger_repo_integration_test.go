//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhmetov/payvault/internal/fee"
	"github.com/akhmetov/payvault/internal/ledger"
	"github.com/akhmetov/payvault/internal/wallet"
	"github.com/akhmetov/payvault/testutil/testdb"
)

var testDB *testdb.TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testdb.NewTestDB(ctx)
	if err != nil {
		panic("failed to create test database: " + err.Error())
	}

	code := m.Run()

	testDB.Close(ctx)
	if code != 0 {
		panic("tests failed")
	}
}

func setupTest(t *testing.T) (*LedgerRepository, context.Context) {
	ctx := context.Background()
	require.NoError(t, testDB.Reset(ctx))

	repo := NewLedgerRepository(testDB.Pool)
	return repo, ctx
}

// Helper to create a test user
func createTestUser(t *testing.T, ctx context.Context) uuid.UUID {
	userID := uuid.New()
	_, err := testDB.Pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, 'user', NOW(), NOW())
	`, userID, "test-"+userID.String()[:8]+"@example.com", "hash")
	require.NoError(t, err)
	return userID
}

func pendingTransaction(userID, walletID uuid.UUID) *ledger.Transaction {
	now := time.Now().UTC()
	return &ledger.Transaction{
		ID:        uuid.New(),
		Reference: ledger.NewReference(),
		UserID:    userID,
		WalletID:  walletID,
		Type:      ledger.TypeDeposit,
		Method:    ledger.MethodBank,
		Status:    ledger.StatusPending,
		Amount:    decimal.RequireFromString("100"),
		Currency:  "USD",
		Fee: fee.Breakdown{
			Percent: decimal.RequireFromString("2.5"),
			Fixed:   decimal.RequireFromString("0.30"),
			Total:   decimal.RequireFromString("2.80"),
		},
		Detail:    ledger.NoDetail(true),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestLedgerRepository_GetOrCreateWallet(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)

	w, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)
	assert.Equal(t, userID, w.UserID)
	assert.Equal(t, "USD", w.Currency)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.IsActive)

	// Second call resolves to the same row.
	again, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)
}

func TestLedgerRepository_GetWallet_NotFound(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)

	_, err := repo.GetWallet(ctx, userID, "EUR")
	require.ErrorIs(t, err, wallet.ErrWalletNotFound)
}

func TestLedgerRepository_SaveWalletBalance(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)

	w, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)

	require.NoError(t, w.Credit(decimal.RequireFromString("42.50")))
	require.NoError(t, repo.SaveWalletBalance(ctx, w))

	got, err := repo.GetWallet(ctx, userID, "USD")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("42.50")),
		"want 42.50, got %s", got.Balance)
}

func TestLedgerRepository_CreateTransaction_RoundTrip(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)

	w, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)

	tx := pendingTransaction(userID, w.ID)
	tx.Detail = ledger.Detail{
		Kind:             ledger.DetailKindBank,
		RequiresApproval: true,
		Bank: &ledger.BankDetail{
			BankName:      "First National",
			AccountName:   "J. Smith",
			AccountNumber: "000123004411",
		},
	}
	require.NoError(t, repo.CreateTransaction(ctx, tx))

	got, err := repo.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Reference, got.Reference)
	assert.Equal(t, ledger.TypeDeposit, got.Type)
	assert.Equal(t, ledger.StatusPending, got.Status)
	assert.True(t, got.Amount.Equal(tx.Amount))
	assert.True(t, got.Fee.Total.Equal(tx.Fee.Total))
	require.NotNil(t, got.Detail.Bank)
	assert.Equal(t, "First National", got.Detail.Bank.BankName)
	assert.True(t, got.Detail.RequiresApproval)

	byRef, err := repo.GetTransactionByReference(ctx, tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, byRef.ID)
}

func TestLedgerRepository_CreateTransaction_DuplicateReference(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)

	w, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)

	tx := pendingTransaction(userID, w.ID)
	require.NoError(t, repo.CreateTransaction(ctx, tx))

	dup := pendingTransaction(userID, w.ID)
	dup.Reference = tx.Reference
	err = repo.CreateTransaction(ctx, dup)
	require.ErrorIs(t, err, ledger.ErrDuplicateReference)
}

func TestLedgerRepository_CreateTransaction_RetryAfterCollisionInUnit(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)

	w, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)

	existing := pendingTransaction(userID, w.ID)
	require.NoError(t, repo.CreateTransaction(ctx, existing))

	// A unique violation must not abort the whole unit: the insert runs
	// under a savepoint, so a retry with a fresh reference and further
	// writes in the same unit still succeed.
	txCtx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	colliding := pendingTransaction(userID, w.ID)
	colliding.Reference = existing.Reference
	require.ErrorIs(t, repo.CreateTransaction(txCtx, colliding), ledger.ErrDuplicateReference)

	colliding.Reference = ledger.NewReference()
	require.NoError(t, repo.CreateTransaction(txCtx, colliding))

	locked, err := repo.GetWalletForUpdate(txCtx, userID, "USD")
	require.NoError(t, err)
	require.NoError(t, locked.Credit(decimal.RequireFromString("5")))
	require.NoError(t, repo.SaveWalletBalance(txCtx, locked))

	require.NoError(t, repo.CommitTx(txCtx))

	got, err := repo.GetTransaction(ctx, colliding.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got.Status)

	after, err := repo.GetWallet(ctx, userID, "USD")
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.RequireFromString("5")))
}

func TestLedgerRepository_CreateTransaction_ConcurrentReferencesDistinct(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)

	w, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.CreateTransaction(ctx, pendingTransaction(userID, w.ID))
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
	}

	var distinct int
	err = testDB.Pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT reference) FROM transactions WHERE user_id = $1`, userID,
	).Scan(&distinct)
	require.NoError(t, err)
	assert.Equal(t, writers, distinct)
}

func TestLedgerRepository_SaveTransactionStatus(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)
	admin := createTestUser(t, ctx)

	w, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)

	tx := pendingTransaction(userID, w.ID)
	require.NoError(t, repo.CreateTransaction(ctx, tx))

	require.NoError(t, tx.MarkCompleted(&admin, time.Now().UTC()))
	require.NoError(t, repo.SaveTransactionStatus(ctx, tx))

	got, err := repo.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, admin, *got.ApprovedBy)
	require.NotNil(t, got.ApprovedAt)
}

func TestLedgerRepository_AtomicUnit_Rollback(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)

	w, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)
	require.NoError(t, w.Credit(decimal.RequireFromString("100")))
	require.NoError(t, repo.SaveWalletBalance(ctx, w))

	txCtx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	locked, err := repo.GetWalletForUpdate(txCtx, userID, "USD")
	require.NoError(t, err)
	require.NoError(t, locked.Debit(decimal.RequireFromString("30")))
	require.NoError(t, repo.SaveWalletBalance(txCtx, locked))

	tx := pendingTransaction(userID, w.ID)
	require.NoError(t, repo.CreateTransaction(txCtx, tx))

	require.NoError(t, repo.RollbackTx(txCtx))

	// Everything inside the unit is gone.
	got, err := repo.GetWallet(ctx, userID, "USD")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("100")),
		"want 100, got %s", got.Balance)
	_, err = repo.GetTransaction(ctx, tx.ID)
	require.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestLedgerRepository_AtomicUnit_Commit(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)

	w, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)

	txCtx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	tx := pendingTransaction(userID, w.ID)
	require.NoError(t, repo.CreateTransaction(txCtx, tx))
	require.NoError(t, repo.CommitTx(txCtx))

	got, err := repo.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
}

func TestLedgerRepository_ListTransactions(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)
	other := createTestUser(t, ctx)

	w, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)
	otherW, err := repo.GetOrCreateWallet(ctx, other, "USD")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateTransaction(ctx, pendingTransaction(userID, w.ID)))
	}
	require.NoError(t, repo.CreateTransaction(ctx, pendingTransaction(other, otherW.ID)))

	page, err := repo.ListTransactions(ctx, ledger.Filter{UserID: &userID}, ledger.Pagination{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Items, 2)

	pending := ledger.StatusPending
	page, err = repo.ListTransactions(ctx, ledger.Filter{Status: &pending}, ledger.Pagination{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total)
}

func TestLedgerRepository_BalanceCheckConstraint(t *testing.T) {
	repo, ctx := setupTest(t)
	userID := createTestUser(t, ctx)

	w, err := repo.GetOrCreateWallet(ctx, userID, "USD")
	require.NoError(t, err)

	// A negative balance violates the schema check even if domain checks
	// were bypassed.
	w.Balance = decimal.RequireFromString("-1")
	err = repo.SaveWalletBalance(ctx, w)
	require.Error(t, err)
}
