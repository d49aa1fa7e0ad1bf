package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akhmetov/payvault/internal/ledger"
	"github.com/akhmetov/payvault/internal/wallet"
)

// LedgerRepository implements ledger.Repository on PostgreSQL. The
// ForUpdate variants take row locks and must run inside an open unit.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const walletColumns = `id, user_id, currency, balance, is_default, is_active, last_action, created_at, updated_at`

func (r *LedgerRepository) GetWallet(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE user_id = $1 AND currency = $2`, walletColumns)
	return r.scanWallet(getQueryer(ctx, r.pool).QueryRow(ctx, query, userID, currency))
}

func (r *LedgerRepository) GetWalletForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE user_id = $1 AND currency = $2 FOR UPDATE`, walletColumns)
	return r.scanWallet(getQueryer(ctx, r.pool).QueryRow(ctx, query, userID, currency))
}

// GetOrCreateWallet is race-safe: the insert yields to a concurrent
// creator via ON CONFLICT DO NOTHING and the follow-up select resolves
// both callers to the same row.
func (r *LedgerRepository) GetOrCreateWallet(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	q := getQueryer(ctx, r.pool)

	w := wallet.New(userID, currency)
	insert := `
		INSERT INTO wallets (id, user_id, currency, balance, is_default, is_active, last_action, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, currency) DO NOTHING
	`
	_, err := q.Exec(ctx, insert,
		w.ID, w.UserID, w.Currency, w.Balance, w.IsDefault, w.IsActive,
		w.LastAction, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert wallet: %w", err)
	}

	return r.GetWallet(ctx, userID, currency)
}

func (r *LedgerRepository) SaveWalletBalance(ctx context.Context, w *wallet.Wallet) error {
	query := `
		UPDATE wallets
		SET balance = $1, last_action = $2, updated_at = $3
		WHERE id = $4
	`
	tag, err := getQueryer(ctx, r.pool).Exec(ctx, query, w.Balance, w.LastAction, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("failed to save wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrWalletNotFound
	}
	return nil
}

const transactionColumns = `id, reference, user_id, wallet_id, type, method, status, amount, currency,
	fee_percent, fee_fixed, fee_total, counterparty_id, detail, approved_by, approved_at,
	failure_reason, created_at, updated_at`

func (r *LedgerRepository) CreateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	detailJSON, err := json.Marshal(tx.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal detail: %w", err)
	}

	query := `
		INSERT INTO transactions (id, reference, user_id, wallet_id, type, method, status, amount, currency,
			fee_percent, fee_fixed, fee_total, counterparty_id, detail, approved_by, approved_at,
			failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	args := []any{
		tx.ID, tx.Reference, tx.UserID, tx.WalletID,
		string(tx.Type), string(tx.Method), string(tx.Status),
		tx.Amount, tx.Currency,
		tx.Fee.Percent, tx.Fee.Fixed, tx.Fee.Total,
		tx.CounterpartyID, detailJSON,
		tx.ApprovedBy, tx.ApprovedAt, tx.FailureReason,
		tx.CreatedAt, tx.UpdatedAt,
	}

	// Inside an open unit the insert runs under a savepoint: a unique
	// violation aborts only the savepoint, so the caller can retry with
	// a fresh reference without poisoning the rest of the unit.
	if unitTx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		sp, err := unitTx.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to open savepoint: %w", err)
		}
		if _, err := sp.Exec(ctx, query, args...); err != nil {
			_ = sp.Rollback(ctx)
			if isUniqueViolation(err, "transactions_reference_key") {
				return ledger.ErrDuplicateReference
			}
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		if err := sp.Commit(ctx); err != nil {
			return fmt.Errorf("failed to release savepoint: %w", err)
		}
		return nil
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err, "transactions_reference_key") {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1`, transactionColumns)
	return r.scanTransaction(getQueryer(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *LedgerRepository) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1 FOR UPDATE`, transactionColumns)
	return r.scanTransaction(getQueryer(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *LedgerRepository) GetTransactionByReference(ctx context.Context, reference string) (*ledger.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE reference = $1`, transactionColumns)
	return r.scanTransaction(getQueryer(ctx, r.pool).QueryRow(ctx, query, reference))
}

func (r *LedgerRepository) SaveTransactionStatus(ctx context.Context, tx *ledger.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $1, approved_by = $2, approved_at = $3, failure_reason = $4, updated_at = $5
		WHERE id = $6
	`
	tag, err := getQueryer(ctx, r.pool).Exec(ctx, query,
		string(tx.Status), tx.ApprovedBy, tx.ApprovedAt, tx.FailureReason, tx.UpdatedAt, tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, filter ledger.Filter, page ledger.Pagination) (*ledger.Page, error) {
	q := getQueryer(ctx, r.pool)

	where := " WHERE 1=1"
	args := make([]any, 0, 8)
	argPos := 1

	appendArg := func(clause string, value any) {
		where += fmt.Sprintf(clause, argPos)
		args = append(args, value)
		argPos++
	}

	if filter.UserID != nil {
		appendArg(" AND user_id = $%d", *filter.UserID)
	}
	if filter.Type != nil {
		appendArg(" AND type = $%d", string(*filter.Type))
	}
	if filter.Status != nil {
		appendArg(" AND status = $%d", string(*filter.Status))
	}
	if filter.Currency != nil {
		appendArg(" AND currency = $%d", *filter.Currency)
	}
	if filter.From != nil {
		appendArg(" AND created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		appendArg(" AND created_at <= $%d", *filter.To)
	}

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argPos, argPos+1)
	args = append(args, page.Limit, page.Offset)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var items []*ledger.Transaction
	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return &ledger.Page{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

func (r *LedgerRepository) BeginTx(ctx context.Context) (context.Context, error) {
	return beginTx(ctx, r.pool)
}

func (r *LedgerRepository) CommitTx(ctx context.Context) error {
	return commitTx(ctx)
}

func (r *LedgerRepository) RollbackTx(ctx context.Context) error {
	return rollbackTx(ctx)
}

func (r *LedgerRepository) scanWallet(row pgx.Row) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := row.Scan(
		&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.IsDefault, &w.IsActive,
		&w.LastAction, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	return &w, nil
}

func (r *LedgerRepository) scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	var typ, method, status string
	var detailJSON []byte
	var counterpartyID, approvedBy *uuid.UUID
	var approvedAt *time.Time
	var failureReason sql.NullString

	err := row.Scan(
		&tx.ID, &tx.Reference, &tx.UserID, &tx.WalletID,
		&typ, &method, &status,
		&tx.Amount, &tx.Currency,
		&tx.Fee.Percent, &tx.Fee.Fixed, &tx.Fee.Total,
		&counterpartyID, &detailJSON,
		&approvedBy, &approvedAt, &failureReason,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Type = ledger.Type(typ)
	tx.Method = ledger.Method(method)
	tx.Status = ledger.Status(status)
	tx.CounterpartyID = counterpartyID
	tx.ApprovedBy = approvedBy
	tx.ApprovedAt = approvedAt
	if failureReason.Valid {
		tx.FailureReason = &failureReason.String
	}

	if len(detailJSON) > 0 {
		if err := json.Unmarshal(detailJSON, &tx.Detail); err != nil {
			return nil, fmt.Errorf("failed to unmarshal detail: %w", err)
		}
	}

	return &tx, nil
}
