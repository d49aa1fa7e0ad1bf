package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akhmetov/payvault/internal/wallet"
)

// WalletRepository implements wallet.Repository on PostgreSQL.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a new PostgreSQL wallet repository.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

func (r *WalletRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	w := wallet.New(userID, currency)
	insert := `
		INSERT INTO wallets (id, user_id, currency, balance, is_default, is_active, last_action, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, currency) DO NOTHING
	`
	_, err := getQueryer(ctx, r.pool).Exec(ctx, insert,
		w.ID, w.UserID, w.Currency, w.Balance, w.IsDefault, w.IsActive,
		w.LastAction, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert wallet: %w", err)
	}

	return r.GetByUserAndCurrency(ctx, userID, currency)
}

func (r *WalletRepository) GetByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE user_id = $1 AND currency = $2`, walletColumns)

	var w wallet.Wallet
	err := getQueryer(ctx, r.pool).QueryRow(ctx, query, userID, currency).Scan(
		&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.IsDefault, &w.IsActive,
		&w.LastAction, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &w, nil
}

func (r *WalletRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*wallet.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE user_id = $1 ORDER BY created_at ASC`, walletColumns)

	rows, err := getQueryer(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*wallet.Wallet
	for rows.Next() {
		var w wallet.Wallet
		err := rows.Scan(
			&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.IsDefault, &w.IsActive,
			&w.LastAction, &w.CreatedAt, &w.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallets: %w", err)
	}

	return wallets, nil
}

// SetDefault flips the default flag to the given wallet, clearing it on
// the user's other wallets. The clear and the set commit together: an
// open unit in the context is reused, otherwise a local transaction
// wraps both statements so a failure cannot leave the user with no
// default wallet.
func (r *WalletRepository) SetDefault(ctx context.Context, userID, walletID uuid.UUID) error {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return r.setDefault(ctx, tx, userID, walletID)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return r.setDefault(ctx, tx, userID, walletID)
	})
}

func (r *WalletRepository) setDefault(ctx context.Context, q queryer, userID, walletID uuid.UUID) error {
	now := time.Now().UTC()

	if _, err := q.Exec(ctx,
		`UPDATE wallets SET is_default = FALSE, updated_at = $1 WHERE user_id = $2 AND is_default`, now, userID,
	); err != nil {
		return fmt.Errorf("failed to clear default wallet: %w", err)
	}

	tag, err := q.Exec(ctx,
		`UPDATE wallets SET is_default = TRUE, updated_at = $1 WHERE id = $2 AND user_id = $3`, now, walletID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set default wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrWalletNotFound
	}
	return nil
}

func (r *WalletRepository) SetActive(ctx context.Context, walletID uuid.UUID, active bool) error {
	tag, err := getQueryer(ctx, r.pool).Exec(ctx,
		`UPDATE wallets SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), walletID,
	)
	if err != nil {
		return fmt.Errorf("failed to set wallet active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrWalletNotFound
	}
	return nil
}
