package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/akhmetov/payvault/internal/ledger"
	"github.com/akhmetov/payvault/internal/wallet"
	"github.com/akhmetov/payvault/pkg/logger"
)

// withdrawalSettler debits the owner's wallet by amount plus fee when a
// withdrawal is approved. The balance is re-read under a row lock here;
// the snapshot taken at creation time is never trusted.
type withdrawalSettler struct {
	repo   ledger.Repository
	logger *logger.Logger
}

func newWithdrawalSettler(repo ledger.Repository, log *logger.Logger) *withdrawalSettler {
	return &withdrawalSettler{repo: repo, logger: log.WithField("settler", "withdrawal")}
}

func (s *withdrawalSettler) Type() ledger.Type {
	return ledger.TypeWithdrawal
}

func (s *withdrawalSettler) Settle(ctx context.Context, tx *ledger.Transaction) error {
	w, err := s.repo.GetWalletForUpdate(ctx, tx.UserID, tx.Currency)
	if err != nil {
		return fmt.Errorf("failed to lock wallet: %w", err)
	}

	if err := w.Debit(tx.Reserved()); err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			// Funds may have moved since creation; this is a distinct
			// failure path from the informational check at creation.
			s.logger.WithContext(ctx).Warn("insufficient funds at approval",
				"stage", "approval",
				"reference", tx.Reference,
				"requested", tx.Reserved().String(),
				"balance", w.Balance.String(),
			)
		}
		return err
	}

	if err := s.repo.SaveWalletBalance(ctx, w); err != nil {
		return fmt.Errorf("failed to save wallet balance: %w", err)
	}

	return nil
}
