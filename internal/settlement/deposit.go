package settlement

import (
	"context"
	"fmt"

	"github.com/akhmetov/payvault/internal/ledger"
)

// depositSettler credits the owner's wallet when a deposit is approved.
type depositSettler struct {
	repo ledger.Repository
}

func newDepositSettler(repo ledger.Repository) *depositSettler {
	return &depositSettler{repo: repo}
}

func (s *depositSettler) Type() ledger.Type {
	return ledger.TypeDeposit
}

func (s *depositSettler) Settle(ctx context.Context, tx *ledger.Transaction) error {
	if _, err := s.repo.GetOrCreateWallet(ctx, tx.UserID, tx.Currency); err != nil {
		return fmt.Errorf("failed to ensure wallet: %w", err)
	}

	w, err := s.repo.GetWalletForUpdate(ctx, tx.UserID, tx.Currency)
	if err != nil {
		return fmt.Errorf("failed to lock wallet: %w", err)
	}

	if err := w.Credit(tx.Amount); err != nil {
		return err
	}

	if err := s.repo.SaveWalletBalance(ctx, w); err != nil {
		return fmt.Errorf("failed to save wallet balance: %w", err)
	}

	return nil
}
