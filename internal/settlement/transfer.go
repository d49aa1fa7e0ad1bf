package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/akhmetov/payvault/internal/ledger"
	"github.com/akhmetov/payvault/internal/wallet"
	"github.com/akhmetov/payvault/pkg/logger"
)

// transferSettler moves money between two users when a send is approved:
// the sender is debited amount plus fee, the recipient is credited the
// gross amount. The fee is borne entirely by the sender.
type transferSettler struct {
	repo   ledger.Repository
	logger *logger.Logger
}

func newTransferSettler(repo ledger.Repository, log *logger.Logger) *transferSettler {
	return &transferSettler{repo: repo, logger: log.WithField("settler", "transfer")}
}

func (s *transferSettler) Type() ledger.Type {
	return ledger.TypeSend
}

func (s *transferSettler) Settle(ctx context.Context, tx *ledger.Transaction) error {
	if tx.CounterpartyID == nil {
		return ledger.ErrMissingCounterparty
	}

	// The recipient wallet may not exist yet; create it before locking.
	if _, err := s.repo.GetOrCreateWallet(ctx, *tx.CounterpartyID, tx.Currency); err != nil {
		return fmt.Errorf("failed to ensure recipient wallet: %w", err)
	}

	sender, recipient, err := lockWalletPair(ctx, s.repo,
		walletKey{userID: tx.UserID, currency: tx.Currency},
		walletKey{userID: *tx.CounterpartyID, currency: tx.Currency},
	)
	if err != nil {
		return fmt.Errorf("failed to lock wallets: %w", err)
	}

	if err := sender.Debit(tx.Reserved()); err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			s.logger.WithContext(ctx).Warn("insufficient funds at approval",
				"stage", "approval",
				"reference", tx.Reference,
				"requested", tx.Reserved().String(),
				"balance", sender.Balance.String(),
			)
		}
		return err
	}

	if err := recipient.Credit(tx.Amount); err != nil {
		return err
	}

	if err := s.repo.SaveWalletBalance(ctx, sender); err != nil {
		return fmt.Errorf("failed to save sender balance: %w", err)
	}
	if err := s.repo.SaveWalletBalance(ctx, recipient); err != nil {
		return fmt.Errorf("failed to save recipient balance: %w", err)
	}

	return nil
}
