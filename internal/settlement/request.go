package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/akhmetov/payvault/internal/ledger"
	"github.com/akhmetov/payvault/internal/wallet"
	"github.com/akhmetov/payvault/pkg/logger"
)

// requestSettler handles payment requests. The requester prepays the fee
// at creation time (Reserve); on approval the counterparty is debited the
// amount and the requester credited the gross amount (Settle); on reject
// or cancel the prepaid fee is refunded (Compensate).
type requestSettler struct {
	repo   ledger.Repository
	logger *logger.Logger
}

func newRequestSettler(repo ledger.Repository, log *logger.Logger) *requestSettler {
	return &requestSettler{repo: repo, logger: log.WithField("settler", "request")}
}

func (s *requestSettler) Type() ledger.Type {
	return ledger.TypeRequest
}

// Reserve debits the prepaid fee from the requester inside the creation
// unit. A requester who cannot cover the fee cannot open a request.
func (s *requestSettler) Reserve(ctx context.Context, tx *ledger.Transaction) error {
	if !tx.Fee.Total.IsPositive() {
		return nil
	}

	w, err := s.repo.GetWalletForUpdate(ctx, tx.UserID, tx.Currency)
	if err != nil {
		return fmt.Errorf("failed to lock requester wallet: %w", err)
	}

	if err := w.Debit(tx.Fee.Total); err != nil {
		return err
	}

	return s.repo.SaveWalletBalance(ctx, w)
}

func (s *requestSettler) Settle(ctx context.Context, tx *ledger.Transaction) error {
	if tx.CounterpartyID == nil {
		return ledger.ErrMissingCounterparty
	}

	if _, err := s.repo.GetOrCreateWallet(ctx, tx.UserID, tx.Currency); err != nil {
		return fmt.Errorf("failed to ensure requester wallet: %w", err)
	}
	if _, err := s.repo.GetOrCreateWallet(ctx, *tx.CounterpartyID, tx.Currency); err != nil {
		return fmt.Errorf("failed to ensure payer wallet: %w", err)
	}

	payer, requester, err := lockWalletPair(ctx, s.repo,
		walletKey{userID: *tx.CounterpartyID, currency: tx.Currency},
		walletKey{userID: tx.UserID, currency: tx.Currency},
	)
	if err != nil {
		return fmt.Errorf("failed to lock wallets: %w", err)
	}

	// Fee was prepaid at creation; the payer owes the bare amount.
	if err := payer.Debit(tx.Amount); err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			s.logger.WithContext(ctx).Warn("insufficient funds at approval",
				"stage", "approval",
				"reference", tx.Reference,
				"requested", tx.Amount.String(),
				"balance", payer.Balance.String(),
			)
		}
		return err
	}

	if err := requester.Credit(tx.Amount); err != nil {
		return err
	}

	if err := s.repo.SaveWalletBalance(ctx, payer); err != nil {
		return fmt.Errorf("failed to save payer balance: %w", err)
	}
	if err := s.repo.SaveWalletBalance(ctx, requester); err != nil {
		return fmt.Errorf("failed to save requester balance: %w", err)
	}

	return nil
}

// Compensate refunds the prepaid fee inside the reject/cancel unit.
func (s *requestSettler) Compensate(ctx context.Context, tx *ledger.Transaction) error {
	prepaid := tx.Fee.Total
	if tx.Detail.Request != nil {
		prepaid = tx.Detail.Request.PrepaidFee
	}
	if !prepaid.IsPositive() {
		return nil
	}

	w, err := s.repo.GetWalletForUpdate(ctx, tx.UserID, tx.Currency)
	if err != nil {
		return fmt.Errorf("failed to lock requester wallet: %w", err)
	}

	if err := w.Credit(prepaid); err != nil {
		return err
	}

	return s.repo.SaveWalletBalance(ctx, w)
}
