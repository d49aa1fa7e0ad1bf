// Package settlement is the transaction settlement engine: it records
// money-movement intents, gates them through the approval workflow and
// atomically mutates wallet balances when an intent is approved or
// self-settles.
//
// Every mutating path runs inside one atomic unit
// (Repository.BeginTx/CommitTx/RollbackTx): wallet mutations and the
// status flip commit together or not at all. Balances are re-read under
// row locks inside the unit immediately before being checked; snapshots
// taken earlier are never trusted.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/akhmetov/payvault/internal/currency"
	"github.com/akhmetov/payvault/internal/fee"
	"github.com/akhmetov/payvault/internal/ledger"
	"github.com/akhmetov/payvault/internal/notify"
	"github.com/akhmetov/payvault/internal/rate"
	"github.com/akhmetov/payvault/internal/wallet"
	"github.com/akhmetov/payvault/pkg/logger"
)

// referenceAttempts bounds reference regeneration on collision.
const referenceAttempts = 3

// Config wires the settlement engine's collaborators.
type Config struct {
	Repo            ledger.Repository
	Catalog         *currency.Catalog
	Fees            fee.Schedule
	Rates           rate.Provider
	ExchangeFeeRate decimal.Decimal
	Notifier        notify.Notifier
	Logger          *logger.Logger
}

// Service orchestrates transaction creation, approval, rejection,
// cancellation and exchange settlement.
type Service struct {
	repo            ledger.Repository
	catalog         *currency.Catalog
	fees            fee.Schedule
	rates           rate.Provider
	exchangeFeeRate decimal.Decimal
	notifier        notify.Notifier
	registry        *Registry
	logger          *logger.Logger
}

// NewService creates the settlement engine and registers the built-in
// settlers for every approval-gated transaction type.
func NewService(cfg Config) (*Service, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("currency catalog is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDefault("development")
	}

	s := &Service{
		repo:            cfg.Repo,
		catalog:         cfg.Catalog,
		fees:            cfg.Fees,
		rates:           cfg.Rates,
		exchangeFeeRate: cfg.ExchangeFeeRate,
		notifier:        cfg.Notifier,
		registry:        NewRegistry(),
		logger:          cfg.Logger.WithField("component", "settlement"),
	}

	log := cfg.Logger
	for _, settler := range []Settler{
		newDepositSettler(cfg.Repo),
		newWithdrawalSettler(cfg.Repo, log),
		newTransferSettler(cfg.Repo, log),
		newRequestSettler(cfg.Repo, log),
	} {
		if err := s.registry.Register(settler); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// CreateInput carries a caller's money-movement intent.
type CreateInput struct {
	UserID         uuid.UUID
	Type           ledger.Type
	Method         ledger.Method
	Amount         decimal.Decimal
	Currency       string
	ToCurrency     string     // exchange only
	CounterpartyID *uuid.UUID // send and request
	Detail         ledger.Detail
}

// Create validates the intent, computes the fee, and records a pending
// transaction. Exchanges self-settle synchronously inside the creation
// unit instead of waiting for approval. Validation failures are returned
// before any mutation.
func (s *Service) Create(ctx context.Context, in CreateInput) (*ledger.Transaction, error) {
	if !in.Type.IsValid() {
		return nil, ledger.ErrInvalidType
	}

	if in.Type == ledger.TypeExchange {
		return s.createExchange(ctx, in)
	}

	if err := s.validateIntent(in); err != nil {
		return nil, err
	}

	// Fee first: the amount reserved against a balance is amount+fee,
	// never the bare amount.
	breakdown := s.fees.Calculate(in.Amount, string(in.Method))

	now := time.Now().UTC()
	tx := &ledger.Transaction{
		ID:             uuid.New(),
		Reference:      ledger.NewReference(),
		UserID:         in.UserID,
		Type:           in.Type,
		Method:         in.Method,
		Status:         ledger.StatusPending,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Fee:            breakdown,
		CounterpartyID: in.CounterpartyID,
		Detail:         s.buildDetail(in, breakdown),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if err := tx.Detail.Validate(); err != nil {
		return nil, err
	}

	settler, err := s.registry.Get(tx.Type)
	if err != nil {
		return nil, err
	}

	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, s.persistenceFailure(ctx, "begin creation unit", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.repo.RollbackTx(txCtx)
		}
	}()

	w, err := s.repo.GetOrCreateWallet(txCtx, tx.UserID, tx.Currency)
	if err != nil {
		return nil, s.persistenceFailure(ctx, "get or create wallet", err)
	}
	tx.WalletID = w.ID

	// Informational only: funds are checked authoritatively at approval.
	if s.reservesOnApproval(tx.Type) && !w.CanCover(tx.Reserved()) {
		s.logger.WithContext(ctx).Warn("insufficient funds at creation",
			"stage", "creation",
			"reference", tx.Reference,
			"requested", tx.Reserved().String(),
			"balance", w.Balance.String(),
		)
	}

	if reserver, ok := settler.(Reserver); ok {
		if err := reserver.Reserve(txCtx, tx); err != nil {
			if errors.Is(err, wallet.ErrInsufficientFunds) {
				return nil, err
			}
			return nil, s.persistenceFailure(ctx, "reserve", err)
		}
	}

	if err := s.createWithReferenceRetry(txCtx, tx); err != nil {
		return nil, err
	}

	if err := s.repo.CommitTx(txCtx); err != nil {
		return nil, s.persistenceFailure(ctx, "commit creation unit", err)
	}
	committed = true

	s.notifier.Notify(ctx, notify.EventTransactionCreated, eventPayload(tx))
	return tx, nil
}

// Approve settles a pending transaction: inside one atomic unit the
// transaction row is locked, balances are re-read and mutated, and the
// status flips to completed. On insufficient funds the unit aborts and
// the transaction remains pending for the approver to retry or reject.
func (s *Service) Approve(ctx context.Context, txID, approverID uuid.UUID) (*ledger.Transaction, error) {
	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, s.persistenceFailure(ctx, "begin approval unit", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.repo.RollbackTx(txCtx)
		}
	}()

	tx, err := s.repo.GetTransactionForUpdate(txCtx, txID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return nil, err
		}
		return nil, s.persistenceFailure(ctx, "lock transaction", err)
	}

	if tx.Status != ledger.StatusPending {
		return nil, ledger.ErrInvalidStateTransition
	}

	settler, err := s.registry.Get(tx.Type)
	if err != nil {
		return nil, err
	}

	if err := settler.Settle(txCtx, tx); err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, s.persistenceFailure(ctx, "settle", err)
	}

	if err := tx.MarkCompleted(&approverID, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := s.repo.SaveTransactionStatus(txCtx, tx); err != nil {
		return nil, s.persistenceFailure(ctx, "save status", err)
	}

	if err := s.repo.CommitTx(txCtx); err != nil {
		return nil, s.persistenceFailure(ctx, "commit approval unit", err)
	}
	committed = true

	s.notifier.Notify(ctx, notify.EventTransactionCompleted, eventPayload(tx))
	return tx, nil
}

// Reject declines a pending transaction, refunding any creation-time
// reservation and recording the reason.
func (s *Service) Reject(ctx context.Context, txID, approverID uuid.UUID, reason string) (*ledger.Transaction, error) {
	return s.decline(ctx, txID, reason, func(tx *ledger.Transaction, now time.Time) error {
		return tx.MarkRejected(approverID, reason, now)
	}, notify.EventTransactionRejected)
}

// Cancel is the self-service variant of Reject: pending only, owner only,
// no approver stamped.
func (s *Service) Cancel(ctx context.Context, txID, ownerID uuid.UUID) (*ledger.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != ownerID {
		return nil, ErrNotOwner
	}

	return s.decline(ctx, txID, "cancelled by user", func(tx *ledger.Transaction, now time.Time) error {
		return tx.MarkCancelled("cancelled by user", now)
	}, notify.EventTransactionCancelled)
}

// decline factors the shared reject/cancel path: lock, verify pending,
// compensate any reservation, flip the status.
func (s *Service) decline(
	ctx context.Context,
	txID uuid.UUID,
	reason string,
	mark func(*ledger.Transaction, time.Time) error,
	event notify.Event,
) (*ledger.Transaction, error) {
	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, s.persistenceFailure(ctx, "begin decline unit", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.repo.RollbackTx(txCtx)
		}
	}()

	tx, err := s.repo.GetTransactionForUpdate(txCtx, txID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return nil, err
		}
		return nil, s.persistenceFailure(ctx, "lock transaction", err)
	}

	if tx.Status != ledger.StatusPending {
		return nil, ledger.ErrInvalidStateTransition
	}

	if settler, err := s.registry.Get(tx.Type); err == nil {
		if reserver, ok := settler.(Reserver); ok {
			if err := reserver.Compensate(txCtx, tx); err != nil {
				return nil, s.persistenceFailure(ctx, "compensate reservation", err)
			}
		}
	}

	if err := mark(tx, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := s.repo.SaveTransactionStatus(txCtx, tx); err != nil {
		return nil, s.persistenceFailure(ctx, "save status", err)
	}

	if err := s.repo.CommitTx(txCtx); err != nil {
		return nil, s.persistenceFailure(ctx, "commit decline unit", err)
	}
	committed = true

	s.logger.WithContext(ctx).Info("transaction declined",
		"reference", tx.Reference, "status", string(tx.Status), "reason", reason)
	s.notifier.Notify(ctx, event, eventPayload(tx))
	return tx, nil
}

// createExchange settles a currency exchange synchronously: no approval
// gate, completed within the creation unit.
func (s *Service) createExchange(ctx context.Context, in CreateInput) (*ledger.Transaction, error) {
	if in.Method == "" {
		in.Method = ledger.MethodSystem
	}
	if !in.Type.AllowsMethod(in.Method) {
		return nil, ledger.ErrInvalidMethod
	}
	if !in.Amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	if !s.catalog.Supported(in.Currency) {
		return nil, fmt.Errorf("%w: %s", wallet.ErrUnsupportedCurrency, in.Currency)
	}
	if !s.catalog.Supported(in.ToCurrency) {
		return nil, fmt.Errorf("%w: %s", wallet.ErrUnsupportedCurrency, in.ToCurrency)
	}
	if in.Currency == in.ToCurrency {
		return nil, ErrSameCurrency
	}
	if s.rates == nil {
		return nil, rate.ErrRateUnavailable
	}

	// Rate lookup is side-effect free and stays outside the unit.
	r, err := s.rates.Rate(ctx, in.Currency, in.ToCurrency)
	if err != nil {
		return nil, err
	}

	exchanged := in.Amount.Mul(r)
	feeAmount := exchanged.Mul(s.exchangeFeeRate)
	net := exchanged.Sub(feeAmount)

	now := time.Now().UTC()
	tx := &ledger.Transaction{
		ID:        uuid.New(),
		Reference: ledger.NewReference(),
		UserID:    in.UserID,
		Type:      ledger.TypeExchange,
		Method:    in.Method,
		Status:    ledger.StatusCompleted,
		Amount:    in.Amount,
		Currency:  in.Currency,
		Fee:       fee.Breakdown{Percent: feeAmount, Fixed: decimal.Zero, Total: feeAmount},
		Detail: ledger.Detail{
			Kind: ledger.DetailKindExchange,
			Exchange: &ledger.ExchangeDetail{
				FromCurrency: in.Currency,
				ToCurrency:   in.ToCurrency,
				Rate:         r,
				Exchanged:    exchanged,
				Fee:          feeAmount,
				Net:          net,
			},
		},
		ApprovedAt: &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, s.persistenceFailure(ctx, "begin exchange unit", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.repo.RollbackTx(txCtx)
		}
	}()

	if _, err := s.repo.GetOrCreateWallet(txCtx, tx.UserID, in.Currency); err != nil {
		return nil, s.persistenceFailure(ctx, "get or create source wallet", err)
	}

	src, err := s.repo.GetWalletForUpdate(txCtx, tx.UserID, in.Currency)
	if err != nil {
		return nil, s.persistenceFailure(ctx, "lock source wallet", err)
	}
	tx.WalletID = src.ID

	if err := src.Debit(in.Amount); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWalletBalance(txCtx, src); err != nil {
		return nil, s.persistenceFailure(ctx, "save source balance", err)
	}

	if _, err := s.repo.GetOrCreateWallet(txCtx, tx.UserID, in.ToCurrency); err != nil {
		return nil, s.persistenceFailure(ctx, "get or create target wallet", err)
	}
	dst, err := s.repo.GetWalletForUpdate(txCtx, tx.UserID, in.ToCurrency)
	if err != nil {
		return nil, s.persistenceFailure(ctx, "lock target wallet", err)
	}
	if err := dst.Credit(net); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWalletBalance(txCtx, dst); err != nil {
		return nil, s.persistenceFailure(ctx, "save target balance", err)
	}

	if err := s.createWithReferenceRetry(txCtx, tx); err != nil {
		return nil, err
	}

	if err := s.repo.CommitTx(txCtx); err != nil {
		return nil, s.persistenceFailure(ctx, "commit exchange unit", err)
	}
	committed = true

	s.notifier.Notify(ctx, notify.EventTransactionCompleted, eventPayload(tx))
	return tx, nil
}

// Get retrieves a transaction by id.
func (s *Service) Get(ctx context.Context, txID uuid.UUID) (*ledger.Transaction, error) {
	return s.repo.GetTransaction(ctx, txID)
}

// GetForUser retrieves a transaction, enforcing ownership.
func (s *Service) GetForUser(ctx context.Context, txID, userID uuid.UUID) (*ledger.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, ErrNotOwner
	}
	return tx, nil
}

// List returns one page of transactions matching the filter.
func (s *Service) List(ctx context.Context, filter ledger.Filter, page ledger.Pagination) (*ledger.Page, error) {
	return s.repo.ListTransactions(ctx, filter, page.Normalize())
}

// validateIntent rejects structurally invalid intents before any mutation.
func (s *Service) validateIntent(in CreateInput) error {
	if !in.Method.IsValid() || !in.Type.AllowsMethod(in.Method) {
		return ledger.ErrInvalidMethod
	}
	if !in.Amount.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	if !s.catalog.Supported(in.Currency) {
		return fmt.Errorf("%w: %s", wallet.ErrUnsupportedCurrency, in.Currency)
	}
	if in.Type.NeedsCounterparty() {
		if in.CounterpartyID == nil {
			return ledger.ErrMissingCounterparty
		}
		if *in.CounterpartyID == in.UserID {
			return ErrSelfCounterparty
		}
	}
	return nil
}

// buildDetail normalizes the caller's detail payload: the approval flag
// always reflects the type, and requests record their prepaid fee.
func (s *Service) buildDetail(in CreateInput, breakdown fee.Breakdown) ledger.Detail {
	d := in.Detail
	if d.Kind == "" {
		d = ledger.NoDetail(in.Type.RequiresApproval())
	}
	d.RequiresApproval = in.Type.RequiresApproval()

	if in.Type == ledger.TypeRequest {
		if d.Request == nil {
			d.Kind = ledger.DetailKindRequest
			d.Request = &ledger.RequestDetail{}
		}
		d.Request.PrepaidFee = breakdown.Total
	}

	return d
}

// reservesOnApproval reports whether approval of this type debits the
// owner's wallet, which is what the informational creation check covers.
func (s *Service) reservesOnApproval(typ ledger.Type) bool {
	return typ == ledger.TypeWithdrawal || typ == ledger.TypeSend
}

// createWithReferenceRetry persists the transaction, regenerating the
// reference on a collision. Collisions never surface to callers.
func (s *Service) createWithReferenceRetry(ctx context.Context, tx *ledger.Transaction) error {
	var err error
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		err = s.repo.CreateTransaction(ctx, tx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ledger.ErrDuplicateReference) {
			return s.persistenceFailure(ctx, "create transaction", err)
		}
		s.logger.WithContext(ctx).Warn("reference collision, regenerating",
			"reference", tx.Reference, "attempt", attempt+1)
		tx.Reference = ledger.NewReference()
	}
	return s.persistenceFailure(ctx, "create transaction after retries", err)
}

// persistenceFailure logs full detail internally and returns the opaque
// error callers see.
func (s *Service) persistenceFailure(ctx context.Context, op string, err error) error {
	s.logger.WithContext(ctx).Error("persistence failure", "op", op, "error", err)
	return fmt.Errorf("%w: %s", ErrPersistence, op)
}

// isDomainError reports whether a settle failure is a domain outcome that
// should surface as-is rather than an opaque persistence failure.
func isDomainError(err error) bool {
	return errors.Is(err, wallet.ErrInsufficientFunds) ||
		errors.Is(err, wallet.ErrNonPositiveAmount) ||
		errors.Is(err, wallet.ErrWalletNotFound) ||
		errors.Is(err, ledger.ErrMissingCounterparty) ||
		errors.Is(err, ledger.ErrInvalidStateTransition)
}

// eventPayload is the notifier payload for a transaction event.
func eventPayload(tx *ledger.Transaction) map[string]any {
	return map[string]any{
		"reference": tx.Reference,
		"type":      string(tx.Type),
		"status":    string(tx.Status),
		"amount":    tx.Amount.String(),
		"currency":  tx.Currency,
		"user_id":   tx.UserID.String(),
	}
}
