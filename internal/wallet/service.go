package wallet

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/akhmetov/payvault/internal/currency"
)

// Service exposes the wallet store to the rest of the application.
// Listing auto-provisions one wallet per catalog currency so users always
// see the full catalog, zero balances included.
type Service struct {
	repo    Repository
	catalog *currency.Catalog
}

// NewService creates a new wallet service
func NewService(repo Repository, catalog *currency.Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// GetOrCreate returns the wallet for (user, currency), creating it with a
// zero balance on first reference.
func (s *Service) GetOrCreate(ctx context.Context, userID uuid.UUID, cur string) (*Wallet, error) {
	if !s.catalog.Supported(cur) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, cur)
	}
	return s.repo.GetOrCreate(ctx, userID, cur)
}

// Get returns an existing wallet or ErrWalletNotFound.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, cur string) (*Wallet, error) {
	if !s.catalog.Supported(cur) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, cur)
	}
	return s.repo.GetByUserAndCurrency(ctx, userID, cur)
}

// List returns the user's wallets, provisioning any catalog currency the
// user has not touched yet. The first wallet ever provisioned becomes the
// default. Results are ordered by catalog declaration order.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Wallet, error) {
	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}

	byCurrency := make(map[string]*Wallet, len(existing))
	for _, w := range existing {
		byCurrency[w.Currency] = w
	}

	hadAny := len(existing) > 0
	for _, code := range s.catalog.Codes() {
		if _, ok := byCurrency[code]; ok {
			continue
		}
		w, err := s.repo.GetOrCreate(ctx, userID, code)
		if err != nil {
			return nil, fmt.Errorf("failed to provision %s wallet: %w", code, err)
		}
		byCurrency[code] = w
	}

	if !hadAny {
		if first, ok := byCurrency[s.catalog.Codes()[0]]; ok {
			if err := s.repo.SetDefault(ctx, userID, first.ID); err == nil {
				first.IsDefault = true
			}
		}
	}

	order := make(map[string]int, s.catalog.Len())
	for i, code := range s.catalog.Codes() {
		order[code] = i
	}

	wallets := make([]*Wallet, 0, len(byCurrency))
	for _, w := range byCurrency {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool {
		return order[wallets[i].Currency] < order[wallets[j].Currency]
	})

	return wallets, nil
}

// SetDefault marks one of the user's wallets as the default.
func (s *Service) SetDefault(ctx context.Context, userID, walletID uuid.UUID) error {
	return s.repo.SetDefault(ctx, userID, walletID)
}

// Deactivate marks a wallet inactive. Wallets are never deleted.
func (s *Service) Deactivate(ctx context.Context, walletID uuid.UUID) error {
	return s.repo.SetActive(ctx, walletID, false)
}
