package wallet_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/akhmetov/payvault/internal/currency"
	"github.com/akhmetov/payvault/internal/wallet"
)

// MockRepository is a mock implementation of wallet.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, cur string) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID, cur)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockRepository) GetByUserAndCurrency(ctx context.Context, userID uuid.UUID, cur string) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID, cur)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*wallet.Wallet), args.Error(1)
}

func (m *MockRepository) SetDefault(ctx context.Context, userID, walletID uuid.UUID) error {
	args := m.Called(ctx, userID, walletID)
	return args.Error(0)
}

func (m *MockRepository) SetActive(ctx context.Context, walletID uuid.UUID, active bool) error {
	args := m.Called(ctx, walletID, active)
	return args.Error(0)
}

func TestService_GetOrCreate_UnsupportedCurrency(t *testing.T) {
	svc := wallet.NewService(new(MockRepository), currency.NewCatalog("USD", "EUR"))

	_, err := svc.GetOrCreate(context.Background(), uuid.New(), "JPY")
	assert.ErrorIs(t, err, wallet.ErrUnsupportedCurrency)
}

func TestService_List_ProvisionsFullCatalog(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	catalog := currency.NewCatalog("USD", "EUR", "BTC")

	usd := wallet.New(userID, "USD")
	repo := new(MockRepository)
	repo.On("ListByUser", ctx, userID).Return([]*wallet.Wallet{usd}, nil)
	repo.On("GetOrCreate", ctx, userID, "EUR").Return(wallet.New(userID, "EUR"), nil)
	repo.On("GetOrCreate", ctx, userID, "BTC").Return(wallet.New(userID, "BTC"), nil)

	svc := wallet.NewService(repo, catalog)
	wallets, err := svc.List(ctx, userID)
	require.NoError(t, err)

	require.Len(t, wallets, 3)
	assert.Equal(t, "USD", wallets[0].Currency)
	assert.Equal(t, "EUR", wallets[1].Currency)
	assert.Equal(t, "BTC", wallets[2].Currency)
	repo.AssertExpectations(t)
}

func TestService_List_FirstWalletBecomesDefault(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	catalog := currency.NewCatalog("USD", "EUR")

	usd := wallet.New(userID, "USD")
	eur := wallet.New(userID, "EUR")

	repo := new(MockRepository)
	repo.On("ListByUser", ctx, userID).Return([]*wallet.Wallet{}, nil)
	repo.On("GetOrCreate", ctx, userID, "USD").Return(usd, nil)
	repo.On("GetOrCreate", ctx, userID, "EUR").Return(eur, nil)
	repo.On("SetDefault", ctx, userID, usd.ID).Return(nil)

	svc := wallet.NewService(repo, catalog)
	wallets, err := svc.List(ctx, userID)
	require.NoError(t, err)

	require.Len(t, wallets, 2)
	assert.True(t, wallets[0].IsDefault)
	assert.False(t, wallets[1].IsDefault)
	repo.AssertExpectations(t)
}
