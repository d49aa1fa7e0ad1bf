//go:build integration

package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhmetov/payvault/internal/wallet"
)

func TestWalletRepository_SetDefault(t *testing.T) {
	_, ctx := setupTest(t)
	repo := NewWalletRepository(testDB.Pool)
	userID := createTestUser(t, ctx)

	usd, err := repo.GetOrCreate(ctx, userID, "USD")
	require.NoError(t, err)
	eur, err := repo.GetOrCreate(ctx, userID, "EUR")
	require.NoError(t, err)

	require.NoError(t, repo.SetDefault(ctx, userID, usd.ID))
	require.NoError(t, repo.SetDefault(ctx, userID, eur.ID))

	wallets, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, wallets, 2)

	defaults := 0
	for _, w := range wallets {
		if w.IsDefault {
			defaults++
			assert.Equal(t, eur.ID, w.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestWalletRepository_SetDefault_UnknownWalletKeepsCurrentDefault(t *testing.T) {
	_, ctx := setupTest(t)
	repo := NewWalletRepository(testDB.Pool)
	userID := createTestUser(t, ctx)

	usd, err := repo.GetOrCreate(ctx, userID, "USD")
	require.NoError(t, err)
	require.NoError(t, repo.SetDefault(ctx, userID, usd.ID))

	// The clear and the set commit together: a failed set must not leave
	// the user with no default wallet.
	err = repo.SetDefault(ctx, userID, uuid.New())
	require.ErrorIs(t, err, wallet.ErrWalletNotFound)

	got, err := repo.GetByUserAndCurrency(ctx, userID, "USD")
	require.NoError(t, err)
	assert.True(t, got.IsDefault)
}
