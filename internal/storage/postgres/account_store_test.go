package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

func TestAccountStore_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAccountStore(pool)
	ctx := context.Background()

	created := seedAccount(t, ctx, store, "user-1", 250)

	byID, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ExternalID, byID.ExternalID)
	assert.Equal(t, int64(250), byID.LiquidBalance)
	assert.Equal(t, domain.AccountStatusActive, byID.Status)
	assert.Nil(t, byID.Address)

	byExternal, err := store.GetByExternalID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byExternal.ID)

	_, err = store.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAccountStore_CreateDuplicateExternalID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAccountStore(pool)
	ctx := context.Background()

	seedAccount(t, ctx, store, "user-dup", 0)

	now := time.Now()
	err := store.Create(ctx, &domain.Account{
		ID:             uuid.NewString(),
		ExternalID:     "user-dup",
		Status:         domain.AccountStatusActive,
		CreatedAt:      now,
		LastActivityAt: now,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestAccountStore_LinkAddress(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAccountStore(pool)
	ctx := context.Background()

	first := seedAccount(t, ctx, store, "user-a", 0)
	second := seedAccount(t, ctx, store, "user-b", 0)

	const address = "6x5SYnLroiN7WYq8NQYU9KHcH4YjpBbwpUfVu3EB7ieH"
	require.NoError(t, store.LinkAddress(ctx, first.ID, address))

	byAddress, err := store.GetByAddress(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byAddress.ID)

	// The address is unique across accounts.
	err = store.LinkAddress(ctx, second.ID, address)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.LinkAddress(ctx, uuid.NewString(), "some-other-address")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAccountStore_ListInactiveSince(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAccountStore(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := &domain.Account{
		ID:             uuid.NewString(),
		ExternalID:     "stale",
		Status:         domain.AccountStatusActive,
		CreatedAt:      now.Add(-100 * 24 * time.Hour),
		LastActivityAt: now.Add(-100 * 24 * time.Hour),
	}
	require.NoError(t, store.Create(ctx, stale))
	fresh := seedAccount(t, ctx, store, "fresh", 10)

	inactive, err := store.ListInactiveSince(ctx, now.Add(-30*24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, stale.ID, inactive[0].ID)

	// Archived accounts drop out of the sweep.
	require.NoError(t, store.SetStatus(ctx, stale.ID, domain.AccountStatusArchived))
	inactive, err = store.ListInactiveSince(ctx, now.Add(-30*24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, inactive)

	archived, err := store.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived())
	_ = fresh
}

func TestAccountStore_ListAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAccountStore(pool)
	ctx := context.Background()

	seedAccount(t, ctx, store, "one", 1)
	seedAccount(t, ctx, store, "two", 2)
	seedAccount(t, ctx, store, "three", 3)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID, "rows must be id-ordered")
	}
}
