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

func TestStatsStore_StatisticsAndTopHolders(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	accounts := NewAccountStore(pool)
	stats := NewStatsStore(pool)
	uow := NewUnitOfWork(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	whale := seedAccount(t, ctx, accounts, "whale", 700)
	staker := seedAccount(t, ctx, accounts, "staker", 100)
	empty := seedAccount(t, ctx, accounts, "empty", 0)

	// 200 staked plus a closed position that must not count.
	require.NoError(t, uow.Execute(ctx, func(tx storage.LedgerTx) error {
		if err := tx.InsertStakePosition(ctx, &domain.StakePosition{
			ID:        uuid.NewString(),
			AccountID: staker.ID,
			Amount:    200,
			Remaining: 200,
			Status:    domain.StakeStatusStaked,
			OpenedAt:  now,
		}); err != nil {
			return err
		}
		if err := tx.InsertStakePosition(ctx, &domain.StakePosition{
			ID:        uuid.NewString(),
			AccountID: staker.ID,
			Amount:    50,
			Remaining: 0,
			Status:    domain.StakeStatusUnstaked,
			OpenedAt:  now.Add(-time.Hour),
			ClosedAt:  ptr(now),
		}); err != nil {
			return err
		}
		// One claimed and one unclaimed grant; only the claimed one counts
		// as distributed.
		if err := tx.InsertGrant(ctx, &domain.RewardGrant{
			ID:        uuid.NewString(),
			AccountID: staker.ID,
			Category:  domain.RewardSale,
			Amount:    30,
			Claimed:   true,
			ClaimedAt: ptr(now),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.InsertGrant(ctx, &domain.RewardGrant{
			ID:        uuid.NewString(),
			AccountID: whale.ID,
			Category:  domain.RewardEngagement,
			Amount:    5,
			CreatedAt: now,
		})
	}))

	got, err := stats.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(800), got.TotalLiquid)
	assert.Equal(t, int64(200), got.TotalStaked)
	assert.Equal(t, int64(1000), got.CirculatingSupply)
	assert.Equal(t, int64(30), got.RewardsDistributed)
	assert.Equal(t, int64(3), got.Accounts)
	assert.Equal(t, int64(2), got.Holders, "zero-balance accounts are not holders")

	holders, err := stats.TopHolders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, whale.ID, holders[0].AccountID)
	assert.Equal(t, int64(700), holders[0].Total())
	assert.Equal(t, staker.ID, holders[1].AccountID)
	assert.Equal(t, int64(300), holders[1].Total())
	_ = empty
}
