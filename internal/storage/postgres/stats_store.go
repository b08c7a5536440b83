package postgres

import (
	"context"
	"fmt"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// StatsStore implements storage.StatsStore using PostgreSQL.
type StatsStore struct {
	pool *Pool
}

// NewStatsStore creates a new StatsStore.
func NewStatsStore(pool *Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StatsStore = (*StatsStore)(nil)

// TopHolders returns the n largest accounts by liquid + staked balance.
func (s *StatsStore) TopHolders(ctx context.Context, n int) ([]*domain.Holder, error) {
	query := `
		SELECT a.id, a.external_id, a.address, a.liquid_balance,
		       COALESCE(sp.staked, 0) AS staked
		FROM accounts a
		LEFT JOIN (
			SELECT account_id, SUM(remaining) AS staked
			FROM stake_positions
			WHERE status != $1
			GROUP BY account_id
		) sp ON sp.account_id = a.id
		WHERE a.liquid_balance + COALESCE(sp.staked, 0) > 0
		ORDER BY a.liquid_balance + COALESCE(sp.staked, 0) DESC, a.id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, domain.StakeStatusUnstaked, n)
	if err != nil {
		return nil, fmt.Errorf("query top holders: %w", err)
	}
	defer rows.Close()

	var holders []*domain.Holder
	for rows.Next() {
		var h domain.Holder
		if err := rows.Scan(&h.AccountID, &h.ExternalID, &h.Address, &h.LiquidBalance, &h.StakedBalance); err != nil {
			return nil, fmt.Errorf("scan holder row: %w", err)
		}
		holders = append(holders, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holder rows: %w", err)
	}

	return holders, nil
}

// Statistics returns ledger-wide totals in one consistent snapshot.
func (s *StatsStore) Statistics(ctx context.Context) (*domain.LedgerStats, error) {
	query := `
		SELECT
			(SELECT COALESCE(SUM(liquid_balance), 0) FROM accounts),
			(SELECT COALESCE(SUM(remaining), 0) FROM stake_positions WHERE status != $1),
			(SELECT COALESCE(SUM(amount), 0) FROM reward_grants WHERE claimed),
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*)
			 FROM accounts a
			 LEFT JOIN (
				SELECT account_id, SUM(remaining) AS staked
				FROM stake_positions
				WHERE status != $1
				GROUP BY account_id
			 ) sp ON sp.account_id = a.id
			 WHERE a.liquid_balance + COALESCE(sp.staked, 0) > 0)
	`

	var stats domain.LedgerStats
	err := s.pool.QueryRow(ctx, query, domain.StakeStatusUnstaked).Scan(
		&stats.TotalLiquid,
		&stats.TotalStaked,
		&stats.RewardsDistributed,
		&stats.Accounts,
		&stats.Holders,
	)
	if err != nil {
		return nil, fmt.Errorf("query statistics: %w", err)
	}

	stats.CirculatingSupply = stats.TotalLiquid + stats.TotalStaked
	return &stats, nil
}
