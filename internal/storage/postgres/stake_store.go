package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// StakeStore implements storage.StakeStore using PostgreSQL.
type StakeStore struct {
	pool *Pool
}

// NewStakeStore creates a new StakeStore.
func NewStakeStore(pool *Pool) *StakeStore {
	return &StakeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StakeStore = (*StakeStore)(nil)

const stakeColumns = `id, account_id, amount, remaining, status, opened_at, unlock_at, closed_at, unstake_tx_id`

// PositionsByAccount retrieves all positions for an account, oldest first.
func (s *StakeStore) PositionsByAccount(ctx context.Context, accountID string) ([]*domain.StakePosition, error) {
	query := `
		SELECT ` + stakeColumns + `
		FROM stake_positions
		WHERE account_id = $1
		ORDER BY opened_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("get positions by account: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// StakedTotal returns the sum of Remaining over open positions.
func (s *StakeStore) StakedTotal(ctx context.Context, accountID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(remaining), 0)
		FROM stake_positions
		WHERE account_id = $1 AND status != $2
	`

	var total int64
	err := s.pool.QueryRow(ctx, query, accountID, domain.StakeStatusUnstaked).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum staked total: %w", err)
	}
	return total, nil
}

// scanPositions scans multiple rows into a slice of StakePosition.
func scanPositions(rows pgx.Rows) ([]*domain.StakePosition, error) {
	var positions []*domain.StakePosition

	for rows.Next() {
		var p domain.StakePosition
		err := rows.Scan(
			&p.ID,
			&p.AccountID,
			&p.Amount,
			&p.Remaining,
			&p.Status,
			&p.OpenedAt,
			&p.UnlockAt,
			&p.ClosedAt,
			&p.UnstakeTxID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stake position row: %w", err)
		}
		positions = append(positions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stake position rows: %w", err)
	}

	return positions, nil
}
