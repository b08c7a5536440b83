package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// RewardStore implements storage.RewardStore using PostgreSQL.
type RewardStore struct {
	pool *Pool
}

// NewRewardStore creates a new RewardStore.
func NewRewardStore(pool *Pool) *RewardStore {
	return &RewardStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RewardStore = (*RewardStore)(nil)

const grantColumns = `id, account_id, category, amount, claimed, claimed_at, reference_hash, created_at`

// GrantsByAccount retrieves all grants for an account, oldest first.
func (s *RewardStore) GrantsByAccount(ctx context.Context, accountID string) ([]*domain.RewardGrant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM reward_grants
		WHERE account_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("get grants by account: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

// UnclaimedTotal returns the sum of unclaimed grant amounts for an account.
func (s *RewardStore) UnclaimedTotal(ctx context.Context, accountID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM reward_grants
		WHERE account_id = $1 AND NOT claimed
	`

	var total int64
	err := s.pool.QueryRow(ctx, query, accountID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum unclaimed grants: %w", err)
	}
	return total, nil
}

// scanGrants scans multiple rows into a slice of RewardGrant.
func scanGrants(rows pgx.Rows) ([]*domain.RewardGrant, error) {
	var grants []*domain.RewardGrant

	for rows.Next() {
		var g domain.RewardGrant
		err := rows.Scan(
			&g.ID,
			&g.AccountID,
			&g.Category,
			&g.Amount,
			&g.Claimed,
			&g.ClaimedAt,
			&g.ReferenceHash,
			&g.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reward grant row: %w", err)
		}
		grants = append(grants, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reward grant rows: %w", err)
	}

	return grants, nil
}
