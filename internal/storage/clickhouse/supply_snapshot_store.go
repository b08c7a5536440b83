package clickhouse

import (
	"context"
	"fmt"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// SupplySnapshotStore implements storage.SupplySnapshotStore using ClickHouse.
// Snapshots are analytics data for the presentation layer's charts; the
// Postgres ledger stays the source of truth.
type SupplySnapshotStore struct {
	conn *Conn
}

// NewSupplySnapshotStore creates a new SupplySnapshotStore.
func NewSupplySnapshotStore(conn *Conn) *SupplySnapshotStore {
	return &SupplySnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SupplySnapshotStore = (*SupplySnapshotStore)(nil)

// Insert appends one snapshot.
func (s *SupplySnapshotStore) Insert(ctx context.Context, snap *domain.SupplySnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO supply_snapshots (
			taken_at_ms, circulating_supply, total_liquid, total_staked, rewards_distributed, accounts, holders
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	err := s.conn.Exec(ctx, query,
		uint64(snap.TakenAt),
		snap.CirculatingSupply,
		snap.TotalLiquid,
		snap.TotalStaked,
		snap.RewardsDistributed,
		uint64(snap.Accounts),
		uint64(snap.Holders),
	)
	if err != nil {
		return fmt.Errorf("insert supply snapshot: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves snapshots within [start, end] ms (inclusive),
// ordered by taken_at ASC.
func (s *SupplySnapshotStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SupplySnapshot, error) {
	query := `
		SELECT taken_at_ms, circulating_supply, total_liquid, total_staked, rewards_distributed, accounts, holders
		FROM supply_snapshots
		WHERE taken_at_ms >= $1 AND taken_at_ms <= $2
		ORDER BY taken_at_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("get supply snapshots by time range: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.SupplySnapshot
	for rows.Next() {
		var (
			snap              domain.SupplySnapshot
			takenAt           uint64
			accounts, holders uint64
		)
		err := rows.Scan(
			&takenAt,
			&snap.CirculatingSupply,
			&snap.TotalLiquid,
			&snap.TotalStaked,
			&snap.RewardsDistributed,
			&accounts,
			&holders,
		)
		if err != nil {
			return nil, fmt.Errorf("scan supply snapshot row: %w", err)
		}
		snap.TakenAt = int64(takenAt)
		snap.Accounts = int64(accounts)
		snap.Holders = int64(holders)
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supply snapshot rows: %w", err)
	}

	return snapshots, nil
}
