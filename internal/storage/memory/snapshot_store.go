package memory

import (
	"context"
	"sort"
	"sync"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// SupplySnapshotStore is an in-memory implementation of storage.SupplySnapshotStore.
type SupplySnapshotStore struct {
	mu   sync.RWMutex
	data []*domain.SupplySnapshot
}

// NewSupplySnapshotStore creates a new in-memory snapshot store.
func NewSupplySnapshotStore() *SupplySnapshotStore {
	return &SupplySnapshotStore{}
}

var _ storage.SupplySnapshotStore = (*SupplySnapshotStore)(nil)

// Insert appends one snapshot.
func (s *SupplySnapshotStore) Insert(_ context.Context, snap *domain.SupplySnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *snap
	s.data = append(s.data, &cp)
	return nil
}

// GetByTimeRange retrieves snapshots within [start, end] ms (inclusive).
func (s *SupplySnapshotStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.SupplySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SupplySnapshot
	for _, snap := range s.data {
		if snap.TakenAt >= start && snap.TakenAt <= end {
			cp := *snap
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TakenAt < result[j].TakenAt
	})
	return result, nil
}
