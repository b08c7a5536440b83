package memory

import (
	"context"
	"sort"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// PositionsByAccount retrieves all positions for an account, oldest first.
func (s *Store) PositionsByAccount(_ context.Context, accountID string) ([]*domain.StakePosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StakePosition
	for _, p := range s.st.positions {
		if p.AccountID == accountID {
			cp := *p
			result = append(result, &cp)
		}
	}
	sortPositions(result)
	return result, nil
}

// StakedTotal returns the sum of Remaining over open positions.
func (s *Store) StakedTotal(_ context.Context, accountID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, p := range s.st.positions {
		if p.AccountID == accountID && p.Status != domain.StakeStatusUnstaked {
			total += p.Remaining
		}
	}
	return total, nil
}

// GrantsByAccount retrieves all grants for an account, oldest first.
func (s *Store) GrantsByAccount(_ context.Context, accountID string) ([]*domain.RewardGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RewardGrant
	for _, g := range s.st.grants {
		if g.AccountID == accountID {
			cp := *g
			result = append(result, &cp)
		}
	}
	sortGrants(result)
	return result, nil
}

// UnclaimedTotal returns the sum of unclaimed grant amounts for an account.
func (s *Store) UnclaimedTotal(_ context.Context, accountID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, g := range s.st.grants {
		if g.AccountID == accountID && !g.Claimed {
			total += g.Amount
		}
	}
	return total, nil
}

// GetTransaction retrieves a transaction by its ID.
func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.st.txs[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// GetByReference retrieves a transaction by reference hash.
func (s *Store) GetByReference(_ context.Context, referenceHash string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.st.txByRef[referenceHash]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *s.st.txs[id]
	return &cp, nil
}

// ListByAccount retrieves transactions touching an account, newest first.
func (s *Store) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, t := range s.st.txs {
		if (t.FromAccountID != nil && *t.FromAccountID == accountID) ||
			(t.ToAccountID != nil && *t.ToAccountID == accountID) {
			cp := *t
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq > result[j].Seq
	})

	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListLog retrieves the full log in sequence order.
func (s *Store) ListLog(_ context.Context) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Transaction, 0, len(s.st.txs))
	for _, t := range s.st.txs {
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

// TopHolders returns the n largest accounts by liquid + staked balance.
func (s *Store) TopHolders(_ context.Context, n int) ([]*domain.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	staked := s.stakedByAccountLocked()

	var holders []*domain.Holder
	for _, a := range s.st.accounts {
		h := &domain.Holder{
			AccountID:     a.ID,
			ExternalID:    a.ExternalID,
			Address:       a.Address,
			LiquidBalance: a.LiquidBalance,
			StakedBalance: staked[a.ID],
		}
		if h.Total() > 0 {
			holders = append(holders, h)
		}
	}

	sort.Slice(holders, func(i, j int) bool {
		if holders[i].Total() != holders[j].Total() {
			return holders[i].Total() > holders[j].Total()
		}
		return holders[i].AccountID < holders[j].AccountID
	})
	if n > 0 && len(holders) > n {
		holders = holders[:n]
	}
	return holders, nil
}

// Statistics returns ledger-wide totals.
func (s *Store) Statistics(_ context.Context) (*domain.LedgerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.LedgerStats{Accounts: int64(len(s.st.accounts))}

	staked := s.stakedByAccountLocked()
	for _, a := range s.st.accounts {
		stats.TotalLiquid += a.LiquidBalance
		if a.LiquidBalance+staked[a.ID] > 0 {
			stats.Holders++
		}
	}
	for _, total := range staked {
		stats.TotalStaked += total
	}
	for _, g := range s.st.grants {
		if g.Claimed {
			stats.RewardsDistributed += g.Amount
		}
	}
	stats.CirculatingSupply = stats.TotalLiquid + stats.TotalStaked
	return stats, nil
}

// stakedByAccountLocked sums open position remainders per account.
// Callers must hold at least a read lock.
func (s *Store) stakedByAccountLocked() map[string]int64 {
	staked := make(map[string]int64)
	for _, p := range s.st.positions {
		if p.Status != domain.StakeStatusUnstaked {
			staked[p.AccountID] += p.Remaining
		}
	}
	return staked
}
