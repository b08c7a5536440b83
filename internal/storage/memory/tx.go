package memory

import (
	"context"
	"time"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// ledgerTx operates directly on the store state. The store's write lock is
// held for the whole unit of work, so no additional locking happens here.
type ledgerTx struct {
	st *state
}

var _ storage.LedgerTx = (*ledgerTx)(nil)

func (t *ledgerTx) AccountForUpdate(_ context.Context, id string) (*domain.Account, error) {
	a, exists := t.st.accounts[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (t *ledgerTx) SetLiquidBalance(_ context.Context, id string, balance int64, at time.Time) error {
	a, exists := t.st.accounts[id]
	if !exists {
		return storage.ErrNotFound
	}
	if balance < 0 {
		return storage.ErrInvalidInput
	}
	a.LiquidBalance = balance
	a.LastActivityAt = at
	return nil
}

func (t *ledgerTx) SetAccountStatus(_ context.Context, id string, status domain.AccountStatus) error {
	a, exists := t.st.accounts[id]
	if !exists {
		return storage.ErrNotFound
	}
	a.Status = status
	return nil
}

func (t *ledgerTx) OpenPositionsForUpdate(_ context.Context, accountID string) ([]*domain.StakePosition, error) {
	var result []*domain.StakePosition
	for _, p := range t.st.positions {
		if p.AccountID == accountID && p.Status == domain.StakeStatusStaked && p.Remaining > 0 {
			cp := *p
			result = append(result, &cp)
		}
	}
	sortPositions(result)
	return result, nil
}

func (t *ledgerTx) MaturedPositionsForUpdate(_ context.Context, now time.Time, limit int) ([]*domain.StakePosition, error) {
	var result []*domain.StakePosition
	for _, p := range t.st.positions {
		if p.Status == domain.StakeStatusUnstaking && p.UnlockAt != nil && !p.UnlockAt.After(now) {
			cp := *p
			result = append(result, &cp)
		}
	}
	sortPositions(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (t *ledgerTx) InsertStakePosition(_ context.Context, p *domain.StakePosition) error {
	if p == nil || p.ID == "" || p.Amount <= 0 {
		return storage.ErrInvalidInput
	}
	if _, exists := t.st.positions[p.ID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *p
	t.st.positions[p.ID] = &cp
	return nil
}

func (t *ledgerTx) UpdateStakePosition(_ context.Context, p *domain.StakePosition) error {
	existing, exists := t.st.positions[p.ID]
	if !exists {
		return storage.ErrNotFound
	}
	existing.Remaining = p.Remaining
	existing.Status = p.Status
	existing.UnlockAt = copyTime(p.UnlockAt)
	existing.ClosedAt = copyTime(p.ClosedAt)
	if p.UnstakeTxID != nil {
		id := *p.UnstakeTxID
		existing.UnstakeTxID = &id
	} else {
		existing.UnstakeTxID = nil
	}
	return nil
}

func (t *ledgerTx) InsertGrant(_ context.Context, g *domain.RewardGrant) error {
	if g == nil || g.ID == "" || g.Amount <= 0 {
		return storage.ErrInvalidInput
	}
	if _, exists := t.st.grants[g.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if g.ReferenceHash != nil {
		if _, exists := t.st.grantByRef[*g.ReferenceHash]; exists {
			return storage.ErrDuplicateKey
		}
	}
	cp := *g
	t.st.grants[g.ID] = &cp
	if g.ReferenceHash != nil {
		t.st.grantByRef[*g.ReferenceHash] = g.ID
	}
	return nil
}

func (t *ledgerTx) UnclaimedGrantsForUpdate(_ context.Context, accountID string) ([]*domain.RewardGrant, error) {
	var result []*domain.RewardGrant
	for _, g := range t.st.grants {
		if g.AccountID == accountID && !g.Claimed {
			cp := *g
			result = append(result, &cp)
		}
	}
	sortGrants(result)
	return result, nil
}

func (t *ledgerTx) MarkGrantsClaimed(_ context.Context, ids []string, at time.Time) error {
	for _, id := range ids {
		g, exists := t.st.grants[id]
		if !exists {
			return storage.ErrNotFound
		}
		if g.Claimed {
			continue
		}
		claimedAt := at
		g.Claimed = true
		g.ClaimedAt = &claimedAt
	}
	return nil
}

func (t *ledgerTx) AppendTransaction(_ context.Context, tr *domain.Transaction) error {
	if tr == nil || tr.ID == "" || tr.Amount <= 0 {
		return storage.ErrInvalidInput
	}
	if _, exists := t.st.txs[tr.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if tr.ReferenceHash != nil {
		if _, exists := t.st.txByRef[*tr.ReferenceHash]; exists {
			return storage.ErrDuplicateKey
		}
	}

	t.st.txSeq++
	tr.Seq = t.st.txSeq

	cp := *tr
	t.st.txs[tr.ID] = &cp
	if tr.ReferenceHash != nil {
		t.st.txByRef[*tr.ReferenceHash] = tr.ID
	}
	return nil
}

func (t *ledgerTx) TransactionForUpdate(_ context.Context, id string) (*domain.Transaction, error) {
	tr, exists := t.st.txs[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *tr
	return &cp, nil
}

func (t *ledgerTx) PositionsByUnstakeTxForUpdate(_ context.Context, txID string) ([]*domain.StakePosition, error) {
	var result []*domain.StakePosition
	for _, p := range t.st.positions {
		if p.Status == domain.StakeStatusUnstaking && p.UnstakeTxID != nil && *p.UnstakeTxID == txID {
			cp := *p
			result = append(result, &cp)
		}
	}
	sortPositions(result)
	return result, nil
}

func (t *ledgerTx) SetTransactionStatus(_ context.Context, id string, status domain.TransactionStatus) error {
	tr, exists := t.st.txs[id]
	if !exists {
		return storage.ErrNotFound
	}
	if tr.Status != domain.TxStatusPending {
		return storage.ErrNotFound
	}
	tr.Status = status
	return nil
}

func (t *ledgerTx) TransactionByReference(_ context.Context, referenceHash string) (*domain.Transaction, error) {
	id, exists := t.st.txByRef[referenceHash]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *t.st.txs[id]
	return &cp, nil
}
