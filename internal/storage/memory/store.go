// Package memory provides an in-memory ledger store, used by tests and the
// --use-memory server mode. A single RWMutex serializes units of work, which
// trivially satisfies the per-account serialization contract.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// state holds all ledger tables. Cloned before each unit of work so a failed
// unit can be rolled back wholesale.
type state struct {
	accounts   map[string]*domain.Account // keyed by account id
	byExternal map[string]string          // external id -> account id
	byAddress  map[string]string          // chain address -> account id

	positions map[string]*domain.StakePosition // keyed by position id
	grants    map[string]*domain.RewardGrant   // keyed by grant id
	txs       map[string]*domain.Transaction   // keyed by transaction id

	txByRef    map[string]string // reference hash -> transaction id
	grantByRef map[string]string // reference hash -> grant id

	txSeq int64
}

func newState() *state {
	return &state{
		accounts:   make(map[string]*domain.Account),
		byExternal: make(map[string]string),
		byAddress:  make(map[string]string),
		positions:  make(map[string]*domain.StakePosition),
		grants:     make(map[string]*domain.RewardGrant),
		txs:        make(map[string]*domain.Transaction),
		txByRef:    make(map[string]string),
		grantByRef: make(map[string]string),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.accounts {
		cp := *v
		c.accounts[k] = &cp
	}
	for k, v := range st.byExternal {
		c.byExternal[k] = v
	}
	for k, v := range st.byAddress {
		c.byAddress[k] = v
	}
	for k, v := range st.positions {
		cp := *v
		c.positions[k] = &cp
	}
	for k, v := range st.grants {
		cp := *v
		c.grants[k] = &cp
	}
	for k, v := range st.txs {
		cp := *v
		c.txs[k] = &cp
	}
	for k, v := range st.txByRef {
		c.txByRef[k] = v
	}
	for k, v := range st.grantByRef {
		c.grantByRef[k] = v
	}
	c.txSeq = st.txSeq
	return c
}

// Store is the in-memory implementation of every ledger storage interface.
type Store struct {
	mu sync.RWMutex
	st *state
}

// NewStore creates an empty in-memory ledger store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Compile-time interface checks.
var (
	_ storage.AccountStore     = (*Store)(nil)
	_ storage.StakeStore       = (*Store)(nil)
	_ storage.RewardStore      = (*Store)(nil)
	_ storage.TransactionStore = (*Store)(nil)
	_ storage.StatsStore       = (*Store)(nil)
	_ storage.UnitOfWork       = (*Store)(nil)
)

// Execute runs fn as one atomic unit. On error every change made through the
// LedgerTx is discarded.
func (s *Store) Execute(ctx context.Context, fn func(tx storage.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&ledgerTx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// sortPositions orders positions oldest first for FIFO selection.
func sortPositions(positions []*domain.StakePosition) {
	sort.Slice(positions, func(i, j int) bool {
		if !positions[i].OpenedAt.Equal(positions[j].OpenedAt) {
			return positions[i].OpenedAt.Before(positions[j].OpenedAt)
		}
		return positions[i].ID < positions[j].ID
	})
}

// sortGrants orders grants oldest first.
func sortGrants(grants []*domain.RewardGrant) {
	sort.Slice(grants, func(i, j int) bool {
		if !grants[i].CreatedAt.Equal(grants[j].CreatedAt) {
			return grants[i].CreatedAt.Before(grants[j].CreatedAt)
		}
		return grants[i].ID < grants[j].ID
	})
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
