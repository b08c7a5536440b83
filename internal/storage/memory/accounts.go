package memory

import (
	"context"
	"sort"
	"time"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// GetByID retrieves an account by its ID. Returns ErrNotFound if not exists.
func (s *Store) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.st.accounts[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// GetByExternalID retrieves an account by platform user id.
func (s *Store) GetByExternalID(_ context.Context, externalID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.st.byExternal[externalID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *s.st.accounts[id]
	return &cp, nil
}

// GetByAddress retrieves an account by its linked chain address.
func (s *Store) GetByAddress(_ context.Context, address string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.st.byAddress[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *s.st.accounts[id]
	return &cp, nil
}

// Create inserts a new account with zero balance.
func (s *Store) Create(_ context.Context, a *domain.Account) error {
	if a == nil || a.ID == "" || a.ExternalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.accounts[a.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.st.byExternal[a.ExternalID]; exists {
		return storage.ErrDuplicateKey
	}
	if a.Address != nil {
		if _, exists := s.st.byAddress[*a.Address]; exists {
			return storage.ErrDuplicateKey
		}
	}

	cp := *a
	s.st.accounts[a.ID] = &cp
	s.st.byExternal[a.ExternalID] = a.ID
	if a.Address != nil {
		s.st.byAddress[*a.Address] = a.ID
	}
	return nil
}

// LinkAddress sets the chain address on an existing account.
func (s *Store) LinkAddress(_ context.Context, id, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.st.accounts[id]
	if !exists {
		return storage.ErrNotFound
	}
	if owner, taken := s.st.byAddress[address]; taken && owner != id {
		return storage.ErrDuplicateKey
	}
	if a.Address != nil {
		delete(s.st.byAddress, *a.Address)
	}
	addr := address
	a.Address = &addr
	s.st.byAddress[address] = id
	return nil
}

// ListInactiveSince returns active accounts whose last activity is before
// cutoff, oldest first, at most limit rows.
func (s *Store) ListInactiveSince(_ context.Context, cutoff time.Time, limit int) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Account
	for _, a := range s.st.accounts {
		if a.Status == domain.AccountStatusActive && a.LastActivityAt.Before(cutoff) {
			cp := *a
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivityAt.Before(result[j].LastActivityAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListAll returns every account, ordered by id.
func (s *Store) ListAll(_ context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Account, 0, len(s.st.accounts))
	for _, a := range s.st.accounts {
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// SetStatus archives or revives an account.
func (s *Store) SetStatus(_ context.Context, id string, status domain.AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.st.accounts[id]
	if !exists {
		return storage.ErrNotFound
	}
	a.Status = status
	return nil
}
