package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
	"tola-ledger/internal/tokenaddr"
)

// Identity is how callers refer to an account: the platform user id,
// optionally with a chain address to link.
type Identity struct {
	ExternalID string
	Address    string
}

// Resolver maps external identities to ledger accounts, creating them lazily
// on first reference. Archived accounts are revived on resolve; history and
// balances survive archival untouched.
type Resolver struct {
	accounts storage.AccountStore
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewResolver creates a Resolver over the given account store.
func NewResolver(accounts storage.AccountStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithClock overrides the resolver's clock, for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve returns the account for the given identity, creating it with a zero
// balance if it does not exist. A provided address is validated, normalized
// and linked; a conflicting address on an existing account is an error.
func (r *Resolver) Resolve(ctx context.Context, identity Identity) (*domain.Account, error) {
	if identity.ExternalID == "" {
		return nil, fmt.Errorf("%w: empty external id", ErrAccountNotFound)
	}

	address := ""
	if identity.Address != "" {
		if err := tokenaddr.Validate(identity.Address); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		normalized, err := tokenaddr.Normalize(identity.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		address = normalized
	}

	account, err := r.accounts.GetByExternalID(ctx, identity.ExternalID)
	if errors.Is(err, storage.ErrNotFound) {
		return r.create(ctx, identity.ExternalID, address)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve account %s: %w", identity.ExternalID, err)
	}

	if address != "" {
		if account.Address == nil {
			if err := r.accounts.LinkAddress(ctx, account.ID, address); err != nil {
				if errors.Is(err, storage.ErrDuplicateKey) {
					return nil, fmt.Errorf("%w: address already linked to another account", ErrInvalidAddress)
				}
				return nil, fmt.Errorf("link address: %w", err)
			}
			account.Address = &address
		} else if *account.Address != address {
			return nil, fmt.Errorf("%w: account already linked to a different address", ErrInvalidAddress)
		}
	}

	if account.Archived() {
		if err := r.revive(ctx, account); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// ResolveAddress returns the account linked to the given chain address,
// creating one if no account holds it yet. Used for transfers addressed to
// recipients that have never touched the platform.
func (r *Resolver) ResolveAddress(ctx context.Context, address string) (*domain.Account, error) {
	if err := tokenaddr.Validate(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	normalized, err := tokenaddr.Normalize(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	account, err := r.accounts.GetByAddress(ctx, normalized)
	if errors.Is(err, storage.ErrNotFound) {
		// The external id stays derived until the owner signs up and claims it.
		return r.create(ctx, "addr:"+normalized, normalized)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve address: %w", err)
	}

	if account.Archived() {
		if err := r.revive(ctx, account); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// Lookup returns the account for ref, which may be an account id, an external
// id or a linked chain address. It never creates.
func (r *Resolver) Lookup(ctx context.Context, ref string) (*domain.Account, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrAccountNotFound)
	}

	account, err := r.accounts.GetByID(ctx, ref)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	account, err = r.accounts.GetByExternalID(ctx, ref)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if normalized, nerr := tokenaddr.Normalize(ref); nerr == nil {
		account, err = r.accounts.GetByAddress(ctx, normalized)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("lookup account: %w", err)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, ref)
}

func (r *Resolver) create(ctx context.Context, externalID, address string) (*domain.Account, error) {
	now := r.now()
	account := &domain.Account{
		ID:             r.newID(),
		ExternalID:     externalID,
		Status:         domain.AccountStatusActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if address != "" {
		account.Address = &address
	}

	err := r.accounts.Create(ctx, account)
	if errors.Is(err, storage.ErrDuplicateKey) {
		// Lost a create race; the other writer's account wins.
		existing, gerr := r.accounts.GetByExternalID(ctx, externalID)
		if gerr == nil {
			return existing, nil
		}
		if errors.Is(gerr, storage.ErrNotFound) && address != "" {
			// The external id is free, so the duplicate is the address column.
			return nil, fmt.Errorf("%w: address already linked to another account", ErrInvalidAddress)
		}
		return nil, fmt.Errorf("resolve account after create race: %w", gerr)
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	r.logger.Info("account created",
		zap.String("account_id", account.ID),
		zap.String("external_id", externalID),
		zap.Bool("has_address", address != ""))
	return account, nil
}

func (r *Resolver) revive(ctx context.Context, account *domain.Account) error {
	if err := r.accounts.SetStatus(ctx, account.ID, domain.AccountStatusActive); err != nil {
		return fmt.Errorf("revive account %s: %w", account.ID, err)
	}
	account.Status = domain.AccountStatusActive
	r.logger.Info("archived account revived", zap.String("account_id", account.ID))
	return nil
}
