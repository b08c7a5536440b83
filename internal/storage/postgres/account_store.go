package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

const accountColumns = `id, external_id, address, liquid_balance, status, created_at, last_activity_at`

// GetByID retrieves an account by its ID. Returns ErrNotFound if not exists.
func (s *AccountStore) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.pool.QueryRow(ctx, query, id))
}

// GetByExternalID retrieves an account by platform user id.
func (s *AccountStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE external_id = $1`
	return scanAccount(s.pool.QueryRow(ctx, query, externalID))
}

// GetByAddress retrieves an account by its linked chain address.
func (s *AccountStore) GetByAddress(ctx context.Context, address string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE address = $1`
	return scanAccount(s.pool.QueryRow(ctx, query, address))
}

// Create inserts a new account. Returns ErrDuplicateKey if the external id
// or address is already taken.
func (s *AccountStore) Create(ctx context.Context, a *domain.Account) error {
	query := `
		INSERT INTO accounts (id, external_id, address, liquid_balance, status, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.ExternalID,
		a.Address,
		a.LiquidBalance,
		a.Status,
		a.CreatedAt,
		a.LastActivityAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// LinkAddress sets the chain address on an existing account.
func (s *AccountStore) LinkAddress(ctx context.Context, id, address string) error {
	query := `UPDATE accounts SET address = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, address)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("link address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListInactiveSince returns active accounts whose last activity is before
// cutoff, oldest first, at most limit rows.
func (s *AccountStore) ListInactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE status = $1 AND last_activity_at < $2
		ORDER BY last_activity_at ASC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, domain.AccountStatusActive, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list inactive accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// ListAll returns every account, ordered by id. Meant for audit jobs, not
// request paths.
func (s *AccountStore) ListAll(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// SetStatus archives or revives an account.
func (s *AccountStore) SetStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	query := `UPDATE accounts SET status = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("set account status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanAccount scans a single account row.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID,
		&a.ExternalID,
		&a.Address,
		&a.LiquidBalance,
		&a.Status,
		&a.CreatedAt,
		&a.LastActivityAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan account row: %w", err)
	}
	return &a, nil
}

// scanAccounts scans multiple rows into a slice of Account.
func scanAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	var accounts []*domain.Account

	for rows.Next() {
		var a domain.Account
		err := rows.Scan(
			&a.ID,
			&a.ExternalID,
			&a.Address,
			&a.LiquidBalance,
			&a.Status,
			&a.CreatedAt,
			&a.LastActivityAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}

	return accounts, nil
}
