package storage

import (
	"context"
	"time"

	"tola-ledger/internal/domain"
)

// AccountStore provides read access to accounts plus the resolver's
// lazy-create path. All balance mutation happens inside a unit of work.
type AccountStore interface {
	// GetByID retrieves an account by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Account, error)

	// GetByExternalID retrieves an account by platform user id.
	GetByExternalID(ctx context.Context, externalID string) (*domain.Account, error)

	// GetByAddress retrieves an account by its linked chain address.
	GetByAddress(ctx context.Context, address string) (*domain.Account, error)

	// Create inserts a new account with zero balance. Returns ErrDuplicateKey
	// if the external id or address is already taken.
	Create(ctx context.Context, a *domain.Account) error

	// LinkAddress sets the chain address on an existing account.
	// Returns ErrDuplicateKey if the address is taken by another account.
	LinkAddress(ctx context.Context, id, address string) error

	// ListInactiveSince returns active accounts whose last activity is before
	// cutoff, oldest first, at most limit rows.
	ListInactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Account, error)

	// ListAll returns every account, ordered by id. Meant for audit jobs,
	// not request paths.
	ListAll(ctx context.Context) ([]*domain.Account, error)

	// SetStatus archives or revives an account. History is never deleted.
	SetStatus(ctx context.Context, id string, status domain.AccountStatus) error
}

// StakeStore provides read access to stake positions.
type StakeStore interface {
	// PositionsByAccount retrieves all positions for an account, oldest first.
	PositionsByAccount(ctx context.Context, accountID string) ([]*domain.StakePosition, error)

	// StakedTotal returns the sum of Remaining over the account's positions
	// with status STAKED or UNSTAKING.
	StakedTotal(ctx context.Context, accountID string) (int64, error)
}

// RewardStore provides read access to reward grants.
type RewardStore interface {
	// GrantsByAccount retrieves all grants for an account, oldest first.
	GrantsByAccount(ctx context.Context, accountID string) ([]*domain.RewardGrant, error)

	// UnclaimedTotal returns the sum of unclaimed grant amounts for an account.
	UnclaimedTotal(ctx context.Context, accountID string) (int64, error)
}

// TransactionStore provides read access to the append-only transaction log.
type TransactionStore interface {
	// GetTransaction retrieves a transaction by its ID. Returns ErrNotFound if not exists.
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)

	// GetByReference retrieves a transaction by reference hash.
	GetByReference(ctx context.Context, referenceHash string) (*domain.Transaction, error)

	// ListByAccount retrieves transactions touching an account (as sender or
	// recipient), newest first, paginated.
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error)

	// ListLog retrieves the full log in sequence order, for replay verification.
	ListLog(ctx context.Context) ([]*domain.Transaction, error)
}

// StatsStore provides aggregate reads for the query service.
type StatsStore interface {
	// TopHolders returns the n largest accounts by liquid + staked balance.
	TopHolders(ctx context.Context, n int) ([]*domain.Holder, error)

	// Statistics returns ledger-wide totals in one consistent snapshot.
	Statistics(ctx context.Context) (*domain.LedgerStats, error)
}

// SupplySnapshotStore provides access to supply snapshot analytics storage.
type SupplySnapshotStore interface {
	// Insert appends one snapshot.
	Insert(ctx context.Context, s *domain.SupplySnapshot) error

	// GetByTimeRange retrieves snapshots within [start, end] ms (inclusive),
	// ordered by taken_at ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SupplySnapshot, error)
}

// UnitOfWork executes one ledger command as a single atomic unit. Either
// every write made through the LedgerTx is committed, or none is. Lock
// acquisition failures surface as ErrLockTimeout with no partial effects.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the write surface available inside one unit of work. Account
// and grant reads through it lock the underlying rows until the unit commits
// or rolls back. Callers must lock accounts in ascending ID order.
type LedgerTx interface {
	// AccountForUpdate loads an account and locks its row.
	AccountForUpdate(ctx context.Context, id string) (*domain.Account, error)

	// SetLiquidBalance writes the account's liquid balance and bumps its
	// last-activity timestamp. The row must already be locked.
	SetLiquidBalance(ctx context.Context, id string, balance int64, at time.Time) error

	// SetAccountStatus archives or revives an account within the unit.
	SetAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error

	// OpenPositionsForUpdate loads the account's STAKED positions with
	// Remaining > 0, oldest first, and locks them.
	OpenPositionsForUpdate(ctx context.Context, accountID string) ([]*domain.StakePosition, error)

	// MaturedPositionsForUpdate loads UNSTAKING positions whose cooldown has
	// expired at now, oldest first, at most limit rows, and locks them.
	MaturedPositionsForUpdate(ctx context.Context, now time.Time, limit int) ([]*domain.StakePosition, error)

	// InsertStakePosition adds a new position.
	InsertStakePosition(ctx context.Context, p *domain.StakePosition) error

	// UpdateStakePosition writes Remaining, Status, UnlockAt, ClosedAt and
	// UnstakeTxID of an existing position.
	UpdateStakePosition(ctx context.Context, p *domain.StakePosition) error

	// InsertGrant adds a new reward grant. Returns ErrDuplicateKey if its
	// reference hash was already applied.
	InsertGrant(ctx context.Context, g *domain.RewardGrant) error

	// UnclaimedGrantsForUpdate loads the account's unclaimed grants, oldest
	// first, and locks them.
	UnclaimedGrantsForUpdate(ctx context.Context, accountID string) ([]*domain.RewardGrant, error)

	// MarkGrantsClaimed marks the given grants claimed at the given time.
	MarkGrantsClaimed(ctx context.Context, ids []string, at time.Time) error

	// AppendTransaction appends one log entry and assigns its Seq. Returns
	// ErrDuplicateKey if the reference hash was already applied.
	AppendTransaction(ctx context.Context, t *domain.Transaction) error

	// TransactionForUpdate loads a transaction by ID and locks its row.
	TransactionForUpdate(ctx context.Context, id string) (*domain.Transaction, error)

	// PositionsByUnstakeTxForUpdate loads and locks the UNSTAKING positions
	// linked to the given pending unstake transaction.
	PositionsByUnstakeTxForUpdate(ctx context.Context, txID string) ([]*domain.StakePosition, error)

	// SetTransactionStatus applies the PENDING -> CONFIRMED | FAILED
	// transition. Returns ErrNotFound when the transaction does not exist or
	// is no longer pending.
	SetTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus) error

	// TransactionByReference loads a transaction by reference hash within the unit.
	TransactionByReference(ctx context.Context, referenceHash string) (*domain.Transaction, error)
}
