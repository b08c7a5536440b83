package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// DefaultLockTimeout bounds how long a unit of work waits for row locks
// before failing with ErrLockTimeout.
const DefaultLockTimeout = 2 * time.Second

// UnitOfWork implements storage.UnitOfWork on a pgx transaction. Every
// account or grant read through the LedgerTx uses SELECT ... FOR UPDATE, so
// two commands touching the same account serialize against each other and a
// command that fails mid-way leaves nothing behind.
type UnitOfWork struct {
	pool        *Pool
	lockTimeout time.Duration
}

// NewUnitOfWork creates a UnitOfWork with the default lock timeout.
func NewUnitOfWork(pool *Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool, lockTimeout: DefaultLockTimeout}
}

// WithLockTimeout overrides the lock wait bound.
func (u *UnitOfWork) WithLockTimeout(d time.Duration) *UnitOfWork {
	u.lockTimeout = d
	return u
}

// Compile-time interface check.
var _ storage.UnitOfWork = (*UnitOfWork)(nil)

// Execute runs fn inside one database transaction.
func (u *UnitOfWork) Execute(ctx context.Context, fn func(tx storage.LedgerTx) error) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// lock_timeout is transaction-local; a blocked FOR UPDATE aborts the
	// whole unit instead of queueing indefinitely.
	timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, timeout); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		if isLockError(err) {
			return fmt.Errorf("%w: %v", storage.ErrLockTimeout, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isLockError(err) {
			return fmt.Errorf("%w: %v", storage.ErrLockTimeout, err)
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ledgerTx implements storage.LedgerTx on an open pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

var _ storage.LedgerTx = (*ledgerTx)(nil)

func (l *ledgerTx) AccountForUpdate(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(l.tx.QueryRow(ctx, query, id))
}

func (l *ledgerTx) SetLiquidBalance(ctx context.Context, id string, balance int64, at time.Time) error {
	query := `UPDATE accounts SET liquid_balance = $2, last_activity_at = $3 WHERE id = $1`

	tag, err := l.tx.Exec(ctx, query, id, balance, at)
	if err != nil {
		return fmt.Errorf("set liquid balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (l *ledgerTx) SetAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	query := `UPDATE accounts SET status = $2 WHERE id = $1`

	tag, err := l.tx.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("set account status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (l *ledgerTx) OpenPositionsForUpdate(ctx context.Context, accountID string) ([]*domain.StakePosition, error) {
	query := `
		SELECT ` + stakeColumns + `
		FROM stake_positions
		WHERE account_id = $1 AND status = $2 AND remaining > 0
		ORDER BY opened_at ASC, id ASC
		FOR UPDATE
	`

	rows, err := l.tx.Query(ctx, query, accountID, domain.StakeStatusStaked)
	if err != nil {
		return nil, fmt.Errorf("lock open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

func (l *ledgerTx) MaturedPositionsForUpdate(ctx context.Context, now time.Time, limit int) ([]*domain.StakePosition, error) {
	// SKIP LOCKED lets concurrent sweepers divide matured positions between
	// them instead of piling up on the same rows.
	query := `
		SELECT ` + stakeColumns + `
		FROM stake_positions
		WHERE status = $1 AND unlock_at <= $2
		ORDER BY opened_at ASC, id ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`

	rows, err := l.tx.Query(ctx, query, domain.StakeStatusUnstaking, now, limit)
	if err != nil {
		return nil, fmt.Errorf("lock matured positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

func (l *ledgerTx) InsertStakePosition(ctx context.Context, p *domain.StakePosition) error {
	query := `
		INSERT INTO stake_positions (id, account_id, amount, remaining, status, opened_at, unlock_at, closed_at, unstake_tx_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := l.tx.Exec(ctx, query,
		p.ID,
		p.AccountID,
		p.Amount,
		p.Remaining,
		p.Status,
		p.OpenedAt,
		p.UnlockAt,
		p.ClosedAt,
		p.UnstakeTxID,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert stake position: %w", err)
	}
	return nil
}

func (l *ledgerTx) UpdateStakePosition(ctx context.Context, p *domain.StakePosition) error {
	query := `
		UPDATE stake_positions
		SET remaining = $2, status = $3, unlock_at = $4, closed_at = $5, unstake_tx_id = $6
		WHERE id = $1
	`

	tag, err := l.tx.Exec(ctx, query, p.ID, p.Remaining, p.Status, p.UnlockAt, p.ClosedAt, p.UnstakeTxID)
	if err != nil {
		return fmt.Errorf("update stake position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (l *ledgerTx) InsertGrant(ctx context.Context, g *domain.RewardGrant) error {
	query := `
		INSERT INTO reward_grants (id, account_id, category, amount, claimed, claimed_at, reference_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := l.tx.Exec(ctx, query,
		g.ID,
		g.AccountID,
		g.Category,
		g.Amount,
		g.Claimed,
		g.ClaimedAt,
		g.ReferenceHash,
		g.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert reward grant: %w", err)
	}
	return nil
}

func (l *ledgerTx) UnclaimedGrantsForUpdate(ctx context.Context, accountID string) ([]*domain.RewardGrant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM reward_grants
		WHERE account_id = $1 AND NOT claimed
		ORDER BY created_at ASC, id ASC
		FOR UPDATE
	`

	rows, err := l.tx.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("lock unclaimed grants: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

func (l *ledgerTx) MarkGrantsClaimed(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE reward_grants
		SET claimed = TRUE, claimed_at = $2
		WHERE id = ANY($1) AND NOT claimed
	`

	_, err := l.tx.Exec(ctx, query, ids, at)
	if err != nil {
		return fmt.Errorf("mark grants claimed: %w", err)
	}
	return nil
}

func (l *ledgerTx) AppendTransaction(ctx context.Context, t *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, type, from_account_id, to_account_id, to_address, amount, status, reference_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`

	err := l.tx.QueryRow(ctx, query,
		t.ID,
		t.Type,
		t.FromAccountID,
		t.ToAccountID,
		t.ToAddress,
		t.Amount,
		t.Status,
		t.ReferenceHash,
		t.CreatedAt,
	).Scan(&t.Seq)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (l *ledgerTx) TransactionForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(l.tx.QueryRow(ctx, query, id))
}

func (l *ledgerTx) PositionsByUnstakeTxForUpdate(ctx context.Context, txID string) ([]*domain.StakePosition, error) {
	query := `
		SELECT ` + stakeColumns + `
		FROM stake_positions
		WHERE status = $1 AND unstake_tx_id = $2
		ORDER BY opened_at ASC, id ASC
		FOR UPDATE
	`

	rows, err := l.tx.Query(ctx, query, domain.StakeStatusUnstaking, txID)
	if err != nil {
		return nil, fmt.Errorf("lock positions by unstake tx: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

func (l *ledgerTx) SetTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus) error {
	// Only the PENDING -> CONFIRMED | FAILED transition is allowed; the log
	// is otherwise append-only.
	query := `UPDATE transactions SET status = $2 WHERE id = $1 AND status = $3`

	tag, err := l.tx.Exec(ctx, query, id, status, domain.TxStatusPending)
	if err != nil {
		return fmt.Errorf("set transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (l *ledgerTx) TransactionByReference(ctx context.Context, referenceHash string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE reference_hash = $1`
	return scanTransaction(l.tx.QueryRow(ctx, query, referenceHash))
}
