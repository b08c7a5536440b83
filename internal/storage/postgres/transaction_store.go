package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const txColumns = `id, seq, type, from_account_id, to_account_id, to_address, amount, status, reference_hash, created_at`

// GetTransaction retrieves a transaction by its ID.
func (s *TransactionStore) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(s.pool.QueryRow(ctx, query, id))
}

// GetByReference retrieves a transaction by reference hash.
func (s *TransactionStore) GetByReference(ctx context.Context, referenceHash string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE reference_hash = $1`
	return scanTransaction(s.pool.QueryRow(ctx, query, referenceHash))
}

// ListByAccount retrieves transactions touching an account, newest first.
func (s *TransactionStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions by account: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListLog retrieves the full log in sequence order.
func (s *TransactionStore) ListLog(ctx context.Context) ([]*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions ORDER BY seq ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// scanTransaction scans a single transaction row.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID,
		&t.Seq,
		&t.Type,
		&t.FromAccountID,
		&t.ToAccountID,
		&t.ToAddress,
		&t.Amount,
		&t.Status,
		&t.ReferenceHash,
		&t.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction row: %w", err)
	}
	return &t, nil
}

// scanTransactions scans multiple rows into a slice of Transaction.
func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction

	for rows.Next() {
		var t domain.Transaction
		err := rows.Scan(
			&t.ID,
			&t.Seq,
			&t.Type,
			&t.FromAccountID,
			&t.ToAccountID,
			&t.ToAddress,
			&t.Amount,
			&t.Status,
			&t.ReferenceHash,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return txs, nil
}
