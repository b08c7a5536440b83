package domain

import "time"

// TransactionType enumerates ledger commands.
type TransactionType string

const (
	TxTransfer TransactionType = "TRANSFER"
	TxMint     TransactionType = "MINT"
	TxStake    TransactionType = "STAKE"
	TxUnstake  TransactionType = "UNSTAKE"
	TxClaim    TransactionType = "CLAIM"
)

// TransactionStatus tracks external settlement confirmation.
type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "PENDING"
	TxStatusConfirmed TransactionStatus = "CONFIRMED"
	TxStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is one append-only ledger entry, one per executed command.
// Corresponds to the transactions table in PostgreSQL.
//
// The transaction log is the single source of truth: every account's liquid
// and staked balance must be re-derivable by folding this log from empty
// state. Rows are never updated except for the Status transition
// PENDING -> CONFIRMED | FAILED.
type Transaction struct {
	ID            string // PRIMARY KEY, UUID
	Seq           int64  // monotonic sequence, assigned by the store
	Type          TransactionType
	FromAccountID *string // nil for MINT
	ToAccountID   *string // nil for STAKE/UNSTAKE/CLAIM (self-referential)
	ToAddress     *string // raw recipient chain address, if transferred by address
	Amount        int64
	Status        TransactionStatus
	ReferenceHash *string // settlement reference or deterministic command hash, unique
	CreatedAt     time.Time
}

// Hash returns the public reference for this transaction. Presentation
// collaborators treat it as the "transaction hash".
func (t *Transaction) Hash() string {
	if t.ReferenceHash != nil {
		return *t.ReferenceHash
	}
	return t.ID
}
