package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"tola-ledger/internal/domain"
)

// ComputeTxHash computes a deterministic transaction reference using SHA256.
// Formula: SHA256(type|from|to|amount|created_at_unix_nano)
// Returns hex-encoded hash (64 characters).
//
// Commands without an external settlement reference get this hash as their
// reference_hash, so every transaction has a stable public identifier.
func ComputeTxHash(
	txType domain.TransactionType,
	fromAccountID *string,
	toAccountID *string,
	amount int64,
	createdAtUnixNano int64,
) string {
	from := ""
	if fromAccountID != nil {
		from = *fromAccountID
	}
	to := ""
	if toAccountID != nil {
		to = *toAccountID
	}

	data := fmt.Sprintf("%s|%s|%s|%d|%d",
		string(txType),
		from,
		to,
		amount,
		createdAtUnixNano,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeGrantID computes a deterministic grant identifier for
// collaborator-reported activities that carry an external reference.
// Formula: SHA256(account_id|category|external_reference)
func ComputeGrantID(accountID string, category domain.RewardCategory, externalReference string) string {
	data := fmt.Sprintf("%s|%s|%s", accountID, string(category), externalReference)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
