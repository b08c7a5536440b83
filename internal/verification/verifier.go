// Package verification implements replay verification of the ledger: the
// transaction log is folded from empty state and the result is compared
// against the materialized balances. Any divergence means a write bypassed
// the command gateway or the log was tampered with.
package verification

import "context"

// FieldDivergence represents a mismatch between replayed and stored values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // value replayed from the log
	Actual   interface{} // materialized value
}

// VerificationResult contains the result of verifying a single account.
type VerificationResult struct {
	AccountID   string            // verified account
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// VerificationReport contains results for a full ledger verification.
type VerificationReport struct {
	TotalAccounts     int // accounts verified
	MatchedAccounts   int // accounts that matched exactly
	DivergentAccounts int // accounts with divergences

	// Supply totals from the fold, for cross-checking statistics.
	ReplayedLiquid int64
	ReplayedStaked int64

	Results []VerificationResult // individual results, divergent first
}

// Match reports whether the whole ledger verified cleanly.
func (r *VerificationReport) Match() bool {
	return r.DivergentAccounts == 0
}

// Verifier interface for ledger replay verification.
type Verifier interface {
	// VerifyAccount verifies a single account by ID.
	VerifyAccount(ctx context.Context, accountID string) (*VerificationResult, error)

	// VerifyAll verifies every account against the full log.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}
