package domain

import "time"

// StakeStatus describes the lifecycle state of a stake position.
type StakeStatus string

const (
	// StakeStatusStaked means the position's remaining amount is locked and earning yield.
	StakeStatusStaked StakeStatus = "STAKED"
	// StakeStatusUnstaking means an unstake was requested and the position is
	// in its cooldown window; funds unlock at UnlockAt.
	StakeStatusUnstaking StakeStatus = "UNSTAKING"
	// StakeStatusUnstaked means the position is fully closed.
	StakeStatusUnstaked StakeStatus = "UNSTAKED"
)

// StakePosition records a single stake action.
// Corresponds to the stake_positions table in PostgreSQL.
//
// Amount is the original staked amount and never changes, so the stake action
// stays auditable. Partial unstakes reduce Remaining instead. An account's
// staked balance is the sum of Remaining over its positions with status
// STAKED or UNSTAKING.
type StakePosition struct {
	ID        string // PRIMARY KEY, UUID
	AccountID string
	Amount    int64 // original amount, positive, immutable
	Remaining int64 // currently locked portion, 0 <= Remaining <= Amount
	Status    StakeStatus
	OpenedAt  time.Time
	UnlockAt  *time.Time // cooldown expiry, set while UNSTAKING
	ClosedAt  *time.Time // set when fully UNSTAKED

	// UnstakeTxID links the position to the pending UNSTAKE transaction that
	// will release it once the cooldown expires. Nil unless UNSTAKING.
	UnstakeTxID *string
}

// Open reports whether the position still locks funds.
func (p *StakePosition) Open() bool {
	return p.Status != StakeStatusUnstaked && p.Remaining > 0
}
