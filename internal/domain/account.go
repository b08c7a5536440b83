package domain

import "time"

// AccountStatus describes the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusArchived AccountStatus = "ARCHIVED"
)

// Account represents a ledger account for one platform user.
// Corresponds to the accounts table in PostgreSQL.
type Account struct {
	ID             string        // PRIMARY KEY, UUID
	ExternalID     string        // platform user id, unique
	Address        *string       // chain address, unique, nullable until linked
	LiquidBalance  int64         // smallest token unit, never negative
	Status         AccountStatus // ACTIVE | ARCHIVED
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Archived reports whether the account has been archived for inactivity.
// Archived accounts keep their balances and history; any new activity
// revives them.
func (a *Account) Archived() bool {
	return a.Status == AccountStatusArchived
}
