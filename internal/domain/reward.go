package domain

import "time"

// RewardCategory enumerates the qualifying activity types that earn rewards.
type RewardCategory string

const (
	RewardArtworkCreation RewardCategory = "ARTWORK_CREATION"
	RewardEngagement      RewardCategory = "ENGAGEMENT"
	RewardExhibition      RewardCategory = "EXHIBITION"
	RewardSale            RewardCategory = "SALE"
	RewardMentorship      RewardCategory = "MENTORSHIP"
	RewardGovernance      RewardCategory = "GOVERNANCE"
)

// ValidRewardCategory reports whether c is a known category.
func ValidRewardCategory(c RewardCategory) bool {
	switch c {
	case RewardArtworkCreation, RewardEngagement, RewardExhibition,
		RewardSale, RewardMentorship, RewardGovernance:
		return true
	}
	return false
}

// RewardGrant is one accrual event reported by a collaborator.
// Corresponds to the reward_grants table in PostgreSQL.
//
// Once Claimed is true the grant is immutable. Grants are never deleted;
// each activity stays individually auditable.
type RewardGrant struct {
	ID            string // PRIMARY KEY, UUID
	AccountID     string
	Category      RewardCategory
	Amount        int64 // positive
	Claimed       bool
	ClaimedAt     *time.Time
	ReferenceHash *string // external settlement reference, dedup key, nullable
	CreatedAt     time.Time
}
