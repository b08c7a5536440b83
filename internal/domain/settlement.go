package domain

// SettlementKind distinguishes the two shapes of externally-reported events.
type SettlementKind string

const (
	// SettlementKindReward reports a qualifying activity (royalty payout,
	// off-platform tracker, etc.) and becomes one reward grant.
	SettlementKindReward SettlementKind = "REWARD"
	// SettlementKindConfirmation reports an on-chain confirmed value movement
	// and becomes one CONFIRMED transaction, or confirms a pending one.
	SettlementKindConfirmation SettlementKind = "CONFIRMATION"
)

// SettlementEvent is an event consumed from an external settlement
// collaborator. ExternalReference is the deduplication key: the same
// reference is never applied twice.
type SettlementEvent struct {
	AccountOrAddress  string          `json:"account_or_address"`
	Kind              SettlementKind  `json:"kind"`
	Category          RewardCategory  `json:"category,omitempty"` // REWARD only
	TxType            TransactionType `json:"tx_type,omitempty"`  // CONFIRMATION only
	Amount            int64           `json:"amount"`
	ExternalReference string          `json:"external_reference"`
}
