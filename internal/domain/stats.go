package domain

// Holder is one row of the top-holders ranking.
type Holder struct {
	AccountID     string
	ExternalID    string
	Address       *string
	LiquidBalance int64
	StakedBalance int64
	// Percent of circulating supply held (liquid + staked), 0..100,
	// rendered with fixed precision by the query service.
	Percent string
}

// Total returns the holder's combined liquid and staked balance.
func (h *Holder) Total() int64 {
	return h.LiquidBalance + h.StakedBalance
}

// LedgerStats is the aggregate view exposed to the presentation layer.
type LedgerStats struct {
	CirculatingSupply  int64 // sum of liquid + staked across all accounts
	TotalLiquid        int64
	TotalStaked        int64
	RewardsDistributed int64 // sum of claimed grant amounts
	Accounts           int64
	Holders            int64 // accounts with liquid+staked > 0
}
