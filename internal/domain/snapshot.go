package domain

// SupplySnapshot is one point-in-time aggregate of ledger totals, stored in
// ClickHouse for the presentation layer's charts.
type SupplySnapshot struct {
	TakenAt            int64 // Unix timestamp in milliseconds
	CirculatingSupply  int64 // sum of liquid + staked across all accounts
	TotalLiquid        int64
	TotalStaked        int64
	RewardsDistributed int64 // sum of claimed grant amounts
	Accounts           int64 // total account count
	Holders            int64 // accounts with liquid+staked > 0
}
