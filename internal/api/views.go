package api

import (
	"time"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/ledger"
)

// txView is the wire shape of one transaction log entry.
type txView struct {
	ID        string    `json:"id"`
	Hash      string    `json:"hash"`
	Type      string    `json:"type"`
	From      *string   `json:"from,omitempty"`
	To        *string   `json:"to,omitempty"`
	ToAddress *string   `json:"to_address,omitempty"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newTxView(t *domain.Transaction) *txView {
	if t == nil {
		return nil
	}
	return &txView{
		ID:        t.ID,
		Hash:      t.Hash(),
		Type:      string(t.Type),
		From:      t.FromAccountID,
		To:        t.ToAccountID,
		ToAddress: t.ToAddress,
		Amount:    t.Amount,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
	}
}

func newTxViews(txs []*domain.Transaction) []*txView {
	out := make([]*txView, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTxView(t))
	}
	return out
}

type unstakeView struct {
	Tx       *txView    `json:"tx"`
	Released int64      `json:"released"`
	Pending  int64      `json:"pending"`
	UnlockAt *time.Time `json:"unlock_at,omitempty"`
}

func newUnstakeView(r *ledger.UnstakeResult) *unstakeView {
	return &unstakeView{
		Tx:       newTxView(r.Tx),
		Released: r.Released,
		Pending:  r.Pending,
		UnlockAt: r.UnlockAt,
	}
}

type claimView struct {
	Total  int64   `json:"total"`
	Grants int     `json:"grants"`
	Tx     *txView `json:"tx,omitempty"`
}

func newClaimView(r *ledger.ClaimResult) *claimView {
	return &claimView{Total: r.Total, Grants: r.Grants, Tx: newTxView(r.Tx)}
}

type grantView struct {
	ID        string  `json:"id"`
	AccountID string  `json:"account_id"`
	Category  string  `json:"category"`
	Amount    int64   `json:"amount"`
	Applied   bool    `json:"applied"`
	Reference *string `json:"reference,omitempty"`
}

func newGrantView(r *ledger.GrantResult) *grantView {
	return &grantView{
		ID:        r.Grant.ID,
		AccountID: r.Grant.AccountID,
		Category:  string(r.Grant.Category),
		Amount:    r.Grant.Amount,
		Applied:   r.Applied,
		Reference: r.Grant.ReferenceHash,
	}
}

type settlementView struct {
	Applied bool   `json:"applied"`
	TxID    string `json:"tx_id,omitempty"`
	GrantID string `json:"grant_id,omitempty"`
}

type holderView struct {
	AccountID  string  `json:"account_id"`
	ExternalID string  `json:"external_id"`
	Address    *string `json:"address,omitempty"`
	Liquid     int64   `json:"liquid"`
	Staked     int64   `json:"staked"`
	Total      int64   `json:"total"`
	Percent    string  `json:"percent"`
}

func newHolderViews(holders []*domain.Holder) []*holderView {
	out := make([]*holderView, 0, len(holders))
	for _, h := range holders {
		out = append(out, &holderView{
			AccountID:  h.AccountID,
			ExternalID: h.ExternalID,
			Address:    h.Address,
			Liquid:     h.LiquidBalance,
			Staked:     h.StakedBalance,
			Total:      h.Total(),
			Percent:    h.Percent,
		})
	}
	return out
}

type statsView struct {
	CirculatingSupply  int64 `json:"circulating_supply"`
	TotalLiquid        int64 `json:"total_liquid"`
	TotalStaked        int64 `json:"total_staked"`
	RewardsDistributed int64 `json:"rewards_distributed"`
	Accounts           int64 `json:"accounts"`
	Holders            int64 `json:"holders"`
}

func newStatsView(s *domain.LedgerStats) *statsView {
	return &statsView{
		CirculatingSupply:  s.CirculatingSupply,
		TotalLiquid:        s.TotalLiquid,
		TotalStaked:        s.TotalStaked,
		RewardsDistributed: s.RewardsDistributed,
		Accounts:           s.Accounts,
		Holders:            s.Holders,
	}
}

type snapshotView struct {
	TakenAt            int64 `json:"taken_at"`
	CirculatingSupply  int64 `json:"circulating_supply"`
	TotalLiquid        int64 `json:"total_liquid"`
	TotalStaked        int64 `json:"total_staked"`
	RewardsDistributed int64 `json:"rewards_distributed"`
	Accounts           int64 `json:"accounts"`
	Holders            int64 `json:"holders"`
}

func newSnapshotViews(snaps []*domain.SupplySnapshot) []*snapshotView {
	out := make([]*snapshotView, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, &snapshotView{
			TakenAt:            s.TakenAt,
			CirculatingSupply:  s.CirculatingSupply,
			TotalLiquid:        s.TotalLiquid,
			TotalStaked:        s.TotalStaked,
			RewardsDistributed: s.RewardsDistributed,
			Accounts:           s.Accounts,
			Holders:            s.Holders,
		})
	}
	return out
}
