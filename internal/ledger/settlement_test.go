package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"tola-ledger/internal/domain"
)

func TestApplySettlementReward(t *testing.T) {
	gw, store, _ := newTestLedger(t)
	ctx := context.Background()

	mustAccount(t, gw, "alice")

	ev := domain.SettlementEvent{
		AccountOrAddress:  "alice",
		Kind:              domain.SettlementKindReward,
		Category:          domain.RewardSale,
		Amount:            50,
		ExternalReference: "royalty-2026-001",
	}

	res, err := gw.ApplySettlement(ctx, ev)
	if err != nil {
		t.Fatalf("ApplySettlement failed: %v", err)
	}
	if !res.Applied || res.GrantID == "" {
		t.Fatalf("result = %+v, want applied with grant id", res)
	}

	// Replay of the same reference is a successful no-op.
	replay, err := gw.ApplySettlement(ctx, ev)
	if err != nil {
		t.Fatalf("replay errored: %v", err)
	}
	if replay.Applied {
		t.Fatal("replay applied, want dropped")
	}

	alice, err := store.GetByExternalID(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByExternalID failed: %v", err)
	}
	unclaimed, err := store.UnclaimedTotal(ctx, alice.ID)
	if err != nil {
		t.Fatalf("UnclaimedTotal failed: %v", err)
	}
	if unclaimed != 50 {
		t.Errorf("unclaimed = %d, want 50", unclaimed)
	}
}

func TestApplySettlementRewardCreatesAccount(t *testing.T) {
	gw, store, _ := newTestLedger(t)
	ctx := context.Background()

	ev := domain.SettlementEvent{
		AccountOrAddress:  "new-artist",
		Kind:              domain.SettlementKindReward,
		Category:          domain.RewardExhibition,
		Amount:            15,
		ExternalReference: "exh-44",
	}
	if _, err := gw.ApplySettlement(ctx, ev); err != nil {
		t.Fatalf("ApplySettlement failed: %v", err)
	}
	if _, err := store.GetByExternalID(ctx, "new-artist"); err != nil {
		t.Fatalf("account not created lazily: %v", err)
	}
}

func TestApplySettlementConfirmationInbound(t *testing.T) {
	gw, store, _ := newTestLedger(t)
	ctx := context.Background()

	alice := mustAccount(t, gw, "alice")

	ev := domain.SettlementEvent{
		AccountOrAddress:  "alice",
		Kind:              domain.SettlementKindConfirmation,
		TxType:            domain.TxTransfer,
		Amount:            250,
		ExternalReference: "chain-sig-abc",
	}

	res, err := gw.ApplySettlement(ctx, ev)
	if err != nil {
		t.Fatalf("ApplySettlement failed: %v", err)
	}
	if !res.Applied || res.TxID == "" {
		t.Fatalf("result = %+v, want applied with tx id", res)
	}

	if got := liquidBalance(t, gw, alice.ID); got != 250 {
		t.Errorf("balance = %d, want 250", got)
	}
	tx, err := store.GetByReference(ctx, "chain-sig-abc")
	if err != nil {
		t.Fatalf("GetByReference failed: %v", err)
	}
	if tx.Status != domain.TxStatusConfirmed || tx.ToAccountID == nil || *tx.ToAccountID != alice.ID {
		t.Errorf("transaction malformed: %+v", tx)
	}

	// Replay credits nothing.
	replay, err := gw.ApplySettlement(ctx, ev)
	if err != nil {
		t.Fatalf("replay errored: %v", err)
	}
	if replay.Applied {
		t.Fatal("replay applied, want dropped")
	}
	if got := liquidBalance(t, gw, alice.ID); got != 250 {
		t.Errorf("balance after replay = %d, want 250", got)
	}
}

func TestApplySettlementConfirmsPendingUnstake(t *testing.T) {
	gw, store, _ := newTestLedger(t)
	gw.WithCooldown(time.Hour)
	ctx := context.Background()

	alice := mustAccount(t, gw, "alice")
	if _, err := gw.Mint(ctx, alice.ID, 500); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if _, err := gw.Stake(ctx, alice.ID, 300); err != nil {
		t.Fatalf("Stake failed: %v", err)
	}
	res, err := gw.Unstake(ctx, alice.ID, 300)
	if err != nil {
		t.Fatalf("Unstake failed: %v", err)
	}

	// External settlement confirms ahead of the cooldown window. The held
	// funds are released with the confirmation.
	sres, err := gw.ApplySettlement(ctx, domain.SettlementEvent{
		AccountOrAddress:  "alice",
		Kind:              domain.SettlementKindConfirmation,
		TxType:            domain.TxUnstake,
		Amount:            300,
		ExternalReference: res.Tx.Hash(),
	})
	if err != nil {
		t.Fatalf("ApplySettlement failed: %v", err)
	}
	if !sres.Applied || sres.TxID != res.Tx.ID {
		t.Fatalf("result = %+v, want applied tx %s", sres, res.Tx.ID)
	}

	if got := liquidBalance(t, gw, alice.ID); got != 500 {
		t.Errorf("balance = %d, want 500", got)
	}
	confirmed, err := store.GetTransaction(ctx, res.Tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if confirmed.Status != domain.TxStatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", confirmed.Status)
	}
	staked, err := store.StakedTotal(ctx, alice.ID)
	if err != nil {
		t.Fatalf("StakedTotal failed: %v", err)
	}
	if staked != 0 {
		t.Errorf("staked = %d, want 0", staked)
	}
}

func TestApplySettlementRejectsMalformed(t *testing.T) {
	gw, _, _ := newTestLedger(t)
	ctx := context.Background()

	mustAccount(t, gw, "alice")

	cases := []struct {
		name string
		ev   domain.SettlementEvent
	}{
		{"missing reference", domain.SettlementEvent{
			AccountOrAddress: "alice", Kind: domain.SettlementKindReward,
			Category: domain.RewardSale, Amount: 10,
		}},
		{"zero amount", domain.SettlementEvent{
			AccountOrAddress: "alice", Kind: domain.SettlementKindReward,
			Category: domain.RewardSale, Amount: 0, ExternalReference: "r1",
		}},
		{"unknown kind", domain.SettlementEvent{
			AccountOrAddress: "alice", Kind: "GOSSIP", Amount: 10, ExternalReference: "r2",
		}},
		{"unknown category", domain.SettlementEvent{
			AccountOrAddress: "alice", Kind: domain.SettlementKindReward,
			Category: "LOTTERY", Amount: 10, ExternalReference: "r3",
		}},
		{"unsupported tx type", domain.SettlementEvent{
			AccountOrAddress: "alice", Kind: domain.SettlementKindConfirmation,
			TxType: domain.TxClaim, Amount: 10, ExternalReference: "r4",
		}},
	}
	for _, tc := range cases {
		if _, err := gw.ApplySettlement(ctx, tc.ev); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("%s: error = %v, want ErrInvalidAmount", tc.name, err)
		}
	}

	// An unstake confirmation without a matching pending entry fails.
	_, err := gw.ApplySettlement(ctx, domain.SettlementEvent{
		AccountOrAddress:  "alice",
		Kind:              domain.SettlementKindConfirmation,
		TxType:            domain.TxUnstake,
		Amount:            10,
		ExternalReference: "no-such-unstake",
	})
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("error = %v, want ErrTransactionNotFound", err)
	}
}
