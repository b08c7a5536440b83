package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/events"
	"tola-ledger/internal/ledger"
	"tola-ledger/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *ledger.Gateway, *memory.SupplySnapshotStore) {
	t.Helper()
	store := memory.NewStore()
	snapshots := memory.NewSupplySnapshotStore()
	resolver := ledger.NewResolver(store, zap.NewNop())
	gw := ledger.NewGateway(store, store, resolver, events.NewBus(), zap.NewNop())
	svc := NewService(store, store, store, store, store, snapshots, resolver, zap.NewNop())
	return svc, gw, snapshots
}

func seedAccount(t *testing.T, gw *ledger.Gateway, externalID string, mint int64) *domain.Account {
	t.Helper()
	ctx := context.Background()
	acc, err := gw.Resolver().Resolve(ctx, ledger.Identity{ExternalID: externalID})
	if err != nil {
		t.Fatalf("Resolve(%s) failed: %v", externalID, err)
	}
	if mint > 0 {
		if _, err := gw.Mint(ctx, acc.ID, mint); err != nil {
			t.Fatalf("Mint failed: %v", err)
		}
	}
	return acc
}

func TestBalance(t *testing.T) {
	svc, gw, _ := newTestService(t)
	ctx := context.Background()

	alice := seedAccount(t, gw, "alice", 1000)
	if _, err := gw.Stake(ctx, alice.ID, 400); err != nil {
		t.Fatalf("Stake failed: %v", err)
	}
	if _, err := gw.Grant(ctx, alice.ID, domain.RewardSale, 25, ""); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	// The balance view is reachable by external id as well as account id.
	for _, ref := range []string{alice.ID, "alice"} {
		b, err := svc.Balance(ctx, ref)
		if err != nil {
			t.Fatalf("Balance(%q) failed: %v", ref, err)
		}
		if b.Liquid != 600 || b.Staked != 400 || b.Unclaimed != 25 {
			t.Errorf("Balance(%q) = liquid %d staked %d unclaimed %d, want 600/400/25",
				ref, b.Liquid, b.Staked, b.Unclaimed)
		}
		if b.Total != 1025 {
			t.Errorf("Balance(%q) total = %d, want 1025", ref, b.Total)
		}
	}

	if _, err := svc.Balance(ctx, "nobody"); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Errorf("Balance(nobody) error = %v, want ErrAccountNotFound", err)
	}
}

func TestBalanceEstimatedYield(t *testing.T) {
	svc, gw, _ := newTestService(t)
	svc.WithYieldRate(decimal.NewFromFloat(0.05))
	ctx := context.Background()

	alice := seedAccount(t, gw, "alice", 1000)
	if _, err := gw.Stake(ctx, alice.ID, 1000); err != nil {
		t.Fatalf("Stake failed: %v", err)
	}

	b, err := svc.Balance(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	// Just staked: no meaningful accrual yet, but the field renders.
	if b.EstimatedYield == "" {
		t.Error("EstimatedYield empty, want rendered decimal")
	}
}

func TestTransactionsPagination(t *testing.T) {
	svc, gw, _ := newTestService(t)
	ctx := context.Background()

	alice := seedAccount(t, gw, "alice", 10000)
	bob := seedAccount(t, gw, "bob", 0)

	for i := 0; i < 5; i++ {
		if _, err := gw.Transfer(ctx, alice.ID, bob.ID, nil, int64(10+i)); err != nil {
			t.Fatalf("Transfer %d failed: %v", i, err)
		}
	}

	// Newest first: first page holds the last transfers.
	page1, err := svc.Transactions(ctx, "alice", 1, 3)
	if err != nil {
		t.Fatalf("Transactions failed: %v", err)
	}
	if len(page1) != 3 {
		t.Fatalf("page1 length = %d, want 3", len(page1))
	}
	if page1[0].Amount != 14 {
		t.Errorf("newest amount = %d, want 14", page1[0].Amount)
	}

	page2, err := svc.Transactions(ctx, "alice", 2, 3)
	if err != nil {
		t.Fatalf("Transactions page 2 failed: %v", err)
	}
	// Page 2: remaining 2 transfers plus the mint.
	if len(page2) != 3 {
		t.Fatalf("page2 length = %d, want 3", len(page2))
	}
	if page2[len(page2)-1].Type != domain.TxMint {
		t.Errorf("oldest entry type = %s, want MINT", page2[len(page2)-1].Type)
	}

	for i := 1; i < len(page1); i++ {
		if page1[i].Seq >= page1[i-1].Seq {
			t.Errorf("page not seq-descending at %d", i)
		}
	}
}

func TestHoldersPercentages(t *testing.T) {
	svc, gw, _ := newTestService(t)
	ctx := context.Background()

	alice := seedAccount(t, gw, "alice", 750)
	seedAccount(t, gw, "bob", 250)
	seedAccount(t, gw, "carol", 0) // empty accounts are not holders
	if _, err := gw.Stake(ctx, alice.ID, 300); err != nil {
		t.Fatalf("Stake failed: %v", err)
	}

	holders, err := svc.Holders(ctx, 10)
	if err != nil {
		t.Fatalf("Holders failed: %v", err)
	}
	if len(holders) != 2 {
		t.Fatalf("holders = %d, want 2", len(holders))
	}
	if holders[0].ExternalID != "alice" || holders[0].Total() != 750 {
		t.Errorf("top holder = %s total %d, want alice 750", holders[0].ExternalID, holders[0].Total())
	}
	if holders[0].Percent != "75.0000" {
		t.Errorf("alice percent = %s, want 75.0000", holders[0].Percent)
	}
	if holders[1].Percent != "25.0000" {
		t.Errorf("bob percent = %s, want 25.0000", holders[1].Percent)
	}
}

func TestStatisticsHistory(t *testing.T) {
	svc, _, snapshots := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := snapshots.Insert(ctx, &domain.SupplySnapshot{
			TakenAt:           base.Add(time.Duration(i) * time.Hour).UnixMilli(),
			CirculatingSupply: int64(1000 + i),
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := svc.StatisticsHistory(ctx, base, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("StatisticsHistory failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("history length = %d, want 2", len(got))
	}
	if got[0].CirculatingSupply != 1000 || got[1].CirculatingSupply != 1001 {
		t.Errorf("history out of order: %+v", got)
	}

	if _, err := svc.StatisticsHistory(ctx, base.Add(time.Hour), base); err == nil {
		t.Error("inverted range accepted, want error")
	}
}
