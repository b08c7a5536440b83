package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"tola-ledger/internal/domain"
)

// Base58 encoding of a valid ed25519 curve point.
const testAddress = "6x5SYnLroiN7WYq8NQYU9KHcH4YjpBbwpUfVu3EB7ieH"

func TestResolverCreatesLazily(t *testing.T) {
	gw, store, _ := newTestLedger(t)
	ctx := context.Background()
	r := gw.Resolver()

	acc, err := r.Resolve(ctx, Identity{ExternalID: "alice"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if acc.LiquidBalance != 0 {
		t.Errorf("new account balance = %d, want 0", acc.LiquidBalance)
	}
	if acc.Status != domain.AccountStatusActive {
		t.Errorf("new account status = %s, want ACTIVE", acc.Status)
	}

	// Second resolve returns the same account.
	again, err := r.Resolve(ctx, Identity{ExternalID: "alice"})
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if again.ID != acc.ID {
		t.Errorf("second resolve id = %s, want %s", again.ID, acc.ID)
	}

	if _, err := store.GetByExternalID(ctx, "alice"); err != nil {
		t.Errorf("account not persisted: %v", err)
	}
}

func TestResolverLinksAddress(t *testing.T) {
	gw, _, _ := newTestLedger(t)
	ctx := context.Background()
	r := gw.Resolver()

	acc, err := r.Resolve(ctx, Identity{ExternalID: "alice", Address: testAddress})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if acc.Address == nil || *acc.Address != testAddress {
		t.Fatalf("address = %v, want %s", acc.Address, testAddress)
	}

	// A second account may not claim the same address.
	_, err = r.Resolve(ctx, Identity{ExternalID: "bob", Address: testAddress})
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("conflicting link error = %v, want ErrInvalidAddress", err)
	}
}

func TestResolverRejectsInvalidAddress(t *testing.T) {
	gw, _, _ := newTestLedger(t)
	r := gw.Resolver()

	for _, addr := range []string{"not-base58-0OIl", "abc", testAddress + "ff"} {
		_, err := r.Resolve(context.Background(), Identity{ExternalID: "alice", Address: addr})
		if !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("Resolve(%q) error = %v, want ErrInvalidAddress", addr, err)
		}
	}
}

func TestResolverRevivesArchived(t *testing.T) {
	gw, store, clock := newTestLedger(t)
	ctx := context.Background()
	r := gw.Resolver()

	acc, err := r.Resolve(ctx, Identity{ExternalID: "alice"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	clock.Advance(90 * 24 * time.Hour)
	archived, err := gw.ArchiveInactive(ctx, clock.Now().Add(-30*24*time.Hour), 10)
	if err != nil {
		t.Fatalf("ArchiveInactive failed: %v", err)
	}
	if archived != 1 {
		t.Fatalf("archived = %d, want 1", archived)
	}
	stored, err := store.GetByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !stored.Archived() {
		t.Fatal("account not archived")
	}

	// Any new activity revives the account through the resolver.
	revived, err := r.Resolve(ctx, Identity{ExternalID: "alice"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if revived.Archived() {
		t.Error("resolved account still archived")
	}
	stored, err = store.GetByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Archived() {
		t.Error("stored account still archived")
	}
}

func TestResolveAddressCreatesHolder(t *testing.T) {
	gw, _, _ := newTestLedger(t)
	ctx := context.Background()
	r := gw.Resolver()

	acc, err := r.ResolveAddress(ctx, testAddress)
	if err != nil {
		t.Fatalf("ResolveAddress failed: %v", err)
	}
	if acc.Address == nil || *acc.Address != testAddress {
		t.Fatalf("address = %v, want %s", acc.Address, testAddress)
	}

	again, err := r.ResolveAddress(ctx, testAddress)
	if err != nil {
		t.Fatalf("second ResolveAddress failed: %v", err)
	}
	if again.ID != acc.ID {
		t.Errorf("second resolve id = %s, want %s", again.ID, acc.ID)
	}
}

func TestLookupDoesNotCreate(t *testing.T) {
	gw, _, _ := newTestLedger(t)
	ctx := context.Background()
	r := gw.Resolver()

	acc, err := r.Resolve(ctx, Identity{ExternalID: "alice", Address: testAddress})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	for _, ref := range []string{acc.ID, "alice", testAddress} {
		got, err := r.Lookup(ctx, ref)
		if err != nil {
			t.Errorf("Lookup(%q) failed: %v", ref, err)
			continue
		}
		if got.ID != acc.ID {
			t.Errorf("Lookup(%q) id = %s, want %s", ref, got.ID, acc.ID)
		}
	}

	if _, err := r.Lookup(ctx, "nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Lookup(nobody) error = %v, want ErrAccountNotFound", err)
	}
}
