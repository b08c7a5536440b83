package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/events"
	"tola-ledger/internal/ledger"
	"tola-ledger/internal/query"
	"tola-ledger/internal/storage/memory"
	"tola-ledger/internal/verification"
)

const testAdminToken = "test-admin-token"

func newTestAPI(t *testing.T) (*API, *ledger.Gateway) {
	t.Helper()
	store := memory.NewStore()
	resolver := ledger.NewResolver(store, zap.NewNop())
	gw := ledger.NewGateway(store, store, resolver, events.NewBus(), zap.NewNop())
	svc := query.NewService(store, store, store, store, store, memory.NewSupplySnapshotStore(), resolver, zap.NewNop())
	verifier := verification.NewLedgerVerifier(store, store, store)
	return New(gw, svc, verifier, Config{AdminToken: testAdminToken}, zap.NewNop()), gw
}

// do runs one request against the router and decodes the JSON response.
func do(t *testing.T, a *API, method, path, token string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error.Code
}

func TestMintTransferAndBalance(t *testing.T) {
	a, _ := newTestAPI(t)

	rec := do(t, a, http.MethodPost, "/v1/mint", testAdminToken,
		mintRequest{To: "alice", Amount: 1000}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mint status = %d, body %s", rec.Code, rec.Body.String())
	}

	var tx txView
	rec = do(t, a, http.MethodPost, "/v1/transfer", "",
		transferRequest{From: "alice", To: "bob", Amount: 300}, &tx)
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer status = %d, body %s", rec.Code, rec.Body.String())
	}
	if tx.Type != "TRANSFER" || tx.Amount != 300 || tx.Status != "CONFIRMED" {
		t.Errorf("transfer response = %+v", tx)
	}

	var balance query.Balance
	rec = do(t, a, http.MethodGet, "/v1/accounts/bob/balance", "", nil, &balance)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance status = %d", rec.Code)
	}
	if balance.Liquid != 300 || balance.Total != 300 {
		t.Errorf("bob balance = %+v, want liquid 300", balance)
	}
}

func TestMintRequiresAdminToken(t *testing.T) {
	a, _ := newTestAPI(t)

	for _, token := range []string{"", "wrong-token"} {
		rec := do(t, a, http.MethodPost, "/v1/mint", token,
			mintRequest{To: "alice", Amount: 100}, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rec.Code)
		}
		if code := errorCode(t, rec); code != "Unauthorized" {
			t.Errorf("token %q: code = %s, want Unauthorized", token, code)
		}
	}
}

func TestTransferErrorMapping(t *testing.T) {
	a, _ := newTestAPI(t)

	do(t, a, http.MethodPost, "/v1/mint", testAdminToken, mintRequest{To: "alice", Amount: 50}, nil)

	// Insufficient funds conflict.
	rec := do(t, a, http.MethodPost, "/v1/transfer", "",
		transferRequest{From: "alice", To: "bob", Amount: 100}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "InsufficientBalance" {
		t.Errorf("code = %s, want InsufficientBalance", code)
	}

	// Invalid amount.
	rec = do(t, a, http.MethodPost, "/v1/transfer", "",
		transferRequest{From: "alice", To: "bob", Amount: -5}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// Ambiguous recipient.
	rec = do(t, a, http.MethodPost, "/v1/transfer", "",
		transferRequest{From: "alice", Amount: 10}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/v1/transfer", bytes.NewBufferString("{broken"))
	rec2 := httptest.NewRecorder()
	a.Router().ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec2.Code)
	}
}

func TestBalanceNotFound(t *testing.T) {
	a, _ := newTestAPI(t)

	rec := do(t, a, http.MethodGet, "/v1/accounts/nobody/balance", "", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "AccountNotFound" {
		t.Errorf("code = %s, want AccountNotFound", code)
	}
}

func TestStakeUnstakeClaimFlow(t *testing.T) {
	a, gw := newTestAPI(t)
	ctx := context.Background()

	do(t, a, http.MethodPost, "/v1/mint", testAdminToken, mintRequest{To: "alice", Amount: 1000}, nil)

	rec := do(t, a, http.MethodPost, "/v1/stake", "", stakeRequest{Account: "alice", Amount: 400}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stake status = %d, body %s", rec.Code, rec.Body.String())
	}

	var grant grantView
	rec = do(t, a, http.MethodPost, "/v1/grants", testAdminToken,
		grantRequest{Account: "alice", Category: "SALE", Amount: 10, Reference: "sale-1"}, &grant)
	if rec.Code != http.StatusOK {
		t.Fatalf("grant status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !grant.Applied {
		t.Error("first grant not applied")
	}

	// Same reference replayed comes back applied=false, not an error.
	rec = do(t, a, http.MethodPost, "/v1/grants", testAdminToken,
		grantRequest{Account: "alice", Category: "SALE", Amount: 10, Reference: "sale-1"}, &grant)
	if rec.Code != http.StatusOK || grant.Applied {
		t.Errorf("replayed grant: status %d applied %v", rec.Code, grant.Applied)
	}

	var claim claimView
	rec = do(t, a, http.MethodPost, "/v1/claim", "", claimRequest{Account: "alice"}, &claim)
	if rec.Code != http.StatusOK {
		t.Fatalf("claim status = %d", rec.Code)
	}
	if claim.Total != 10 || claim.Grants != 1 {
		t.Errorf("claim = %+v, want total 10 from 1 grant", claim)
	}

	var unstake unstakeView
	rec = do(t, a, http.MethodPost, "/v1/unstake", "", stakeRequest{Account: "alice", Amount: 400}, &unstake)
	if rec.Code != http.StatusOK {
		t.Fatalf("unstake status = %d", rec.Code)
	}
	if unstake.Released != 400 || unstake.Pending != 0 {
		t.Errorf("unstake = %+v, want full release", unstake)
	}

	alice, err := gw.Resolver().Lookup(ctx, "alice")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if alice.LiquidBalance != 1010 {
		t.Errorf("final balance = %d, want 1010", alice.LiquidBalance)
	}
}

func TestSettlementEndpoint(t *testing.T) {
	a, _ := newTestAPI(t)

	var result settlementView
	rec := do(t, a, http.MethodPost, "/v1/settlements", testAdminToken,
		domain.SettlementEvent{
			AccountOrAddress:  "carol",
			Kind:              domain.SettlementKindReward,
			Category:          domain.RewardExhibition,
			Amount:            40,
			ExternalReference: "exh-1",
		}, &result)
	if rec.Code != http.StatusOK {
		t.Fatalf("settlement status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !result.Applied || result.GrantID == "" {
		t.Errorf("settlement = %+v, want applied grant", result)
	}

	var balance query.Balance
	do(t, a, http.MethodGet, "/v1/accounts/carol/balance", "", nil, &balance)
	if balance.Unclaimed != 40 {
		t.Errorf("unclaimed = %d, want 40", balance.Unclaimed)
	}
}

func TestTransactionsPaginationParams(t *testing.T) {
	a, _ := newTestAPI(t)

	do(t, a, http.MethodPost, "/v1/mint", testAdminToken, mintRequest{To: "alice", Amount: 100}, nil)
	for i := 0; i < 3; i++ {
		do(t, a, http.MethodPost, "/v1/transfer", "",
			transferRequest{From: "alice", To: "bob", Amount: int64(i + 1)}, nil)
	}

	var txs []txView
	rec := do(t, a, http.MethodGet, "/v1/accounts/alice/transactions?page=1&per_page=2", "", nil, &txs)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(txs) != 2 || txs[0].Amount != 3 {
		t.Errorf("page 1 = %+v, want 2 rows newest first", txs)
	}

	rec = do(t, a, http.MethodGet, "/v1/accounts/alice/transactions?page=abc", "", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad page param status = %d, want 400", rec.Code)
	}
}

func TestHoldersAndStatistics(t *testing.T) {
	a, _ := newTestAPI(t)

	do(t, a, http.MethodPost, "/v1/mint", testAdminToken, mintRequest{To: "alice", Amount: 750}, nil)
	do(t, a, http.MethodPost, "/v1/mint", testAdminToken, mintRequest{To: "bob", Amount: 250}, nil)

	var holders []holderView
	rec := do(t, a, http.MethodGet, "/v1/holders?top=5", "", nil, &holders)
	if rec.Code != http.StatusOK {
		t.Fatalf("holders status = %d", rec.Code)
	}
	if len(holders) != 2 || holders[0].ExternalID != "alice" || holders[0].Percent != "75.0000" {
		t.Errorf("holders = %+v", holders)
	}

	var stats statsView
	rec = do(t, a, http.MethodGet, "/v1/statistics", "", nil, &stats)
	if rec.Code != http.StatusOK {
		t.Fatalf("statistics status = %d", rec.Code)
	}
	if stats.CirculatingSupply != 1000 || stats.Holders != 2 {
		t.Errorf("stats = %+v, want supply 1000 across 2 holders", stats)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	a, _ := newTestAPI(t)

	do(t, a, http.MethodPost, "/v1/mint", testAdminToken, mintRequest{To: "alice", Amount: 500}, nil)

	rec := do(t, a, http.MethodGet, "/v1/verify", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated verify status = %d, want 401", rec.Code)
	}

	var report verifyReportView
	rec = do(t, a, http.MethodGet, "/v1/verify", testAdminToken, nil, &report)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d", rec.Code)
	}
	if !report.Match || report.TotalAccounts != 1 || report.ReplayedLiquid != 500 {
		t.Errorf("report = %+v, want clean single-account ledger", report)
	}

	var result verifyResultView
	rec = do(t, a, http.MethodGet, "/v1/verify/alice", testAdminToken, nil, &result)
	if rec.Code != http.StatusOK || !result.Match {
		t.Errorf("verify account: status %d result %+v", rec.Code, result)
	}
}

func TestHealthAndStatus(t *testing.T) {
	a, _ := newTestAPI(t)

	rec := do(t, a, http.MethodGet, "/health", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}

	var status statusResponse
	rec = do(t, a, http.MethodGet, "/status", "", nil, &status)
	if rec.Code != http.StatusOK || status.Status != "running" {
		t.Errorf("status endpoint: %d %+v", rec.Code, status)
	}

	rec = do(t, a, http.MethodGet, "/metrics", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestTransferByAddressCreatesAccount(t *testing.T) {
	a, _ := newTestAPI(t)

	// Base58 encoding of the ed25519 generator point, a valid chain address.
	const address = "6x5SYnLroiN7WYq8NQYU9KHcH4YjpBbwpUfVu3EB7ieH"

	do(t, a, http.MethodPost, "/v1/mint", testAdminToken, mintRequest{To: "alice", Amount: 100}, nil)

	var tx txView
	rec := do(t, a, http.MethodPost, "/v1/transfer", "",
		transferRequest{From: "alice", ToAddress: address, Amount: 30}, &tx)
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer status = %d, body %s", rec.Code, rec.Body.String())
	}
	if tx.ToAddress == nil || *tx.ToAddress != address {
		t.Errorf("to_address = %v, want %s", tx.ToAddress, address)
	}

	var balance query.Balance
	rec = do(t, a, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/balance", address), "", nil, &balance)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance by address status = %d", rec.Code)
	}
	if balance.Liquid != 30 {
		t.Errorf("address balance = %d, want 30", balance.Liquid)
	}
}
