package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/ledger"
)

type transferRequest struct {
	From      string `json:"from"`
	To        string `json:"to,omitempty"`
	ToAddress string `json:"to_address,omitempty"`
	Amount    int64  `json:"amount"`
}

// handleTransfer moves tokens between two accounts. The sender is a platform
// user id; the recipient is either a platform user id or a chain address, in
// which case the account is created lazily.
func (a *API) handleTransfer(w http.ResponseWriter, r *http.Request) error {
	var req transferRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	if (req.To == "") == (req.ToAddress == "") {
		return badRequest(errors.New("exactly one of to and to_address is required"))
	}

	resolver := a.gateway.Resolver()
	from, err := resolver.Resolve(r.Context(), ledger.Identity{ExternalID: req.From})
	if err != nil {
		return err
	}

	var to *domain.Account
	var toAddress *string
	if req.ToAddress != "" {
		to, err = resolver.ResolveAddress(r.Context(), req.ToAddress)
		toAddress = &req.ToAddress
	} else {
		to, err = resolver.Resolve(r.Context(), ledger.Identity{ExternalID: req.To})
	}
	if err != nil {
		return err
	}

	tx, err := a.gateway.Transfer(r.Context(), from.ID, to.ID, toAddress, req.Amount)
	if err != nil {
		return err
	}
	return writeJSON(w, newTxView(tx))
}

type stakeRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

func (a *API) handleStake(w http.ResponseWriter, r *http.Request) error {
	var req stakeRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}

	acc, err := a.gateway.Resolver().Resolve(r.Context(), ledger.Identity{ExternalID: req.Account})
	if err != nil {
		return err
	}
	tx, err := a.gateway.Stake(r.Context(), acc.ID, req.Amount)
	if err != nil {
		return err
	}
	return writeJSON(w, newTxView(tx))
}

func (a *API) handleUnstake(w http.ResponseWriter, r *http.Request) error {
	var req stakeRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}

	acc, err := a.gateway.Resolver().Resolve(r.Context(), ledger.Identity{ExternalID: req.Account})
	if err != nil {
		return err
	}
	result, err := a.gateway.Unstake(r.Context(), acc.ID, req.Amount)
	if err != nil {
		return err
	}
	return writeJSON(w, newUnstakeView(result))
}

type claimRequest struct {
	Account string `json:"account"`
}

func (a *API) handleClaim(w http.ResponseWriter, r *http.Request) error {
	var req claimRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}

	acc, err := a.gateway.Resolver().Resolve(r.Context(), ledger.Identity{ExternalID: req.Account})
	if err != nil {
		return err
	}
	result, err := a.gateway.Claim(r.Context(), acc.ID)
	if err != nil {
		return err
	}
	return writeJSON(w, newClaimView(result))
}

type mintRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

func (a *API) handleMint(w http.ResponseWriter, r *http.Request) error {
	var req mintRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}

	acc, err := a.gateway.Resolver().Resolve(r.Context(), ledger.Identity{ExternalID: req.To})
	if err != nil {
		return err
	}
	tx, err := a.gateway.Mint(r.Context(), acc.ID, req.Amount)
	if err != nil {
		return err
	}
	return writeJSON(w, newTxView(tx))
}

type grantRequest struct {
	Account   string `json:"account"`
	Category  string `json:"category"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

func (a *API) handleGrant(w http.ResponseWriter, r *http.Request) error {
	var req grantRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}

	acc, err := a.gateway.Resolver().Resolve(r.Context(), ledger.Identity{ExternalID: req.Account})
	if err != nil {
		return err
	}
	result, err := a.gateway.Grant(r.Context(), acc.ID, domain.RewardCategory(req.Category), req.Amount, req.Reference)
	if err != nil {
		return err
	}
	return writeJSON(w, newGrantView(result))
}

// handleSettlement applies one settlement event posted directly instead of
// arriving over the feed. Replayed references come back applied=false.
func (a *API) handleSettlement(w http.ResponseWriter, r *http.Request) error {
	var ev domain.SettlementEvent
	if err := parseJSON(r.Body, &ev); err != nil {
		return badRequest(err)
	}

	result, err := a.gateway.ApplySettlement(r.Context(), ev)
	if err != nil {
		return err
	}
	return writeJSON(w, settlementView{
		Applied: result.Applied,
		TxID:    result.TxID,
		GrantID: result.GrantID,
	})
}

type confirmRequest struct {
	Success bool `json:"success"`
}

func (a *API) handleConfirm(w http.ResponseWriter, r *http.Request) error {
	var req confirmRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}

	txID := mux.Vars(r)["id"]
	if err := a.gateway.ConfirmTransaction(r.Context(), txID, req.Success); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"id": txID, "status": "applied"})
}
