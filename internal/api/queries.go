package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"tola-ledger/internal/verification"
)

func (a *API) handleBalance(w http.ResponseWriter, r *http.Request) error {
	balance, err := a.queries.Balance(r.Context(), mux.Vars(r)["ref"])
	if err != nil {
		return err
	}
	return writeJSON(w, balance)
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) error {
	page, err := intParam(r, "page", 1)
	if err != nil {
		return err
	}
	perPage, err := intParam(r, "per_page", 0)
	if err != nil {
		return err
	}

	txs, err := a.queries.Transactions(r.Context(), mux.Vars(r)["ref"], page, perPage)
	if err != nil {
		return err
	}
	return writeJSON(w, newTxViews(txs))
}

func (a *API) handleHolders(w http.ResponseWriter, r *http.Request) error {
	top, err := intParam(r, "top", 0)
	if err != nil {
		return err
	}

	holders, err := a.queries.Holders(r.Context(), top)
	if err != nil {
		return err
	}
	return writeJSON(w, newHolderViews(holders))
}

func (a *API) handleStatistics(w http.ResponseWriter, r *http.Request) error {
	stats, err := a.queries.Statistics(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, newStatsView(stats))
}

// handleStatisticsHistory returns supply snapshots for [from, to], given as
// Unix seconds. The window defaults to the last 24 hours.
func (a *API) handleStatisticsHistory(w http.ResponseWriter, r *http.Request) error {
	now := time.Now()
	to, err := timeParam(r, "to", now)
	if err != nil {
		return err
	}
	from, err := timeParam(r, "from", to.Add(-24*time.Hour))
	if err != nil {
		return err
	}

	snaps, err := a.queries.StatisticsHistory(r.Context(), from, to)
	if err != nil {
		return err
	}
	return writeJSON(w, newSnapshotViews(snaps))
}

// divergenceView flattens a field mismatch for the wire.
type divergenceView struct {
	Field    string      `json:"field"`
	Expected interface{} `json:"expected"`
	Actual   interface{} `json:"actual"`
}

type verifyResultView struct {
	AccountID   string           `json:"account_id"`
	Match       bool             `json:"match"`
	Divergences []divergenceView `json:"divergences,omitempty"`
}

type verifyReportView struct {
	Match             bool               `json:"match"`
	TotalAccounts     int                `json:"total_accounts"`
	MatchedAccounts   int                `json:"matched_accounts"`
	DivergentAccounts int                `json:"divergent_accounts"`
	ReplayedLiquid    int64              `json:"replayed_liquid"`
	ReplayedStaked    int64              `json:"replayed_staked"`
	Divergent         []verifyResultView `json:"divergent,omitempty"`
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) error {
	report, err := a.verifier.VerifyAll(r.Context())
	if err != nil {
		return err
	}

	view := verifyReportView{
		Match:             report.Match(),
		TotalAccounts:     report.TotalAccounts,
		MatchedAccounts:   report.MatchedAccounts,
		DivergentAccounts: report.DivergentAccounts,
		ReplayedLiquid:    report.ReplayedLiquid,
		ReplayedStaked:    report.ReplayedStaked,
	}
	// Only divergent rows go on the wire; matched rows carry no information.
	for _, res := range report.Results {
		if res.Match {
			continue
		}
		view.Divergent = append(view.Divergent, newVerifyResultView(res))
	}
	return writeJSON(w, view)
}

func (a *API) handleVerifyAccount(w http.ResponseWriter, r *http.Request) error {
	acc, err := a.gateway.Resolver().Lookup(r.Context(), mux.Vars(r)["ref"])
	if err != nil {
		return err
	}

	result, err := a.verifier.VerifyAccount(r.Context(), acc.ID)
	if err != nil {
		return err
	}
	return writeJSON(w, newVerifyResultView(*result))
}

func newVerifyResultView(res verification.VerificationResult) verifyResultView {
	view := verifyResultView{AccountID: res.AccountID, Match: res.Match}
	for _, d := range res.Divergences {
		view.Divergences = append(view.Divergences, divergenceView{
			Field:    d.Field,
			Expected: d.Expected,
			Actual:   d.Actual,
		})
	}
	return view
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(fmt.Errorf("%s must be an integer", name))
	}
	return v, nil
}

// timeParam parses an optional Unix-seconds query parameter.
func timeParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, badRequest(fmt.Errorf("%s must be a unix timestamp", name))
	}
	return time.Unix(sec, 0), nil
}
