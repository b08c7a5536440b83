// Package api exposes the ledger over HTTP: command endpoints backed by the
// gateway, read endpoints backed by the query service, and the operational
// surface (health, status, metrics). Privileged endpoints sit behind a
// bearer token.
package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tola-ledger/internal/ledger"
	"tola-ledger/internal/observability"
	"tola-ledger/internal/query"
	"tola-ledger/internal/verification"
)

// Config configures the HTTP API.
type Config struct {
	// AdminToken guards mint, grant, settlement and verification endpoints.
	// When empty those endpoints reject every request.
	AdminToken string
}

// API is the HTTP surface of the ledger.
type API struct {
	gateway  *ledger.Gateway
	queries  *query.Service
	verifier verification.Verifier
	config   Config
	logger   *zap.Logger

	startedAt time.Time
}

// New creates the API. verifier may be nil; /v1/verify then responds 404.
func New(gateway *ledger.Gateway, queries *query.Service, verifier verification.Verifier, config Config, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		gateway:   gateway,
		queries:   queries,
		verifier:  verifier,
		config:    config,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Router builds the route table.
func (a *API) Router() *mux.Router {
	root := mux.NewRouter()

	root.Path("/health").Methods(http.MethodGet).HandlerFunc(a.handleHealth)
	root.Path("/status").Methods(http.MethodGet).HandlerFunc(wrap(a.logger, a.handleStatus))
	root.Path("/metrics").Methods(http.MethodGet).Handler(observability.Handler())

	v1 := root.PathPrefix("/v1").Subrouter()

	// Commands.
	v1.Path("/transfer").Methods(http.MethodPost).HandlerFunc(wrap(a.logger, a.handleTransfer))
	v1.Path("/stake").Methods(http.MethodPost).HandlerFunc(wrap(a.logger, a.handleStake))
	v1.Path("/unstake").Methods(http.MethodPost).HandlerFunc(wrap(a.logger, a.handleUnstake))
	v1.Path("/claim").Methods(http.MethodPost).HandlerFunc(wrap(a.logger, a.handleClaim))

	// Privileged commands.
	v1.Path("/mint").Methods(http.MethodPost).HandlerFunc(wrap(a.logger, a.requireAdmin(a.handleMint)))
	v1.Path("/grants").Methods(http.MethodPost).HandlerFunc(wrap(a.logger, a.requireAdmin(a.handleGrant)))
	v1.Path("/settlements").Methods(http.MethodPost).HandlerFunc(wrap(a.logger, a.requireAdmin(a.handleSettlement)))
	v1.Path("/transactions/{id}/confirm").Methods(http.MethodPost).HandlerFunc(wrap(a.logger, a.requireAdmin(a.handleConfirm)))

	// Reads.
	v1.Path("/accounts/{ref}/balance").Methods(http.MethodGet).HandlerFunc(wrap(a.logger, a.handleBalance))
	v1.Path("/accounts/{ref}/transactions").Methods(http.MethodGet).HandlerFunc(wrap(a.logger, a.handleTransactions))
	v1.Path("/holders").Methods(http.MethodGet).HandlerFunc(wrap(a.logger, a.handleHolders))
	v1.Path("/statistics").Methods(http.MethodGet).HandlerFunc(wrap(a.logger, a.handleStatistics))
	v1.Path("/statistics/history").Methods(http.MethodGet).HandlerFunc(wrap(a.logger, a.handleStatisticsHistory))

	if a.verifier != nil {
		v1.Path("/verify").Methods(http.MethodGet).HandlerFunc(wrap(a.logger, a.requireAdmin(a.handleVerify)))
		v1.Path("/verify/{ref}").Methods(http.MethodGet).HandlerFunc(wrap(a.logger, a.requireAdmin(a.handleVerifyAccount)))
	}

	return root
}

// requireAdmin gates f behind the configured bearer token.
func (a *API) requireAdmin(f HandlerFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		token := bearerToken(r)
		if a.config.AdminToken == "" || token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(a.config.AdminToken)) != 1 {
			return fmt.Errorf("%w: admin token required", ledger.ErrUnauthorized)
		}
		return f(w, r)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// statusResponse is the JSON response for /status.
type statusResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, statusResponse{
		Status: "running",
		Uptime: time.Since(a.startedAt).Truncate(time.Second).String(),
	})
}
