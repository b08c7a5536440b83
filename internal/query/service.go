// Package query implements the read side of the ledger. All reads run as
// plain snapshot queries outside any unit of work; they never block or get
// blocked by commands.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/ledger"
	"tola-ledger/internal/storage"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
	defaultTopN    = 10
	maxTopN        = 100
)

// Balance is the full balance view of one account.
type Balance struct {
	AccountID  string  `json:"account_id"`
	ExternalID string  `json:"external_id"`
	Address    *string `json:"address,omitempty"`
	Liquid     int64   `json:"liquid"`
	Staked     int64   `json:"staked"`
	Unclaimed  int64   `json:"unclaimed"`
	Total      int64   `json:"total"`

	// EstimatedYield is a display-only projection at the configured annual
	// rate; it is never credited.
	EstimatedYield string `json:"estimated_yield"`
}

// Service answers presentation-layer queries.
type Service struct {
	accounts  storage.AccountStore
	stakes    storage.StakeStore
	rewards   storage.RewardStore
	txs       storage.TransactionStore
	stats     storage.StatsStore
	snapshots storage.SupplySnapshotStore
	resolver  *ledger.Resolver
	logger    *zap.Logger

	yieldRate decimal.Decimal
	now       func() time.Time
}

// NewService creates a query Service. snapshots may be nil when no analytics
// store is configured; StatisticsHistory then reports unavailable.
func NewService(
	accounts storage.AccountStore,
	stakes storage.StakeStore,
	rewards storage.RewardStore,
	txs storage.TransactionStore,
	stats storage.StatsStore,
	snapshots storage.SupplySnapshotStore,
	resolver *ledger.Resolver,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		accounts:  accounts,
		stakes:    stakes,
		rewards:   rewards,
		txs:       txs,
		stats:     stats,
		snapshots: snapshots,
		resolver:  resolver,
		logger:    logger,
		yieldRate: decimal.Zero,
		now:       time.Now,
	}
}

// WithYieldRate sets the annual rate used for the display-only yield figure.
func (s *Service) WithYieldRate(rate decimal.Decimal) *Service {
	s.yieldRate = rate
	return s
}

// Balance returns liquid, staked and unclaimed totals for the account
// referenced by id, external id or address.
func (s *Service) Balance(ctx context.Context, ref string) (*Balance, error) {
	acc, err := s.resolver.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}

	staked, err := s.stakes.StakedTotal(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("staked total: %w", err)
	}
	unclaimed, err := s.rewards.UnclaimedTotal(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("unclaimed total: %w", err)
	}

	yield := decimal.Zero
	if !s.yieldRate.IsZero() {
		positions, err := s.stakes.PositionsByAccount(ctx, acc.ID)
		if err != nil {
			return nil, fmt.Errorf("positions: %w", err)
		}
		yield = ledger.EstimateYield(positions, s.yieldRate, s.now())
	}

	return &Balance{
		AccountID:      acc.ID,
		ExternalID:     acc.ExternalID,
		Address:        acc.Address,
		Liquid:         acc.LiquidBalance,
		Staked:         staked,
		Unclaimed:      unclaimed,
		Total:          acc.LiquidBalance + staked + unclaimed,
		EstimatedYield: yield.StringFixed(2),
	}, nil
}

// Transactions returns the account's transaction history, newest first.
// page starts at 1; perPage is clamped to [1, 100] with a default of 20.
func (s *Service) Transactions(ctx context.Context, ref string, page, perPage int) ([]*domain.Transaction, error) {
	acc, err := s.resolver.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	txs, err := s.txs.ListByAccount(ctx, acc.ID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Holders returns the top-n holders with their share of circulating supply.
func (s *Service) Holders(ctx context.Context, n int) ([]*domain.Holder, error) {
	if n < 1 {
		n = defaultTopN
	}
	if n > maxTopN {
		n = maxTopN
	}

	stats, err := s.stats.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	holders, err := s.stats.TopHolders(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("top holders: %w", err)
	}

	circulating := decimal.NewFromInt(stats.CirculatingSupply)
	hundred := decimal.NewFromInt(100)
	for _, h := range holders {
		if stats.CirculatingSupply == 0 {
			h.Percent = decimal.Zero.StringFixed(4)
			continue
		}
		h.Percent = decimal.NewFromInt(h.Total()).
			Mul(hundred).
			Div(circulating).
			StringFixed(4)
	}
	return holders, nil
}

// Statistics returns ledger-wide aggregates.
func (s *Service) Statistics(ctx context.Context) (*domain.LedgerStats, error) {
	return s.stats.Statistics(ctx)
}

// StatisticsHistory returns the supply snapshots taken within [from, to].
func (s *Service) StatisticsHistory(ctx context.Context, from, to time.Time) ([]*domain.SupplySnapshot, error) {
	if s.snapshots == nil {
		return nil, fmt.Errorf("snapshot store not configured")
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid time range: %s after %s", from, to)
	}
	return s.snapshots.GetByTimeRange(ctx, from.UnixMilli(), to.UnixMilli())
}
