package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/observability"
)

// ArchiveInactive archives active accounts whose last activity predates
// cutoff, at most limit per call. Balances and history are untouched and any
// later activity revives the account through the resolver.
func (g *Gateway) ArchiveInactive(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	accounts, err := g.accounts.ListInactiveSince(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list inactive accounts: %w", err)
	}

	archived := 0
	for _, acc := range accounts {
		if err := g.accounts.SetStatus(ctx, acc.ID, domain.AccountStatusArchived); err != nil {
			return archived, fmt.Errorf("archive account %s: %w", acc.ID, err)
		}
		archived++
		observability.DefaultMetrics.AccountsArchived.Inc()
	}

	if archived > 0 {
		g.logger.Info("inactive accounts archived",
			zap.Int("count", archived),
			zap.Time("cutoff", cutoff))
	}
	return archived, nil
}
