package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/events"
	"tola-ledger/internal/idhash"
	"tola-ledger/internal/observability"
	"tola-ledger/internal/storage"
)

// GrantResult is the outcome of a reward grant. Applied is false when the
// grant's settlement reference was seen before; the original grant stands and
// the duplicate is dropped without error.
type GrantResult struct {
	Grant   *domain.RewardGrant
	Applied bool
}

// ClaimResult is the outcome of a claim. A claim with nothing to collect
// succeeds with Total 0 and no transaction.
type ClaimResult struct {
	Total  int64
	Grants int
	Tx     *domain.Transaction
}

// Grant records one reward accrual for a qualifying activity. Grants do not
// touch the liquid balance until claimed, and insert without locking the
// account row, so concurrent grants to the same account never contend.
//
// A non-empty externalReference makes the grant idempotent: the grant id and
// reference hash are derived from it, and replays come back Applied=false.
func (g *Gateway) Grant(ctx context.Context, accountID string, category domain.RewardCategory, amount int64, externalReference string) (*GrantResult, error) {
	if amount <= 0 {
		return nil, g.fail("grant", fmt.Errorf("%w: %d", ErrInvalidAmount, amount))
	}
	if !domain.ValidRewardCategory(category) {
		return nil, g.fail("grant", fmt.Errorf("%w: unknown reward category %q", ErrInvalidAmount, category))
	}

	if _, err := g.accounts.GetByID(ctx, accountID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, g.fail("grant", fmt.Errorf("%w: %s", ErrAccountNotFound, accountID))
		}
		return nil, g.fail("grant", fmt.Errorf("load account: %w", err))
	}

	grant := &domain.RewardGrant{
		AccountID: accountID,
		Category:  category,
		Amount:    amount,
		CreatedAt: g.now(),
	}
	if externalReference != "" {
		grant.ID = idhash.ComputeGrantID(accountID, category, externalReference)
		ref := externalReference
		grant.ReferenceHash = &ref
	} else {
		grant.ID = g.newID()
	}

	duplicate := false
	err := g.execute(ctx, "grant", func(tx storage.LedgerTx) error {
		err := tx.InsertGrant(ctx, grant)
		if errors.Is(err, storage.ErrDuplicateKey) {
			duplicate = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		return &GrantResult{Grant: grant, Applied: false}, nil
	}

	g.publish(events.EventGrant, grant.ID, accountID, amount)
	g.logger.Info("reward granted",
		zap.String("grant_id", grant.ID),
		zap.String("account", accountID),
		zap.String("category", string(category)),
		zap.Int64("amount", amount))
	return &GrantResult{Grant: grant, Applied: true}, nil
}

// Claim collects every unclaimed grant of the account in one step: the grants
// are marked claimed, their sum is credited to the liquid balance, and one
// confirmed CLAIM entry is appended. Grants and account row are locked
// together, so two concurrent claims credit the total exactly once.
func (g *Gateway) Claim(ctx context.Context, accountID string) (*ClaimResult, error) {
	var result *ClaimResult
	err := g.execute(ctx, "claim", func(tx storage.LedgerTx) error {
		accs, err := lockAccounts(ctx, tx, accountID)
		if err != nil {
			return err
		}
		acc := accs[accountID]

		grants, err := tx.UnclaimedGrantsForUpdate(ctx, accountID)
		if err != nil {
			return fmt.Errorf("lock grants: %w", err)
		}
		if len(grants) == 0 {
			result = &ClaimResult{}
			return nil
		}

		var total int64
		ids := make([]string, 0, len(grants))
		for _, grant := range grants {
			total += grant.Amount
			ids = append(ids, grant.ID)
		}

		now := g.now()
		if err := tx.MarkGrantsClaimed(ctx, ids, now); err != nil {
			return fmt.Errorf("mark claimed: %w", err)
		}
		if err := tx.SetLiquidBalance(ctx, acc.ID, acc.LiquidBalance+total, now); err != nil {
			return fmt.Errorf("credit claim: %w", err)
		}

		t := g.newTransaction(domain.TxClaim, &acc.ID, nil, nil, total, domain.TxStatusConfirmed, now)
		if err := tx.AppendTransaction(ctx, t); err != nil {
			return fmt.Errorf("append claim: %w", err)
		}
		result = &ClaimResult{Total: total, Grants: len(grants), Tx: t}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Tx != nil {
		observability.DefaultMetrics.ClaimedTotal.Add(float64(result.Total))
		g.publish(events.EventClaim, result.Tx.ID, accountID, result.Total)
		g.logger.Info("rewards claimed",
			zap.String("tx_id", result.Tx.ID),
			zap.String("account", accountID),
			zap.Int64("total", result.Total),
			zap.Int("grants", result.Grants))
	}
	return result, nil
}
