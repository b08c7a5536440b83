package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/events"
	"tola-ledger/internal/observability"
	"tola-ledger/internal/storage"
	"tola-ledger/internal/tokenaddr"
)

// SettlementResult is the outcome of applying one settlement event. Applied
// is false for replays of an already-applied reference; the event is dropped
// without error so the feed can acknowledge it.
type SettlementResult struct {
	Applied bool
	TxID    string
	GrantID string
}

// ApplySettlement translates one external settlement event into ledger state.
// A REWARD event becomes one reward grant; a CONFIRMATION event confirms the
// pending transaction carrying its reference, or records a new confirmed
// inbound movement. The external reference deduplicates in both cases.
func (g *Gateway) ApplySettlement(ctx context.Context, ev domain.SettlementEvent) (*SettlementResult, error) {
	if ev.ExternalReference == "" {
		observability.RecordSettlementRejected("missing_reference")
		return nil, g.fail("apply_settlement", fmt.Errorf("%w: settlement event without external reference", ErrInvalidAmount))
	}
	if ev.Amount <= 0 {
		observability.RecordSettlementRejected("invalid_amount")
		return nil, g.fail("apply_settlement", fmt.Errorf("%w: %d", ErrInvalidAmount, ev.Amount))
	}

	account, err := g.resolveSettlementAccount(ctx, ev.AccountOrAddress)
	if err != nil {
		observability.RecordSettlementRejected("unresolved_account")
		return nil, err
	}

	switch ev.Kind {
	case domain.SettlementKindReward:
		return g.applyRewardSettlement(ctx, account, ev)
	case domain.SettlementKindConfirmation:
		return g.applyConfirmationSettlement(ctx, account, ev)
	default:
		observability.RecordSettlementRejected("unknown_kind")
		return nil, g.fail("apply_settlement", fmt.Errorf("%w: unknown settlement kind %q", ErrInvalidAmount, ev.Kind))
	}
}

// resolveSettlementAccount treats the reference as a chain address when it
// validates as one, and as a platform external id otherwise.
func (g *Gateway) resolveSettlementAccount(ctx context.Context, ref string) (*domain.Account, error) {
	if tokenaddr.Validate(ref) == nil {
		return g.resolver.ResolveAddress(ctx, ref)
	}
	return g.resolver.Resolve(ctx, Identity{ExternalID: ref})
}

func (g *Gateway) applyRewardSettlement(ctx context.Context, account *domain.Account, ev domain.SettlementEvent) (*SettlementResult, error) {
	res, err := g.Grant(ctx, account.ID, ev.Category, ev.Amount, ev.ExternalReference)
	if err != nil {
		return nil, err
	}

	if res.Applied {
		observability.RecordSettlementApplied(string(domain.SettlementKindReward))
	} else {
		observability.RecordSettlementDuplicate()
		g.logger.Debug("duplicate reward settlement dropped",
			zap.String("reference", ev.ExternalReference))
	}
	return &SettlementResult{Applied: res.Applied, GrantID: res.Grant.ID}, nil
}

// releaseUnstakeTx closes the UNSTAKING positions held by a pending unstake
// entry and credits their remainder back to the owning account.
func (g *Gateway) releaseUnstakeTx(ctx context.Context, tx storage.LedgerTx, t *domain.Transaction) error {
	positions, err := tx.PositionsByUnstakeTxForUpdate(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("lock unstake positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	accountID := positions[0].AccountID
	acc, err := tx.AccountForUpdate(ctx, accountID)
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}

	now := g.now()
	var total int64
	for _, p := range positions {
		total += p.Remaining
		p.Remaining = 0
		p.Status = domain.StakeStatusUnstaked
		closed := now
		p.ClosedAt = &closed
		if err := tx.UpdateStakePosition(ctx, p); err != nil {
			return fmt.Errorf("close position %s: %w", p.ID, err)
		}
	}
	if err := tx.SetLiquidBalance(ctx, acc.ID, acc.LiquidBalance+total, now); err != nil {
		return fmt.Errorf("credit release: %w", err)
	}
	return nil
}

func (g *Gateway) applyConfirmationSettlement(ctx context.Context, account *domain.Account, ev domain.SettlementEvent) (*SettlementResult, error) {
	txType := ev.TxType
	if txType == "" {
		txType = domain.TxTransfer
	}
	// New confirmed movements can only be external inflows; the other types
	// exist solely as pending entries this path confirms.
	if txType != domain.TxTransfer && txType != domain.TxMint && txType != domain.TxUnstake {
		observability.RecordSettlementRejected("unsupported_tx_type")
		return nil, g.fail("apply_settlement", fmt.Errorf("%w: unsupported settlement tx type %q", ErrInvalidAmount, txType))
	}

	applied := false
	txID := ""
	err := g.execute(ctx, "apply_settlement", func(tx storage.LedgerTx) error {
		applied, txID = false, ""

		existing, err := tx.TransactionByReference(ctx, ev.ExternalReference)
		if err == nil {
			txID = existing.ID
			if existing.Status != domain.TxStatusPending {
				return nil // replay of a settled reference
			}
			if existing.Type == domain.TxUnstake {
				// Confirming an unstake ahead of its cooldown releases the
				// held positions with it, keeping balances and log in step.
				if err := g.releaseUnstakeTx(ctx, tx, existing); err != nil {
					return err
				}
			}
			if err := tx.SetTransactionStatus(ctx, existing.ID, domain.TxStatusConfirmed); err != nil {
				return fmt.Errorf("confirm transaction: %w", err)
			}
			applied = true
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("lookup reference: %w", err)
		}

		if txType == domain.TxUnstake {
			// An unstake confirmation must refer to a pending entry.
			return fmt.Errorf("%w: no pending transaction for reference %s", ErrTransactionNotFound, ev.ExternalReference)
		}

		acc, err := tx.AccountForUpdate(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		now := g.now()
		if err := tx.SetLiquidBalance(ctx, acc.ID, acc.LiquidBalance+ev.Amount, now); err != nil {
			return fmt.Errorf("credit settlement: %w", err)
		}

		ref := ev.ExternalReference
		t := &domain.Transaction{
			ID:            g.newID(),
			Type:          txType,
			ToAccountID:   &acc.ID,
			Amount:        ev.Amount,
			Status:        domain.TxStatusConfirmed,
			ReferenceHash: &ref,
			CreatedAt:     now,
		}
		if err := tx.AppendTransaction(ctx, t); err != nil {
			return fmt.Errorf("append settlement: %w", err)
		}
		txID = t.ID
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		observability.RecordSettlementApplied(string(domain.SettlementKindConfirmation))
		g.publish(events.EventTransfer, txID, account.ID, ev.Amount)
	} else {
		observability.RecordSettlementDuplicate()
		g.logger.Debug("duplicate confirmation settlement dropped",
			zap.String("reference", ev.ExternalReference))
	}
	return &SettlementResult{Applied: applied, TxID: txID}, nil
}
