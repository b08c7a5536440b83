package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/events"
	"tola-ledger/internal/observability"
	"tola-ledger/internal/storage"
)

// ErrNotPending is returned when a status transition targets a transaction
// that already reached a terminal status.
var ErrNotPending = errors.New("transaction is not pending")

// UnstakeResult describes the outcome of an unstake command.
type UnstakeResult struct {
	Tx *domain.Transaction

	// Released is the amount credited back to the liquid balance immediately
	// (always the full amount when no cooldown is configured).
	Released int64

	// Pending is the amount held in cooldown; it unlocks at UnlockAt and is
	// credited by the release sweeper.
	Pending  int64
	UnlockAt *time.Time
}

// Stake locks amount from the liquid balance into a new stake position and
// appends one confirmed STAKE entry.
func (g *Gateway) Stake(ctx context.Context, accountID string, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, g.fail("stake", fmt.Errorf("%w: %d", ErrInvalidAmount, amount))
	}

	var result *domain.Transaction
	err := g.execute(ctx, "stake", func(tx storage.LedgerTx) error {
		accs, err := lockAccounts(ctx, tx, accountID)
		if err != nil {
			return err
		}
		acc := accs[accountID]

		if acc.LiquidBalance < amount {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, acc.LiquidBalance, amount)
		}

		now := g.now()
		if err := tx.SetLiquidBalance(ctx, acc.ID, acc.LiquidBalance-amount, now); err != nil {
			return fmt.Errorf("debit stake: %w", err)
		}

		position := &domain.StakePosition{
			ID:        g.newID(),
			AccountID: acc.ID,
			Amount:    amount,
			Remaining: amount,
			Status:    domain.StakeStatusStaked,
			OpenedAt:  now,
		}
		if err := tx.InsertStakePosition(ctx, position); err != nil {
			return fmt.Errorf("insert position: %w", err)
		}

		t := g.newTransaction(domain.TxStake, &acc.ID, nil, nil, amount, domain.TxStatusConfirmed, now)
		if err := tx.AppendTransaction(ctx, t); err != nil {
			return fmt.Errorf("append stake: %w", err)
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.publish(events.EventStake, result.ID, accountID, amount)
	g.logger.Info("stake executed",
		zap.String("tx_id", result.ID),
		zap.String("account", accountID),
		zap.Int64("amount", amount))
	return result, nil
}

// Unstake releases amount from the account's stake positions, consuming them
// oldest first. Positions are only partially consumed when the amount does
// not line up with position boundaries; the original staked amounts stay
// recorded.
//
// With no cooldown the funds are credited back immediately and the UNSTAKE
// entry is confirmed. With a cooldown the consumed portions move to UNSTAKING,
// the entry stays pending and ReleaseUnstaked finishes the job after the
// window expires.
func (g *Gateway) Unstake(ctx context.Context, accountID string, amount int64) (*UnstakeResult, error) {
	if amount <= 0 {
		return nil, g.fail("unstake", fmt.Errorf("%w: %d", ErrInvalidAmount, amount))
	}

	var result *UnstakeResult
	err := g.execute(ctx, "unstake", func(tx storage.LedgerTx) error {
		accs, err := lockAccounts(ctx, tx, accountID)
		if err != nil {
			return err
		}
		acc := accs[accountID]

		positions, err := tx.OpenPositionsForUpdate(ctx, accountID)
		if err != nil {
			return fmt.Errorf("lock positions: %w", err)
		}

		var staked int64
		for _, p := range positions {
			staked += p.Remaining
		}
		if staked < amount {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientStaked, staked, amount)
		}

		now := g.now()
		status := domain.TxStatusConfirmed
		var unlockAt *time.Time
		if g.cooldown > 0 {
			status = domain.TxStatusPending
			u := now.Add(g.cooldown)
			unlockAt = &u
		}

		t := g.newTransaction(domain.TxUnstake, &acc.ID, nil, nil, amount, status, now)
		if err := tx.AppendTransaction(ctx, t); err != nil {
			return fmt.Errorf("append unstake: %w", err)
		}

		need := amount
		for _, p := range positions {
			if need == 0 {
				break
			}
			take := p.Remaining
			if take > need {
				take = need
			}

			switch {
			case g.cooldown == 0:
				p.Remaining -= take
				if p.Remaining == 0 {
					p.Status = domain.StakeStatusUnstaked
					closed := now
					p.ClosedAt = &closed
				}
				if err := tx.UpdateStakePosition(ctx, p); err != nil {
					return fmt.Errorf("update position: %w", err)
				}
			case take == p.Remaining:
				p.Status = domain.StakeStatusUnstaking
				p.UnlockAt = unlockAt
				p.UnstakeTxID = &t.ID
				if err := tx.UpdateStakePosition(ctx, p); err != nil {
					return fmt.Errorf("update position: %w", err)
				}
			default:
				// Partial consume under cooldown: split the locked part off
				// into its own UNSTAKING position so the rest stays STAKED.
				p.Remaining -= take
				if err := tx.UpdateStakePosition(ctx, p); err != nil {
					return fmt.Errorf("update position: %w", err)
				}
				split := &domain.StakePosition{
					ID:          g.newID(),
					AccountID:   acc.ID,
					Amount:      take,
					Remaining:   take,
					Status:      domain.StakeStatusUnstaking,
					OpenedAt:    p.OpenedAt,
					UnlockAt:    unlockAt,
					UnstakeTxID: &t.ID,
				}
				if err := tx.InsertStakePosition(ctx, split); err != nil {
					return fmt.Errorf("insert split position: %w", err)
				}
			}
			need -= take
		}

		balance := acc.LiquidBalance
		if g.cooldown == 0 {
			balance += amount
		}
		if err := tx.SetLiquidBalance(ctx, acc.ID, balance, now); err != nil {
			return fmt.Errorf("credit unstake: %w", err)
		}

		result = &UnstakeResult{Tx: t, UnlockAt: unlockAt}
		if g.cooldown == 0 {
			result.Released = amount
		} else {
			result.Pending = amount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Released > 0 {
		g.publish(events.EventUnstakeReleased, result.Tx.ID, accountID, result.Released)
	} else {
		g.publish(events.EventUnstakeRequested, result.Tx.ID, accountID, result.Pending)
	}
	g.logger.Info("unstake executed",
		zap.String("tx_id", result.Tx.ID),
		zap.String("account", accountID),
		zap.Int64("released", result.Released),
		zap.Int64("pending", result.Pending))
	return result, nil
}

// ReleaseUnstaked credits matured UNSTAKING positions back to their accounts
// and confirms the pending UNSTAKE entries. A pending unstake releases as one
// unit: either every position it consumed is credited and the entry confirmed
// in the same sweep, or the whole entry waits for the next one. A partial
// release would credit liquid funds no log entry accounts for.
// Intended to run periodically; returns the number of positions released.
func (g *Gateway) ReleaseUnstaked(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	var released int
	var published []events.LedgerEvent
	err := g.execute(ctx, "release_unstaked", func(tx storage.LedgerTx) error {
		released = 0
		published = published[:0]

		now := g.now()
		matured, err := tx.MaturedPositionsForUpdate(ctx, now, limit)
		if err != nil {
			return fmt.Errorf("lock matured positions: %w", err)
		}
		if len(matured) == 0 {
			return nil
		}

		// Every UNSTAKING position carries the id of the unstake entry that
		// consumed it, and all of one entry's positions share its unlock time.
		// Refetch the full set per entry so the sweep stays whole even when
		// the batch limit or a concurrent sweeper truncated the matured scan.
		txIDs := make([]string, 0, len(matured))
		seen := make(map[string]struct{}, len(matured))
		for _, p := range matured {
			if p.UnstakeTxID == nil {
				continue
			}
			if _, dup := seen[*p.UnstakeTxID]; dup {
				continue
			}
			seen[*p.UnstakeTxID] = struct{}{}
			txIDs = append(txIDs, *p.UnstakeTxID)
		}
		sort.Strings(txIDs)

		var positions []*domain.StakePosition
		confirm := make([]string, 0, len(txIDs))
		byAccount := make(map[string]int64)
		budget := 0
		for _, txID := range txIDs {
			group, err := tx.PositionsByUnstakeTxForUpdate(ctx, txID)
			if err != nil {
				return fmt.Errorf("lock unstake tx %s: %w", txID, err)
			}
			if len(group) == 0 {
				continue // another sweeper got here first
			}
			if budget > 0 && budget+len(group) > limit {
				break // entry does not fit this sweep's budget
			}
			for _, p := range group {
				byAccount[p.AccountID] += p.Remaining
			}
			positions = append(positions, group...)
			confirm = append(confirm, txID)
			budget += len(group)
		}
		if len(positions) == 0 {
			return nil
		}

		accountIDs := make([]string, 0, len(byAccount))
		for id := range byAccount {
			accountIDs = append(accountIDs, id)
		}
		sort.Strings(accountIDs)

		for _, id := range accountIDs {
			acc, err := tx.AccountForUpdate(ctx, id)
			if err != nil {
				return fmt.Errorf("lock account %s: %w", id, err)
			}
			if err := tx.SetLiquidBalance(ctx, id, acc.LiquidBalance+byAccount[id], now); err != nil {
				return fmt.Errorf("credit release: %w", err)
			}
		}

		for _, p := range positions {
			amount := p.Remaining
			p.Remaining = 0
			p.Status = domain.StakeStatusUnstaked
			closed := now
			p.ClosedAt = &closed
			if err := tx.UpdateStakePosition(ctx, p); err != nil {
				return fmt.Errorf("close position %s: %w", p.ID, err)
			}
			released++

			txID := ""
			if p.UnstakeTxID != nil {
				txID = *p.UnstakeTxID
			}
			published = append(published, events.LedgerEvent{
				Type:    events.EventUnstakeReleased,
				TxID:    txID,
				Account: p.AccountID,
				Amount:  amount,
				At:      now,
			})
		}

		for _, txID := range confirm {
			if err := tx.SetTransactionStatus(ctx, txID, domain.TxStatusConfirmed); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue // already settled
				}
				return fmt.Errorf("confirm unstake tx %s: %w", txID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if released > 0 {
		observability.DefaultMetrics.PositionsReleased.Add(float64(released))
		for _, e := range published {
			if g.bus != nil {
				g.bus.Publish(e)
			}
		}
		g.logger.Info("unstaked positions released", zap.Int("count", released))
	}
	observability.DefaultMetrics.PositionsSwept.Inc()
	return released, nil
}

// ConfirmTransaction applies the PENDING -> CONFIRMED | FAILED transition.
// Confirming into the status the transaction already has is a no-op success.
// Failing a pending UNSTAKE reverts its UNSTAKING positions to STAKED.
func (g *Gateway) ConfirmTransaction(ctx context.Context, txID string, success bool) error {
	target := domain.TxStatusConfirmed
	if !success {
		target = domain.TxStatusFailed
	}

	return g.execute(ctx, "confirm_transaction", func(tx storage.LedgerTx) error {
		t, err := tx.TransactionForUpdate(ctx, txID)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTransactionNotFound, txID)
		}
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}

		if t.Status == target {
			return nil
		}
		if t.Status != domain.TxStatusPending {
			return fmt.Errorf("%w: %s is %s", ErrNotPending, txID, t.Status)
		}

		if !success && t.Type == domain.TxUnstake {
			positions, err := tx.PositionsByUnstakeTxForUpdate(ctx, txID)
			if err != nil {
				return fmt.Errorf("lock unstake positions: %w", err)
			}
			for _, p := range positions {
				p.Status = domain.StakeStatusStaked
				p.UnlockAt = nil
				p.UnstakeTxID = nil
				if err := tx.UpdateStakePosition(ctx, p); err != nil {
					return fmt.Errorf("revert position %s: %w", p.ID, err)
				}
			}
		}

		if err := tx.SetTransactionStatus(ctx, txID, target); err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		return nil
	})
}
