// Package ledger implements the command side of the token ledger: transfers,
// minting, staking, reward grants and claims, and settlement intake. The
// Gateway is the single mutator; every command runs as one atomic unit of
// work against the storage layer.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/events"
	"tola-ledger/internal/idhash"
	"tola-ledger/internal/observability"
	"tola-ledger/internal/storage"
)

// Gateway executes ledger commands. Commands lock every touched account row
// in ascending account-id order, so concurrent commands on disjoint accounts
// proceed in parallel while commands on the same account serialize. A command
// that aborts, on contention or otherwise, leaves no partial effects.
type Gateway struct {
	uow      storage.UnitOfWork
	accounts storage.AccountStore
	resolver *Resolver
	bus      *events.Bus
	logger   *zap.Logger

	cooldown time.Duration
	now      func() time.Time
	newID    func() string
}

// NewGateway creates a Gateway with instant unstake (no cooldown).
func NewGateway(uow storage.UnitOfWork, accounts storage.AccountStore, resolver *Resolver, bus *events.Bus, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		uow:      uow,
		accounts: accounts,
		resolver: resolver,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithCooldown sets the unstake cooldown window. Zero means funds are
// credited back immediately on unstake.
func (g *Gateway) WithCooldown(d time.Duration) *Gateway {
	g.cooldown = d
	return g
}

// WithClock overrides the gateway's clock, for tests.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// Resolver returns the gateway's account resolver.
func (g *Gateway) Resolver() *Resolver {
	return g.resolver
}

// Transfer moves amount from one account to another and appends one confirmed
// TRANSFER entry. toAddress, when set, records the raw recipient address the
// caller used (the resolver already mapped it to toID).
func (g *Gateway) Transfer(ctx context.Context, fromID, toID string, toAddress *string, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, g.fail("transfer", fmt.Errorf("%w: %d", ErrInvalidAmount, amount))
	}
	if fromID == toID {
		return nil, g.fail("transfer", fmt.Errorf("%w: transfer to self", ErrInvalidAmount))
	}

	var result *domain.Transaction
	err := g.execute(ctx, "transfer", func(tx storage.LedgerTx) error {
		accs, err := lockAccounts(ctx, tx, fromID, toID)
		if err != nil {
			return err
		}
		from, to := accs[fromID], accs[toID]

		if from.LiquidBalance < amount {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, from.LiquidBalance, amount)
		}

		now := g.now()
		if err := tx.SetLiquidBalance(ctx, from.ID, from.LiquidBalance-amount, now); err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		if err := tx.SetLiquidBalance(ctx, to.ID, to.LiquidBalance+amount, now); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}

		t := g.newTransaction(domain.TxTransfer, &from.ID, &to.ID, toAddress, amount, domain.TxStatusConfirmed, now)
		if err := tx.AppendTransaction(ctx, t); err != nil {
			return fmt.Errorf("append transfer: %w", err)
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.DefaultMetrics.TransferredTotal.Add(float64(amount))
	g.publish(events.EventTransfer, result.ID, fromID, amount)
	g.logger.Info("transfer executed",
		zap.String("tx_id", result.ID),
		zap.String("from", fromID),
		zap.String("to", toID),
		zap.Int64("amount", amount))
	return result, nil
}

// Mint credits newly issued tokens to an account and appends one confirmed
// MINT entry with no source account. Capability checks happen at the API
// boundary; the gateway trusts its caller.
func (g *Gateway) Mint(ctx context.Context, toID string, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, g.fail("mint", fmt.Errorf("%w: %d", ErrInvalidAmount, amount))
	}

	var result *domain.Transaction
	err := g.execute(ctx, "mint", func(tx storage.LedgerTx) error {
		accs, err := lockAccounts(ctx, tx, toID)
		if err != nil {
			return err
		}
		to := accs[toID]

		now := g.now()
		if err := tx.SetLiquidBalance(ctx, to.ID, to.LiquidBalance+amount, now); err != nil {
			return fmt.Errorf("credit mint: %w", err)
		}

		t := g.newTransaction(domain.TxMint, nil, &to.ID, nil, amount, domain.TxStatusConfirmed, now)
		if err := tx.AppendTransaction(ctx, t); err != nil {
			return fmt.Errorf("append mint: %w", err)
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.DefaultMetrics.MintedTotal.Add(float64(amount))
	g.publish(events.EventMint, result.ID, toID, amount)
	g.logger.Info("mint executed",
		zap.String("tx_id", result.ID),
		zap.String("to", toID),
		zap.Int64("amount", amount))
	return result, nil
}

// execute runs one command as a unit of work, mapping lock timeouts to
// ErrContention and recording command metrics.
func (g *Gateway) execute(ctx context.Context, command string, fn func(tx storage.LedgerTx) error) error {
	start := time.Now()
	err := g.uow.Execute(ctx, fn)
	if err != nil && errors.Is(err, storage.ErrLockTimeout) {
		err = fmt.Errorf("%w: %v", ErrContention, err)
	}
	if err != nil {
		observability.RecordCommand(command, "error", time.Since(start).Seconds())
		observability.RecordCommandError(command, ErrorCode(err))
		return err
	}
	observability.RecordCommand(command, "ok", time.Since(start).Seconds())
	return nil
}

// fail records a command rejected before it reached storage.
func (g *Gateway) fail(command string, err error) error {
	observability.RecordCommandError(command, ErrorCode(err))
	return err
}

func (g *Gateway) publish(eventType events.EventType, txID, accountID string, amount int64) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(events.LedgerEvent{
		Type:    eventType,
		TxID:    txID,
		Account: accountID,
		Amount:  amount,
		At:      g.now(),
	})
}

// newTransaction builds a log entry with a deterministic reference hash.
func (g *Gateway) newTransaction(
	txType domain.TransactionType,
	from, to, toAddress *string,
	amount int64,
	status domain.TransactionStatus,
	now time.Time,
) *domain.Transaction {
	ref := idhash.ComputeTxHash(txType, from, to, amount, now.UnixNano())
	return &domain.Transaction{
		ID:            g.newID(),
		Type:          txType,
		FromAccountID: from,
		ToAccountID:   to,
		ToAddress:     toAddress,
		Amount:        amount,
		Status:        status,
		ReferenceHash: &ref,
		CreatedAt:     now,
	}
}

// lockAccounts locks the given account rows in ascending id order. Every
// multi-account command must go through here so lock acquisition order is
// globally consistent.
func lockAccounts(ctx context.Context, tx storage.LedgerTx, ids ...string) (map[string]*domain.Account, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	out := make(map[string]*domain.Account, len(sorted))
	for _, id := range sorted {
		if _, done := out[id]; done {
			continue
		}
		a, err := tx.AccountForUpdate(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		if err != nil {
			return nil, fmt.Errorf("lock account %s: %w", id, err)
		}
		out[id] = a
	}
	return out, nil
}
