// Package main runs the ledger daemon: the HTTP API, the settlement feed
// consumer and the background schedulers (unstake release sweeper, supply
// snapshots, account archiver).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tola-ledger/internal/api"
	"tola-ledger/internal/domain"
	"tola-ledger/internal/events"
	"tola-ledger/internal/ledger"
	"tola-ledger/internal/observability"
	"tola-ledger/internal/query"
	"tola-ledger/internal/settlement"
	"tola-ledger/internal/storage"
	chstore "tola-ledger/internal/storage/clickhouse"
	"tola-ledger/internal/storage/memory"
	"tola-ledger/internal/storage/migrations"
	pgstore "tola-ledger/internal/storage/postgres"
	"tola-ledger/internal/verification"
)

// stores bundles every storage implementation the daemon wires.
type stores struct {
	uow       storage.UnitOfWork
	accounts  storage.AccountStore
	stakes    storage.StakeStore
	rewards   storage.RewardStore
	txs       storage.TransactionStore
	stats     storage.StatsStore
	snapshots storage.SupplySnapshotStore
}

type daemon struct {
	gateway   *ledger.Gateway
	snapshots storage.SupplySnapshotStore
	stats     storage.StatsStore
	logger    *zap.Logger

	sweepInterval    time.Duration
	sweepBatch       int
	snapshotInterval time.Duration
	archiveInterval  time.Duration
	archiveAfter     time.Duration
}

func main() {
	// Load .env if present; real environment wins.
	_ = godotenv.Load()

	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	adminToken := flag.String("admin-token", os.Getenv("ADMIN_TOKEN"), "Bearer token for privileged endpoints")
	feedEndpoint := flag.String("settlement-feed", os.Getenv("SETTLEMENT_FEED_URL"), "Settlement feed WebSocket endpoint (optional)")
	cooldown := flag.Duration("unstake-cooldown", 0, "Unstake cooldown window (0 for instant release)")
	yieldRate := flag.String("yield-rate", envOr("YIELD_RATE", "0"), "Annual yield rate for display-only projections, e.g. 0.05")
	sweepInterval := flag.Duration("sweep-interval", time.Minute, "Matured unstake release interval")
	sweepBatch := flag.Int("sweep-batch", 100, "Max positions released per sweep")
	snapshotInterval := flag.Duration("snapshot-interval", time.Hour, "Supply snapshot interval")
	archiveInterval := flag.Duration("archive-interval", 24*time.Hour, "Inactive account archival interval")
	archiveAfter := flag.Duration("archive-after", 180*24*time.Hour, "Inactivity window before an account is archived")
	devLogging := flag.Bool("dev-logging", false, "Human-readable log output")

	flag.Parse()

	logger, err := newLogger(*devLogging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rate, err := decimal.NewFromString(*yieldRate)
	if err != nil {
		logger.Fatal("invalid --yield-rate", zap.String("value", *yieldRate), zap.Error(err))
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatal("create stores", zap.Error(err))
	}
	defer cleanup()

	bus := events.NewBus()
	defer bus.Close()

	resolver := ledger.NewResolver(st.accounts, logger)
	gateway := ledger.NewGateway(st.uow, st.accounts, resolver, bus, logger).WithCooldown(*cooldown)
	queries := query.NewService(st.accounts, st.stakes, st.rewards, st.txs, st.stats, st.snapshots, resolver, logger).
		WithYieldRate(rate)
	verifier := verification.NewLedgerVerifier(st.accounts, st.stakes, st.txs)

	d := &daemon{
		gateway:          gateway,
		snapshots:        st.snapshots,
		stats:            st.stats,
		logger:           logger,
		sweepInterval:    *sweepInterval,
		sweepBatch:       *sweepBatch,
		snapshotInterval: *snapshotInterval,
		archiveInterval:  *archiveInterval,
		archiveAfter:     *archiveAfter,
	}

	var feed *settlement.Feed
	if *feedEndpoint != "" {
		feed = settlement.NewFeed(*feedEndpoint, gateway, nil, logger)
		feed.Start(ctx)
		defer feed.Close()
		logger.Info("settlement feed started", zap.String("endpoint", *feedEndpoint))
	}

	go d.runSweeper(ctx)
	go d.runSnapshotter(ctx)
	go d.runArchiver(ctx)

	router := api.New(gateway, queries, verifier, api.Config{AdminToken: *adminToken}, logger).Router()
	handler := gorillahandlers.RecoveryHandler()(
		gorillahandlers.CombinedLoggingHandler(os.Stdout, router))

	server := &http.Server{
		Addr:         *listenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", *listenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("http server failed", zap.Error(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// createStores builds the storage layer and runs migrations. Without a
// ClickHouse DSN the daemon runs with the in-memory snapshot store and keeps
// history only for the current process lifetime.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *zap.Logger) (*stores, func(), error) {
	if useMemory {
		mem := memory.NewStore()
		return &stores{
			uow:       mem,
			accounts:  mem,
			stakes:    mem,
			rewards:   mem,
			txs:       mem,
			stats:     mem,
			snapshots: memory.NewSupplySnapshotStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	st := &stores{
		uow:      pgstore.NewUnitOfWork(pool),
		accounts: pgstore.NewAccountStore(pool),
		stakes:   pgstore.NewStakeStore(pool),
		rewards:  pgstore.NewRewardStore(pool),
		txs:      pgstore.NewTransactionStore(pool),
		stats:    pgstore.NewStatsStore(pool),
	}

	if clickhouseDSN == "" {
		logger.Warn("no clickhouse dsn, supply history is in-memory only")
		st.snapshots = memory.NewSupplySnapshotStore()
		return st, pool.Close, nil
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	st.snapshots = chstore.NewSupplySnapshotStore(chConn)

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return st, cleanup, nil
}

// runSweeper releases matured unstake positions on a fixed interval.
func (d *daemon) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := d.gateway.ReleaseUnstaked(ctx, d.sweepBatch)
			if err != nil {
				observability.DefaultMetrics.SchedulerErrors.WithLabelValues("sweeper").Inc()
				d.logger.Error("unstake sweep failed", zap.Error(err))
				continue
			}
			if released > 0 {
				d.logger.Info("unstake positions released", zap.Int("count", released))
			}
		}
	}
}

// runSnapshotter records one supply snapshot per interval, including one at
// startup so a fresh deployment has a first data point.
func (d *daemon) runSnapshotter(ctx context.Context) {
	d.takeSnapshot(ctx)

	ticker := time.NewTicker(d.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.takeSnapshot(ctx)
		}
	}
}

func (d *daemon) takeSnapshot(ctx context.Context) {
	stats, err := d.stats.Statistics(ctx)
	if err != nil {
		observability.DefaultMetrics.SchedulerErrors.WithLabelValues("snapshotter").Inc()
		d.logger.Error("read statistics for snapshot", zap.Error(err))
		return
	}

	snap := &domain.SupplySnapshot{
		TakenAt:            time.Now().UnixMilli(),
		CirculatingSupply:  stats.CirculatingSupply,
		TotalLiquid:        stats.TotalLiquid,
		TotalStaked:        stats.TotalStaked,
		RewardsDistributed: stats.RewardsDistributed,
		Accounts:           stats.Accounts,
		Holders:            stats.Holders,
	}
	if err := d.snapshots.Insert(ctx, snap); err != nil {
		observability.DefaultMetrics.SchedulerErrors.WithLabelValues("snapshotter").Inc()
		d.logger.Error("insert supply snapshot", zap.Error(err))
		return
	}

	observability.DefaultMetrics.SnapshotsTaken.Inc()
	observability.DefaultMetrics.LastSuccessfulSnapshot.SetToCurrentTime()
	observability.DefaultMetrics.StakedGauge.Set(float64(stats.TotalStaked))
	d.logger.Debug("supply snapshot taken",
		zap.Int64("supply", stats.CirculatingSupply),
		zap.Int64("staked", stats.TotalStaked))
}

// runArchiver archives accounts with no activity inside the window.
func (d *daemon) runArchiver(ctx context.Context) {
	ticker := time.NewTicker(d.archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			archived, err := d.gateway.ArchiveInactive(ctx, time.Now().Add(-d.archiveAfter), 500)
			if err != nil {
				observability.DefaultMetrics.SchedulerErrors.WithLabelValues("archiver").Inc()
				d.logger.Error("archive sweep failed", zap.Error(err))
				continue
			}
			if archived > 0 {
				d.logger.Info("inactive accounts archived", zap.Int("count", archived))
			}
		}
	}
}
