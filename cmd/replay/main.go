// Package main is the offline audit tool: it folds the transaction log from
// empty state and compares the result against the materialized balances.
// Exit code 1 means at least one account diverged.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tola-ledger/internal/storage/migrations"
	pgstore "tola-ledger/internal/storage/postgres"
	"tola-ledger/internal/verification"
)

func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	accountRef := flag.String("account", "", "Verify a single account by id (default: all accounts)")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatal("postgres migrations", zap.Error(err))
	}

	verifier := verification.NewLedgerVerifier(
		pgstore.NewAccountStore(pool),
		pgstore.NewStakeStore(pool),
		pgstore.NewTransactionStore(pool),
	)

	if *accountRef != "" {
		result, err := verifier.VerifyAccount(ctx, *accountRef)
		if err != nil {
			logger.Fatal("verify account", zap.String("account", *accountRef), zap.Error(err))
		}
		printResult(*result, *outputJSON)
		if !result.Match {
			os.Exit(1)
		}
		return
	}

	report, err := verifier.VerifyAll(ctx)
	if err != nil {
		logger.Fatal("verify ledger", zap.Error(err))
	}

	if *outputJSON {
		json.NewEncoder(os.Stdout).Encode(report)
	} else {
		fmt.Printf("accounts:  %d\n", report.TotalAccounts)
		fmt.Printf("matched:   %d\n", report.MatchedAccounts)
		fmt.Printf("divergent: %d\n", report.DivergentAccounts)
		fmt.Printf("replayed supply: %d (liquid %d, staked %d)\n",
			report.ReplayedLiquid+report.ReplayedStaked, report.ReplayedLiquid, report.ReplayedStaked)
		for _, result := range report.Results {
			if result.Match {
				continue
			}
			printResult(result, false)
		}
	}

	if !report.Match() {
		os.Exit(1)
	}
}

func printResult(result verification.VerificationResult, asJSON bool) {
	if asJSON {
		json.NewEncoder(os.Stdout).Encode(result)
		return
	}
	if result.Match {
		fmt.Printf("account %s: ok\n", result.AccountID)
		return
	}
	for _, d := range result.Divergences {
		fmt.Printf("account %s: %s expected %v, got %v\n",
			result.AccountID, d.Field, d.Expected, d.Actual)
	}
}
