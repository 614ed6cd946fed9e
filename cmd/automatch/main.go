package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/receiptwise/receiptmatch-backend/internal/application/automatch"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/config"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/logging"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/storage"
)

// One-shot auto-match run from the command line, useful for cron jobs
// and backfills without going through the API.
func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path")
		owner       = flag.String("owner", "", "Owner to match receipts for")
		allOwners   = flag.Bool("all", false, "Run for every owner with unmatched receipts")
		maxReceipts = flag.Int("max", 0, "Maximum receipts to process (0 = all)")
		receiptID   = flag.String("receipt", "", "Match a single receipt by ID")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	_ = godotenv.Load()

	var cfg *config.Config
	if *configFile != "" {
		cfg = config.LoadOrEnvWithPath(*configFile)
	} else {
		cfg = config.LoadOrEnv()
	}

	logCfg := cfg.Observability.Logging
	if *verbose {
		logCfg.Level = "debug"
	}
	logger := logging.NewScopedLogger(logCfg, "automatch")

	if !*allOwners && *owner == "" {
		fmt.Fprintln(os.Stderr, "either -owner or -all is required")
		flag.Usage()
		os.Exit(2)
	}

	matchCfg, err := cfg.Matching.ToMatchingConfig()
	if err != nil {
		logger.Error("Invalid matching configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	opts := automatch.Options{MaxReceipts: *maxReceipts}
	if *receiptID != "" {
		id, err := uuid.Parse(*receiptID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid receipt id %q: %v\n", *receiptID, err)
			os.Exit(2)
		}
		opts.ReceiptID = &id
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orchestrator := automatch.NewOrchestrator(store, matchCfg, logger)

	var results []*automatch.Result
	if *allOwners {
		results, err = orchestrator.RunAll(ctx, opts)
	} else {
		var result *automatch.Result
		result, err = orchestrator.Run(ctx, *owner, opts)
		if result != nil {
			results = append(results, result)
		}
	}
	if err != nil {
		logger.Error("Auto-match run failed", slog.String("error", err.Error()))
		printResults(results)
		os.Exit(1)
	}

	printResults(results)
}

func printResults(results []*automatch.Result) {
	for _, r := range results {
		fmt.Printf("owner=%s processed=%d proposed=%d (transactions=%d groups=%d) ambiguous=%d no_candidates=%d below_threshold=%d failed=%d in %s\n",
			r.Owner, r.Processed, r.Proposed, r.TransactionMatches, r.GroupMatches,
			r.Ambiguous, r.NoCandidates, r.BelowThreshold, r.Failed, r.Duration.Round(time.Millisecond))
	}
}
