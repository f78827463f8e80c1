// Command worker runs the recurring-transaction processor on an interval
// for a fixed set of owners. The API already materializes due occurrences
// on read, so the worker is optional: it keeps ledgers current for owners
// who have not opened the app in a while.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fincast/fincast/internal/config"
	infraBQ "github.com/fincast/fincast/internal/infra/bigquery"
	"github.com/fincast/fincast/internal/logger"
	"github.com/fincast/fincast/internal/schedule"
)

func main() {
	cfg := config.Load()

	var (
		owners   = flag.String("owners", os.Getenv("WORKER_OWNERS"), "comma-separated owner IDs to process (or set WORKER_OWNERS)")
		interval = flag.Duration("interval", time.Hour, "time between processing passes")
	)
	flag.Parse()

	log := logger.New("worker")

	ownerIDs := splitOwners(*owners)
	if len(ownerIDs) == 0 {
		log.Fatal().Msg("Error: -owners is required (or set WORKER_OWNERS)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rules, err := infraBQ.NewBigQueryRuleRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rule repository")
	}
	defer rules.Close()

	ledger, err := infraBQ.NewBigQueryLedgerRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer ledger.Close()

	processor := schedule.NewProcessor(rules, ledger, log)

	log.Info().
		Int("owners", len(ownerIDs)).
		Dur("interval", *interval).
		Msg("Starting worker service")

	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		runPass(ctx, processor, ownerIDs, log)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runPass(ctx, processor, ownerIDs, log)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")
	cancel()
	log.Info().Msg("Worker service exited")
}

// runPass processes every owner once. Owner failures are logged and do
// not stop the pass.
func runPass(ctx context.Context, processor *schedule.Processor, owners []string, log zerolog.Logger) {
	for _, owner := range owners {
		created, err := processor.ProcessDueOccurrences(ctx, owner)
		if err != nil {
			log.Error().Err(err).Str("owner_id", owner).Msg("Processing pass failed")
			continue
		}
		if created > 0 {
			log.Info().Str("owner_id", owner).Int("created", created).Msg("Processing pass complete")
		}
	}
}

func splitOwners(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
