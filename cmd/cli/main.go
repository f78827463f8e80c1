package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/fincast/fincast/internal/calendar"
	"github.com/fincast/fincast/internal/config"
	"github.com/fincast/fincast/internal/domain"
	infraBQ "github.com/fincast/fincast/internal/infra/bigquery"
	"github.com/fincast/fincast/internal/logger"
	"github.com/fincast/fincast/internal/schedule"
)

func main() {
	log := logger.New("cli")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "process":
		runProcess(log)
	case "preview":
		runPreview(log)
	case "rules":
		runRules(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Fincast CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  process   Materialize due recurring transactions for an owner")
	fmt.Println("  preview   Print upcoming occurrence dates for a rule shape")
	fmt.Println("  rules     List recurring rules for an owner")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// runProcess runs one processing pass for an owner and prints the number
// of transactions created.
func runProcess(log zerolog.Logger) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	owner := fs.String("owner", "", "owner ID to process")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	cfg := config.Load()

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

	created, err := processor.ProcessDueOccurrences(ctx, *owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Processing failed")
	}

	fmt.Printf("Created %d transactions for owner %s\n", created, *owner)
}

// runPreview enumerates upcoming occurrences for a rule shape given on
// the command line. Nothing is read or written; this is a dry run of the
// calendar arithmetic.
func runPreview(log zerolog.Logger) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	frequency := fs.String("frequency", "monthly", "daily, weekly, biweekly, monthly, quarterly or yearly")
	start := fs.String("start", "", "start date, YYYY-MM-DD")
	end := fs.String("end", "", "optional end date, YYYY-MM-DD")
	count := fs.Int("count", 12, "number of occurrences to print")
	payOnWeekends := fs.Bool("pay-on-weekends", false, "keep weekend dates instead of shifting to Friday")
	fs.Parse(os.Args[2:])

	freq, err := domain.ParseFrequency(*frequency)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid frequency")
	}
	startDate, err := calendar.ParseDate(*start)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid start date")
	}

	var endDate *civil.Date
	if *end != "" {
		d, err := calendar.ParseDate(*end)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid end date")
		}
		endDate = &d
	}

	sched := startDate
	for i := 0; i < *count; i++ {
		if endDate != nil && sched.After(*endDate) {
			fmt.Printf("Schedule exhausted after %d occurrences (end date %s)\n", i, *endDate)
			return
		}
		recorded := calendar.AdjustForWeekends(sched, *payOnWeekends)
		if recorded != sched {
			fmt.Printf("%s  (scheduled %s, shifted off weekend)\n", recorded, sched)
		} else {
			fmt.Println(recorded)
		}
		sched = calendar.AddFrequency(sched, freq, startDate.Day)
	}
}

// runRules lists an owner's rules with their cursor state.
func runRules(log zerolog.Logger) {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	owner := fs.String("owner", "", "owner ID")
	activeOnly := fs.Bool("active", false, "only list active rules")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cfg := config.Load()

	repo, err := infraBQ.NewBigQueryRuleRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rule repository")
	}
	defer repo.Close()

	var rules []*domain.RecurrenceRule
	if *activeOnly {
		rules, err = repo.ListActiveRules(ctx, *owner)
	} else {
		rules, err = repo.ListRules(ctx, *owner)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list rules")
	}

	if len(rules) == 0 {
		fmt.Println("No rules found")
		return
	}

	today := calendar.DateOf(time.Now())
	for _, rule := range rules {
		next := "-"
		if rule.NextProcessDate != nil {
			next = rule.NextProcessDate.String()
		}
		fmt.Printf("%s  %-10s %-9s %10s  next=%s  %s\n",
			rule.ID, rule.Frequency, rule.State(today), rule.Amount.String(), next, rule.TransactionDescription())
	}
}
