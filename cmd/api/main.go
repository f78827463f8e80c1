package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fincast/fincast/internal/api/handlers"
	"github.com/fincast/fincast/internal/api/middleware"
	"github.com/fincast/fincast/internal/config"
	infraBQ "github.com/fincast/fincast/internal/infra/bigquery"
	"github.com/fincast/fincast/internal/logger"
	"github.com/fincast/fincast/internal/schedule"
	"github.com/fincast/fincast/internal/store/inmemory"
)

func main() {
	cfg := config.Load()

	var (
		port  = flag.String("port", cfg.Port, "HTTP server port")
		store = flag.String("store", cfg.Store, "backing store: bigquery or memory")
	)
	flag.Parse()

	log := logger.New("api")

	ctx := context.Background()

	var (
		ruleRepo    infraBQ.RuleRepository
		ledgerRepo  infraBQ.LedgerRepository
		accountRepo infraBQ.AccountRepository
	)

	switch *store {
	case "memory":
		// Single shared store; useful for local development without GCP
		// credentials. State does not survive a restart.
		mem := inmemory.NewStore()
		ruleRepo, ledgerRepo, accountRepo = mem, mem, mem
		log.Warn().Msg("Using in-memory store - data will not be persisted")

	case "bigquery":
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

		accounts, err := infraBQ.NewBigQueryAccountRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create account repository")
		}
		defer accounts.Close()

		ruleRepo, ledgerRepo, accountRepo = rules, ledger, accounts

	default:
		log.Fatal().Str("store", *store).Msg("Unknown store")
	}

	processor := schedule.NewProcessor(ruleRepo, ledgerRepo, log)

	rulesHandler := handlers.NewRulesHandler(ruleRepo, accountRepo, processor, log)
	transactionsHandler := handlers.NewTransactionsHandler(ledgerRepo, processor, log)
	accountsHandler := handlers.NewAccountsHandler(accountRepo, log)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/recurring", rulesHandler.CreateRule)
	mux.HandleFunc("GET /api/recurring", rulesHandler.ListRules)
	mux.HandleFunc("PUT /api/recurring/{id}", rulesHandler.UpdateRule)
	mux.HandleFunc("DELETE /api/recurring/{id}", rulesHandler.DeleteRule)

	mux.HandleFunc("GET /api/transactions", transactionsHandler.ListTransactions)
	mux.HandleFunc("GET /api/accounts", accountsHandler.ListAccounts)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.RequestLogger(log)(
			middleware.CORS(mux),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("store", *store).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
