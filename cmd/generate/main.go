package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/config"
	"github.com/dankozobeats/voicetracker-backend/internal/repository/postgres"
	"github.com/dankozobeats/voicetracker-backend/internal/service"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// generate materializes one month of recurring rules, settlements and
// overdraft carryovers, for every owner or for a single one.
func main() {
	month := flag.String("month", util.MonthKey(time.Now()), "month to generate, YYYY-MM")
	owner := flag.String("owner", "", "generate a single owner instead of all owners")
	reconcile := flag.Bool("reconcile", false, "repair settlement rows of the owner before generating")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	txManager := postgres.NewTxManager(pool)
	ruleRepo := postgres.NewRecurringRuleRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)
	envelopeService := service.NewEnvelopeService(postgres.NewEnvelopeRepository(pool), transactionRepo, txManager)
	settlementService := service.NewSettlementService(transactionRepo, txManager)
	generationService := service.NewGenerationService(
		ruleRepo, transactionRepo, postgres.NewOwnerRepository(pool), txManager, envelopeService, settlementService,
	)
	generationService.SetConcurrency(cfg.Generation.Concurrency)

	if *owner == "" {
		if *reconcile {
			log.Fatal().Msg("-reconcile requires -owner")
		}
		result, err := generationService.RunGeneration(ctx, *month)
		if err != nil {
			log.Fatal().Err(err).Str("month", *month).Msg("Generation failed")
		}
		if len(result.Errors) > 0 {
			log.Error().Strs("errors", result.Errors).Msg("Some owners failed")
			os.Exit(1)
		}
		return
	}

	if *reconcile {
		if _, err := settlementService.ReconcileOwner(ctx, *owner); err != nil {
			log.Fatal().Err(err).Str("owner_id", *owner).Msg("Settlement reconciliation failed")
		}
	}
	result, err := generationService.GenerateOwner(ctx, *owner, *month)
	if err != nil {
		log.Fatal().Err(err).Str("owner_id", *owner).Str("month", *month).Msg("Generation failed")
	}
	log.Info().
		Str("owner_id", result.OwnerID).
		Str("month", result.Month).
		Int("generated", result.Generated).
		Int("skipped", result.Skipped).
		Int("carryovers", result.Carryovers).
		Msg("Generated month for owner")
}
