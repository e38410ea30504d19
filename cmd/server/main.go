package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/simaogato/vaultflow-backend/internal/adapter/repository/memory"
	"github.com/simaogato/vaultflow-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/vaultflow-backend/internal/adapter/strategy/sim"
	"github.com/simaogato/vaultflow-backend/internal/config"
	"github.com/simaogato/vaultflow-backend/internal/domain"
	"github.com/simaogato/vaultflow-backend/internal/recorder"
	"github.com/simaogato/vaultflow-backend/internal/scheduler"
	"github.com/simaogato/vaultflow-backend/internal/usecase/riskprofile"
	"github.com/simaogato/vaultflow-backend/internal/usecase/seeder"
	"github.com/simaogato/vaultflow-backend/internal/usecase/strategymanager"
	"github.com/simaogato/vaultflow-backend/internal/usecase/vault"
)

// simStrategies are the local-mode yield sources registered at startup.
// Their handles match the seeder's default allocation tables.
var simStrategies = []struct {
	handle    string
	apyBps    int64
	weight    int64
	riskScore int64
}{
	{handle: "stable-lend", apyBps: 450, weight: 300, riskScore: 20},
	{handle: "lp-conservative", apyBps: 800, weight: 200, riskScore: 45},
	{handle: "lp-aggressive", apyBps: 1600, weight: 100, riskScore: 75},
	{handle: "treasury", apyBps: 350, weight: 100, riskScore: 10},
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 1. Repositories
	var (
		accounts    domain.AccountRepository
		requests    domain.WithdrawalRequestRepository
		states      domain.VaultStateRepository
		strategies  domain.StrategyRepository
		allocations domain.AllocationRepository
	)
	switch cfg.Database.Mode {
	case "postgres":
		db, err := postgres.NewDB(cfg.Database.PostgresDSN)
		if err != nil {
			logger.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(); err != nil {
			logger.Error("failed to prepare schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
		accounts = postgres.NewAccountRepository(db)
		requests = postgres.NewWithdrawalRequestRepository(db)
		states = postgres.NewVaultStateRepository(db)
		strategies = postgres.NewStrategyRepository(db)
		allocations = postgres.NewAllocationRepository(db)
	default:
		accounts = memory.NewAccountRepository()
		requests = memory.NewWithdrawalRequestRepository()
		states = memory.NewVaultStateRepository()
		strategies = memory.NewStrategyRepository()
		allocations = memory.NewAllocationRepository()
	}
	logger.Info("storage ready", slog.String("mode", cfg.Database.Mode))

	// 2. Event recorder
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Events.SQLitePath != "" {
		sqliteRec, err := recorder.NewSQLiteRecorder(cfg.Events.SQLitePath)
		if err != nil {
			logger.Error("failed to open event recorder", slog.String("error", err.Error()))
			os.Exit(1)
		}
		rec = sqliteRec
	}
	defer rec.Close()

	// 3. Services
	profiles := riskprofile.NewService(accounts, cfg.RiskCooldown())
	manager := strategymanager.NewService(strategies, allocations, profiles, strategymanager.Config{
		Owner:                 cfg.Vault.Owner,
		RiskTolerance:         cfg.Risk.Tolerance,
		RebalanceThresholdBps: cfg.Risk.RebalanceThresholdBps,
		APYWindowSize:         cfg.Risk.APYWindowSize,
	}, logger)
	vaultService := vault.NewService(accounts, requests, states, manager, profiles, rec, vault.Config{
		Owner:                   cfg.Vault.Owner,
		WithdrawalManager:       cfg.Vault.WithdrawalManager,
		RiskManager:             cfg.Vault.RiskManager,
		MinimumDeposit:          cfg.MinimumDepositDecimal(),
		InstantWithdrawalFeeBps: cfg.Vault.InstantWithdrawalFeeBps,
		WithdrawalWindow:        cfg.WithdrawalWindow(),
		ReserveRatioBps:         cfg.Vault.ReserveRatioBps,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Seed state and allocation tables
	if err := seeder.NewSystemSeeder(states, allocations).Seed(ctx); err != nil {
		logger.Error("failed to seed vault configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Register simulated strategies (skipping handles already persisted)
	for _, spec := range simStrategies {
		err := manager.AddStrategy(ctx, cfg.Vault.Owner, sim.New(spec.handle, spec.apyBps),
			spec.weight, spec.riskScore, domain.BpsFull, 0)
		if err != nil && !errors.Is(err, domain.ErrStrategyExists) {
			logger.Error("failed to register strategy",
				slog.String("handle", spec.handle),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}
	logger.Info("strategies registered", slog.Int("count", len(simStrategies)))

	// 6. Scheduler
	sched := scheduler.NewScheduler(ctx, vaultService, manager, cfg.Vault.Owner, logger)
	if err := sched.RegisterAll(cfg.Schedule.HarvestCron, cfg.Schedule.APYRefreshCron, cfg.Schedule.RebalanceCron); err != nil {
		logger.Error("failed to register scheduled tasks", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sched.Start()
	logger.Info("vaultflow started")

	waitForShutdown(logger)
	sched.Stop()
	cancel()
	logger.Info("vaultflow stopped")
}

// waitForShutdown blocks until SIGTERM or SIGINT
func waitForShutdown(logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("shutting down", slog.String("signal", sig.String()))
}
