// Package scheduler runs the vault's periodic maintenance: harvesting yield,
// refreshing strategy APY samples, and rebalancing when drift warrants it.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/simaogato/vaultflow-backend/internal/usecase/strategymanager"
	"github.com/simaogato/vaultflow-backend/internal/usecase/vault"
)

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron       *cron.Cron
	Vault      *vault.Service
	Strategies *strategymanager.Service
	Owner      string
	Ctx        context.Context

	logger *slog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, v *vault.Service, strategies *strategymanager.Service, owner string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Vault:      v,
		Strategies: strategies,
		Owner:      owner,
		Ctx:        ctx,
		logger:     logger,
	}
}

// RegisterAll registers the harvest, APY refresh, and rebalance tasks.
func (s *Scheduler) RegisterAll(harvestCron, apyRefreshCron, rebalanceCron string) error {
	if _, err := s.Cron.AddFunc(harvestCron, s.harvestTask); err != nil {
		return fmt.Errorf("register harvest task: %w", err)
	}
	if _, err := s.Cron.AddFunc(apyRefreshCron, s.apyRefreshTask); err != nil {
		return fmt.Errorf("register APY refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(rebalanceCron, s.rebalanceTask); err != nil {
		return fmt.Errorf("register rebalance task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	s.logger.Info("scheduler stopped")
}

// RunHarvestNow executes the harvest task immediately (manual trigger).
func (s *Scheduler) RunHarvestNow() {
	s.harvestTask()
}

func (s *Scheduler) harvestTask() {
	yield, err := s.Vault.Harvest(s.Ctx)
	if err != nil {
		s.logger.Error("scheduled harvest failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scheduled harvest", slog.String("yield", yield.String()))
}

func (s *Scheduler) apyRefreshTask() {
	if err := s.Strategies.RefreshAPYs(s.Ctx); err != nil {
		s.logger.Error("scheduled APY refresh failed", slog.String("error", err.Error()))
	}
}

// rebalanceTask only moves capital when drift exceeds the configured
// threshold, so a quiet vault stays quiet.
func (s *Scheduler) rebalanceTask() {
	should, err := s.Vault.ShouldRebalance(s.Ctx)
	if err != nil {
		s.logger.Error("rebalance check failed", slog.String("error", err.Error()))
		return
	}
	if !should {
		return
	}
	if err := s.Vault.Rebalance(s.Ctx, s.Owner); err != nil {
		s.logger.Error("scheduled rebalance failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scheduled rebalance executed")
}
