package strategymanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
	"github.com/simaogato/vaultflow-backend/internal/usecase/allocator"
	"github.com/simaogato/vaultflow-backend/internal/usecase/riskprofile"
)

// Config holds the tunable parameters of the strategy manager
type Config struct {
	Owner                 string
	RiskTolerance         int64 // maximum acceptable strategy risk score
	RebalanceThresholdBps int64 // allocation deviation that warrants a rebalance
	APYWindowSize         int   // trailing samples in the APY moving average
}

// Service registers strategies, owns the risk-level allocation tables,
// tracks per-strategy APY performance, and decides when rebalancing is
// warranted. All governance mutations are owner-gated.
type Service struct {
	Strategies   domain.StrategyRepository
	Allocations  domain.AllocationRepository
	RiskProfiles *riskprofile.Service

	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	live  map[string]domain.Strategy
	order []string // live handles in registration order
	// set on deactivation/removal, cleared when the vault rebalances
	needsRebalance bool
}

// NewService creates a new strategy manager Service instance
func NewService(
	strategies domain.StrategyRepository,
	allocations domain.AllocationRepository,
	riskProfiles *riskprofile.Service,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Strategies:   strategies,
		Allocations:  allocations,
		RiskProfiles: riskProfiles,
		cfg:          cfg,
		logger:       logger,
		live:         make(map[string]domain.Strategy),
	}
}

func (s *Service) requireOwner(caller string) error {
	if caller != s.cfg.Owner {
		return domain.ErrUnauthorized
	}
	return nil
}

// Live returns the live strategy collaborator for a handle
func (s *Service) Live(handle string) (domain.Strategy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strategy, ok := s.live[handle]
	return strategy, ok
}

// LiveHandles returns registered live strategy handles in registration order
func (s *Service) LiveHandles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// AddStrategy registers an active strategy with its live collaborator
func (s *Service) AddStrategy(
	ctx context.Context,
	caller string,
	live domain.Strategy,
	weight, riskScore, maxAllocationBps, minAllocationBps int64,
) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if live == nil {
		return domain.ErrStrategyNotFound
	}

	record := &domain.StrategyRecord{
		Handle:           live.Name(),
		Weight:           weight,
		RiskScore:        riskScore,
		MaxAllocationBps: maxAllocationBps,
		MinAllocationBps: minAllocationBps,
		IsActive:         true,
		PerformanceScore: decimal.NewFromInt(100),
	}
	if err := record.Validate(); err != nil {
		return err
	}

	if _, err := s.Strategies.GetByHandle(ctx, record.Handle); err == nil {
		return domain.ErrStrategyExists
	} else if !errors.Is(err, domain.ErrStrategyNotFound) {
		return err
	}

	if err := s.Strategies.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save strategy record: %w", err)
	}

	s.mu.Lock()
	s.live[record.Handle] = live
	s.order = append(s.order, record.Handle)
	s.mu.Unlock()

	s.logger.Info("strategy registered",
		slog.String("handle", record.Handle),
		slog.Int64("weight", weight),
		slog.Int64("riskScore", riskScore),
	)
	return nil
}

// UpdateStrategyWeight changes a strategy's relative weight
func (s *Service) UpdateStrategyWeight(ctx context.Context, caller, handle string, weight int64) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if weight <= 0 {
		return domain.ErrInvalidWeight
	}

	record, err := s.Strategies.GetByHandle(ctx, handle)
	if err != nil {
		return err
	}
	record.Weight = weight
	return s.Strategies.Save(ctx, record)
}

// RemoveStrategy unregisters a strategy. Deployed capital is not recalled
// here; the vault is responsible for withdrawing before removal.
func (s *Service) RemoveStrategy(ctx context.Context, caller, handle string) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if err := s.Strategies.Delete(ctx, handle); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.live, handle)
	for i, h := range s.order {
		if h == handle {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.needsRebalance = true
	s.mu.Unlock()
	return nil
}

// DeactivateStrategy excludes a strategy from future allocation calculations
func (s *Service) DeactivateStrategy(ctx context.Context, caller, handle string) error {
	return s.setActive(ctx, caller, handle, false)
}

// ReactivateStrategy re-includes a strategy in allocation calculations
func (s *Service) ReactivateStrategy(ctx context.Context, caller, handle string) error {
	return s.setActive(ctx, caller, handle, true)
}

func (s *Service) setActive(ctx context.Context, caller, handle string, active bool) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	record, err := s.Strategies.GetByHandle(ctx, handle)
	if err != nil {
		return err
	}
	record.IsActive = active
	if err := s.Strategies.Save(ctx, record); err != nil {
		return err
	}
	if !active {
		s.mu.Lock()
		s.needsRebalance = true
		s.mu.Unlock()
	}
	return nil
}

// EmergencyStop deactivates every registered strategy at once
func (s *Service) EmergencyStop(ctx context.Context, caller string) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	records, err := s.Strategies.List(ctx)
	if err != nil {
		return err
	}
	for _, record := range records {
		record.IsActive = false
		if err := s.Strategies.Save(ctx, record); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.needsRebalance = true
	s.mu.Unlock()
	s.logger.Warn("emergency stop: all strategies deactivated", slog.Int("count", len(records)))
	return nil
}

// SetRiskLevelAllocation replaces the allocation table for a risk level
// Fails with ErrEmptyAllocation, ErrAllocationLengthMismatch, or
// ErrAllocationNotFull on malformed input; every handle must be registered
// and each slice must respect that strategy's [min,max] bounds.
func (s *Service) SetRiskLevelAllocation(
	ctx context.Context,
	caller string,
	level domain.RiskLevel,
	handles []string,
	allocationsBps []int64,
) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if len(handles) == 0 || len(allocationsBps) == 0 {
		return domain.ErrEmptyAllocation
	}
	if len(handles) != len(allocationsBps) {
		return domain.ErrAllocationLengthMismatch
	}

	entries := make([]domain.AllocationEntry, 0, len(handles))
	for i, handle := range handles {
		record, err := s.Strategies.GetByHandle(ctx, handle)
		if err != nil {
			return err
		}
		if allocationsBps[i] < record.MinAllocationBps || allocationsBps[i] > record.MaxAllocationBps {
			return domain.ErrInvalidAllocationBounds
		}
		entries = append(entries, domain.AllocationEntry{StrategyHandle: handle, Bps: allocationsBps[i]})
	}

	table := &domain.RiskAllocation{Level: level, Entries: entries}
	if err := table.Validate(); err != nil {
		return err
	}
	return s.Allocations.Save(ctx, table)
}

// CalculateOptimalAllocation splits an amount across all active strategies
// honoring weights, the global risk tolerance, and per-strategy bounds
func (s *Service) CalculateOptimalAllocation(ctx context.Context, amount decimal.Decimal) ([]allocator.StrategyAmount, error) {
	records, err := s.Strategies.List(ctx)
	if err != nil {
		return nil, err
	}
	return allocator.ComputeOptimalAllocation(amount, records, s.cfg.RiskTolerance), nil
}

// CalculateUserAllocation returns the strategy/amount pairs for a user's
// risk level. Inactive strategies are filtered out; if the level has no
// table (or no entry survives filtering) it falls back to the optimal
// allocation so the deposit path is never blocked.
func (s *Service) CalculateUserAllocation(ctx context.Context, user string, amount decimal.Decimal) ([]allocator.StrategyAmount, error) {
	level, err := s.RiskProfiles.GetUserRiskLevel(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.CalculateAllocationForLevel(ctx, level, amount)
}

// CalculateAllocationForLevel is CalculateUserAllocation for an explicit level
func (s *Service) CalculateAllocationForLevel(ctx context.Context, level domain.RiskLevel, amount decimal.Decimal) ([]allocator.StrategyAmount, error) {
	table, err := s.Allocations.GetByLevel(ctx, level)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.CalculateOptimalAllocation(ctx, amount)
		}
		return nil, err
	}

	entries := make([]domain.AllocationEntry, 0, len(table.Entries))
	for _, entry := range table.Entries {
		record, err := s.Strategies.GetByHandle(ctx, entry.StrategyHandle)
		if err != nil || !record.IsActive {
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return s.CalculateOptimalAllocation(ctx, amount)
	}

	// SplitByTable assigns the rounding (and filtered-entry) remainder to the
	// last surviving entry, so the split still conserves the full amount.
	return allocator.SplitByTable(amount, entries)
}

// UpdateStrategyAPY records a fresh APY sample for a strategy
// Updates lastAPY, the trailing-window moving average, and the performance
// score (lower variance across the window scores higher).
func (s *Service) UpdateStrategyAPY(ctx context.Context, caller, handle string, newAPY decimal.Decimal) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}

	record, err := s.Strategies.GetByHandle(ctx, handle)
	if err != nil {
		return err
	}

	record.LastAPY = newAPY
	record.APYHistory = append(record.APYHistory, newAPY)
	if window := s.apyWindow(); len(record.APYHistory) > window {
		record.APYHistory = record.APYHistory[len(record.APYHistory)-window:]
	}
	record.APYMovingAverage = meanOf(record.APYHistory)
	record.PerformanceScore = performanceScore(record.APYHistory)

	return s.Strategies.Save(ctx, record)
}

// RefreshAPYs polls every live strategy's current APY and records it.
// A failing strategy is skipped and logged; the refresh continues.
func (s *Service) RefreshAPYs(ctx context.Context) error {
	records, err := s.Strategies.List(ctx)
	if err != nil {
		return err
	}
	for _, record := range records {
		live, ok := s.Live(record.Handle)
		if !ok {
			continue
		}
		apy, err := live.APY(ctx)
		if err != nil {
			s.logger.Warn("APY refresh failed for strategy",
				slog.String("handle", record.Handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.UpdateStrategyAPY(ctx, s.cfg.Owner, record.Handle, apy); err != nil {
			return err
		}
	}
	return nil
}

// ShouldRebalance reports whether the current per-strategy balances deviate
// from their optimal targets by more than the configured threshold, or a
// strategy was deactivated/removed since the last rebalance.
func (s *Service) ShouldRebalance(ctx context.Context, currentBalances map[string]decimal.Decimal) (bool, error) {
	s.mu.RLock()
	pendingDeactivation := s.needsRebalance
	s.mu.RUnlock()
	if pendingDeactivation {
		return true, nil
	}

	total := decimal.Zero
	for _, balance := range currentBalances {
		total = total.Add(balance)
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return false, nil
	}

	targets, err := s.CalculateOptimalAllocation(ctx, total)
	if err != nil {
		return false, err
	}

	threshold := decimal.NewFromInt(s.cfg.RebalanceThresholdBps)
	bps := decimal.NewFromInt(domain.BpsFull)
	targetByHandle := make(map[string]decimal.Decimal, len(targets))
	for _, target := range targets {
		targetByHandle[target.Handle] = target.Amount
	}

	for handle, balance := range currentBalances {
		target := targetByHandle[handle]
		deviation := balance.Sub(target).Abs().Mul(bps).Div(total)
		if deviation.GreaterThan(threshold) {
			return true, nil
		}
	}
	for handle, target := range targetByHandle {
		if _, deployed := currentBalances[handle]; deployed {
			continue
		}
		deviation := target.Mul(bps).Div(total)
		if deviation.GreaterThan(threshold) {
			return true, nil
		}
	}
	return false, nil
}

// MarkRebalanced clears the deactivation-pending flag after a rebalance
func (s *Service) MarkRebalanced() {
	s.mu.Lock()
	s.needsRebalance = false
	s.mu.Unlock()
}

func (s *Service) apyWindow() int {
	if s.cfg.APYWindowSize > 0 {
		return s.cfg.APYWindowSize
	}
	return 7
}

func meanOf(samples []decimal.Decimal) decimal.Decimal {
	if len(samples) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, sample := range samples {
		total = total.Add(sample)
	}
	return total.Div(decimal.NewFromInt(int64(len(samples))))
}

// performanceScore maps APY stability to a 0-100 score: a perfectly steady
// window scores 100, and each 10 bps of standard deviation costs one point.
func performanceScore(samples []decimal.Decimal) decimal.Decimal {
	if len(samples) < 2 {
		return decimal.NewFromInt(100)
	}
	mean := meanOf(samples)
	sumSquares := 0.0
	for _, sample := range samples {
		diff, _ := sample.Sub(mean).Float64()
		sumSquares += diff * diff
	}
	stddev := math.Sqrt(sumSquares / float64(len(samples)))
	score := 100 - stddev/10
	if score < 0 {
		score = 0
	}
	return decimal.NewFromFloat(score)
}
