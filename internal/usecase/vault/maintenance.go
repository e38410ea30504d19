package vault

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
	"github.com/simaogato/vaultflow-backend/internal/recorder"
	"github.com/simaogato/vaultflow-backend/internal/usecase/planner"
)

func (s *Service) requireOwner(caller string) error {
	if caller != s.cfg.Owner {
		return domain.ErrUnauthorized
	}
	return nil
}

// Harvest realizes yield from every strategy and books it into the interest
// index so holders accrue proportionally to their shares. A strategy whose
// harvest call fails is skipped and the cycle continues.
func (s *Service) Harvest(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	totalYield := decimal.Zero
	failed := 0
	for _, handle := range s.Strategies.LiveHandles() {
		live, ok := s.Strategies.Live(handle)
		if !ok {
			continue
		}
		yield, err := live.Harvest(ctx)
		if err != nil {
			failed++
			s.logger.Warn("strategy harvest failed",
				slog.String("strategy", handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		if yield.IsPositive() {
			totalYield = totalYield.Add(yield)
		}
	}

	if totalYield.IsPositive() {
		state.LiquidReserve = state.LiquidReserve.Add(totalYield)
		if !state.TotalShares.IsZero() {
			state.InterestIndex = state.InterestIndex.Add(totalYield.Div(state.TotalShares))
		}
		if err := s.States.Save(ctx, state); err != nil {
			return decimal.Zero, fmt.Errorf("failed to save vault state: %w", err)
		}
	}

	if err := s.Recorder.RecordHarvest(&recorder.HarvestEvent{
		EventID:     uuid.New().String(),
		TotalYield:  totalYield,
		FailedCount: failed,
		OccurredAt:  s.Now(),
	}); err != nil {
		s.logger.Warn("failed to record harvest event", slog.String("error", err.Error()))
	}

	s.logger.Info("harvest complete",
		slog.String("totalYield", totalYield.String()),
		slog.Int("failedStrategies", failed),
	)
	return totalYield, nil
}

// Rebalance moves capital between strategies toward the optimal weighted
// allocation. Withdrawals are executed before deposits so freed capital
// funds the underweight legs; a failed leg is logged and skipped.
func (s *Service) Rebalance(ctx context.Context, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return err
	}
	state, err := s.loadState(ctx)
	if err != nil {
		return err
	}
	if state.Paused {
		return domain.ErrVaultPaused
	}

	current := s.strategyBalances(ctx)
	deployed := decimal.Zero
	for _, balance := range current {
		deployed = deployed.Add(balance)
	}

	targets, err := s.Strategies.CalculateOptimalAllocation(ctx, deployed)
	if err != nil {
		return err
	}

	withdrawals, deposits := planner.PlanMoves(current, targets, decimal.Zero)

	moved := decimal.Zero
	for _, move := range withdrawals {
		live, ok := s.Strategies.Live(move.Handle)
		if !ok {
			continue
		}
		got, err := live.Withdraw(ctx, move.Amount)
		if err != nil {
			s.logger.Warn("rebalance withdrawal failed",
				slog.String("strategy", move.Handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		state.LiquidReserve = state.LiquidReserve.Add(got)
		moved = moved.Add(got)
	}
	for _, move := range deposits {
		live, ok := s.Strategies.Live(move.Handle)
		if !ok {
			continue
		}
		// Never deposit more than the reserve actually holds; a short
		// withdrawal leg shrinks the deposit legs rather than the reserve.
		amount := decimal.Min(move.Amount, state.LiquidReserve)
		if !amount.IsPositive() {
			continue
		}
		if err := live.Deposit(ctx, amount); err != nil {
			s.logger.Warn("rebalance deposit failed",
				slog.String("strategy", move.Handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		state.LiquidReserve = state.LiquidReserve.Sub(amount)
	}

	state.LastRebalance = s.Now()
	if err := s.States.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save vault state: %w", err)
	}
	s.Strategies.MarkRebalanced()

	if err := s.Recorder.RecordRebalance(&recorder.RebalanceEvent{
		EventID:       uuid.New().String(),
		MovedAmount:   moved,
		WithdrawMoves: len(withdrawals),
		DepositMoves:  len(deposits),
		OccurredAt:    state.LastRebalance,
	}); err != nil {
		s.logger.Warn("failed to record rebalance event", slog.String("error", err.Error()))
	}

	s.logger.Info("rebalance complete",
		slog.Int("withdrawals", len(withdrawals)),
		slog.Int("deposits", len(deposits)),
		slog.String("moved", moved.String()),
	)
	return nil
}

// ShouldRebalance reports whether deployed capital has drifted past the
// configured threshold from the optimal allocation
func (s *Service) ShouldRebalance(ctx context.Context) (bool, error) {
	return s.Strategies.ShouldRebalance(ctx, s.strategyBalances(ctx))
}

// EmergencyWithdraw recalls all capital from every strategy into the
// reserve and pauses the vault
func (s *Service) EmergencyWithdraw(ctx context.Context, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return err
	}
	state, err := s.loadState(ctx)
	if err != nil {
		return err
	}

	for _, handle := range s.Strategies.LiveHandles() {
		live, ok := s.Strategies.Live(handle)
		if !ok {
			continue
		}
		got, err := live.WithdrawAll(ctx)
		if err != nil {
			s.logger.Error("emergency withdrawal failed",
				slog.String("strategy", handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		state.LiquidReserve = state.LiquidReserve.Add(got)
	}

	state.Paused = true
	if err := s.States.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save vault state: %w", err)
	}
	s.logger.Warn("emergency withdrawal executed, vault paused",
		slog.String("reserve", state.LiquidReserve.String()),
	)
	return nil
}

// Pause stops all deposits and withdrawals
func (s *Service) Pause(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, true)
}

// Unpause resumes normal operation
func (s *Service) Unpause(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, false)
}

func (s *Service) setPaused(ctx context.Context, caller string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return err
	}
	state, err := s.loadState(ctx)
	if err != nil {
		return err
	}
	state.Paused = paused
	return s.States.Save(ctx, state)
}

// UpdateRiskManagers replaces both privileged collaborator addresses at once
func (s *Service) UpdateRiskManagers(caller, riskManager, withdrawalManager string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if riskManager == "" {
		return domain.ErrInvalidRiskProfileManager
	}
	if withdrawalManager == "" {
		return domain.ErrInvalidWithdrawalManager
	}
	s.cfg.RiskManager = riskManager
	s.cfg.WithdrawalManager = withdrawalManager
	return nil
}

func (s *Service) strategyBalances(ctx context.Context) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal)
	for _, handle := range s.Strategies.LiveHandles() {
		live, ok := s.Strategies.Live(handle)
		if !ok {
			continue
		}
		balance, err := live.TotalAssets(ctx)
		if err != nil {
			s.logger.Warn("strategy failed to report balance",
				slog.String("strategy", handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		balances[handle] = balance
	}
	return balances
}
