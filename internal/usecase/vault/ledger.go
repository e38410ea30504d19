package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
)

// Internal ledger arithmetic. Every function here assumes the service mutex
// is held (or the caller is a read-only path that tolerates a stale view).

func (s *Service) loadState(ctx context.Context) (*domain.VaultState, error) {
	state, err := s.States.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewVaultState(), nil
		}
		return nil, fmt.Errorf("failed to load vault state: %w", err)
	}
	return state, nil
}

func (s *Service) loadOrCreateAccount(ctx context.Context, address string, level domain.RiskLevel) (*domain.Account, error) {
	account, err := s.Accounts.GetByAddress(ctx, address)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	account = domain.NewAccount(address, level)
	return account, nil
}

// accrueInterest settles the user's pending yield up to the current interest
// index and advances their checkpoint. Must run before any operation that
// changes the user's share balance.
func (s *Service) accrueInterest(account *domain.Account, state *domain.VaultState) {
	delta := state.InterestIndex.Sub(account.InterestCheckpoint)
	if delta.IsPositive() && !account.TotalShares().IsZero() {
		account.AccruedInterest = account.AccruedInterest.Add(account.TotalShares().Mul(delta))
	}
	account.InterestCheckpoint = state.InterestIndex
}

// totalAssetsValue is the reserve plus every strategy's reported balance.
// A strategy that fails to report is valued at zero for this computation;
// the failure is logged and the remaining strategies still count.
func (s *Service) totalAssetsValue(ctx context.Context, state *domain.VaultState) decimal.Decimal {
	total := state.LiquidReserve
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
		total = total.Add(balance)
	}
	return total
}

// redemptionValue prices shares at the current share price
func (s *Service) redemptionValue(ctx context.Context, state *domain.VaultState, shares decimal.Decimal) decimal.Decimal {
	if state.TotalShares.IsZero() {
		return decimal.Zero
	}
	return shares.Mul(s.totalAssetsValue(ctx, state)).Div(state.TotalShares)
}

// burnShares retires live shares and reduces principal proportionally
func (s *Service) burnShares(account *domain.Account, state *domain.VaultState, shares decimal.Decimal) {
	totalBefore := account.TotalShares()
	reduction := s.principalReduction(account, shares, totalBefore)
	account.Shares = account.Shares.Sub(shares)
	account.DepositedPrincipal = account.DepositedPrincipal.Sub(reduction)
	state.TotalShares = state.TotalShares.Sub(shares)
	state.TotalDeposits = state.TotalDeposits.Sub(reduction)
}

// principalReduction attributes a share burn to deposited principal
// pro rata, so a partial exit leaves principal and shares in proportion
func (s *Service) principalReduction(account *domain.Account, shares, totalBefore decimal.Decimal) decimal.Decimal {
	if totalBefore.IsZero() {
		return decimal.Zero
	}
	if shares.GreaterThanOrEqual(totalBefore) {
		return account.DepositedPrincipal
	}
	return account.DepositedPrincipal.Mul(shares).Div(totalBefore)
}

// pullLiquidity raises amount into the reserve, draining the reserve first
// and then the strategies in registration order. A strategy whose withdrawal
// call fails is skipped; only when every source is exhausted and the target
// is still short does the operation fail.
func (s *Service) pullLiquidity(ctx context.Context, state *domain.VaultState, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(state.LiquidReserve) {
		state.LiquidReserve = state.LiquidReserve.Sub(amount)
		return nil
	}

	needed := amount.Sub(state.LiquidReserve)
	for _, handle := range s.Strategies.LiveHandles() {
		if needed.LessThanOrEqual(decimal.Zero) {
			break
		}
		live, ok := s.Strategies.Live(handle)
		if !ok {
			continue
		}
		got, err := live.Withdraw(ctx, needed)
		if err != nil {
			s.logger.Warn("strategy withdrawal failed, trying next",
				slog.String("strategy", handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		state.LiquidReserve = state.LiquidReserve.Add(got)
		needed = needed.Sub(got)
	}

	if amount.GreaterThan(state.LiquidReserve) {
		return domain.ErrInsufficientLiquidity
	}
	state.LiquidReserve = state.LiquidReserve.Sub(amount)
	return nil
}

// deployToStrategies pushes capital into strategies per the risk level's
// allocation table. A strategy that rejects its deposit leaves that slice
// in the reserve; deployment failures never fail the deposit.
func (s *Service) deployToStrategies(ctx context.Context, state *domain.VaultState, level domain.RiskLevel, amount decimal.Decimal) {
	targets, err := s.Strategies.CalculateAllocationForLevel(ctx, level, amount)
	if err != nil {
		s.logger.Warn("no allocation available, capital stays in reserve",
			slog.String("riskLevel", string(level)),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, target := range targets {
		if target.Amount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		live, ok := s.Strategies.Live(target.Handle)
		if !ok {
			continue
		}
		if err := live.Deposit(ctx, target.Amount); err != nil {
			s.logger.Warn("strategy rejected deposit, slice stays in reserve",
				slog.String("strategy", target.Handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		state.LiquidReserve = state.LiquidReserve.Sub(target.Amount)
	}
}

// checkInvariants verifies the share ledger after a mutating operation.
// Total shares must equal the sum of every holder's live and escrowed
// shares, total deposits must equal the sum of deposited principal, and
// escrowed shares must equal the shares behind pending requests.
// A violation pauses the vault immediately.
func (s *Service) checkInvariants(ctx context.Context, state *domain.VaultState) error {
	accounts, err := s.Accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	sumShares := decimal.Zero
	sumEscrowed := decimal.Zero
	sumPrincipal := decimal.Zero
	for _, account := range accounts {
		sumShares = sumShares.Add(account.TotalShares())
		sumEscrowed = sumEscrowed.Add(account.EscrowedShares)
		sumPrincipal = sumPrincipal.Add(account.DepositedPrincipal)
	}

	pending, err := s.Requests.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	sumPendingShares := decimal.Zero
	for _, request := range pending {
		sumPendingShares = sumPendingShares.Add(request.Shares)
	}

	if !sumShares.Equal(state.TotalShares) ||
		!sumPrincipal.Equal(state.TotalDeposits) ||
		!sumEscrowed.Equal(sumPendingShares) {
		state.Paused = true
		if saveErr := s.States.Save(ctx, state); saveErr != nil {
			s.logger.Error("failed to persist pause after ledger corruption", slog.String("error", saveErr.Error()))
		}
		s.logger.Error("ledger corruption detected, vault paused",
			slog.String("totalShares", state.TotalShares.String()),
			slog.String("sumShares", sumShares.String()),
			slog.String("totalDeposits", state.TotalDeposits.String()),
			slog.String("sumPrincipal", sumPrincipal.String()),
			slog.String("sumEscrowed", sumEscrowed.String()),
			slog.String("sumPendingShares", sumPendingShares.String()),
		)
		return domain.ErrLedgerCorrupted
	}
	return nil
}
