package dashboard

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
	"github.com/simaogato/vaultflow-backend/internal/usecase/vault"
)

// OverviewResult represents the aggregated vault snapshot
type OverviewResult struct {
	TotalAssets     decimal.Decimal
	TotalShares     decimal.Decimal
	SharePrice      decimal.Decimal
	LiquidReserve   decimal.Decimal
	TotalDeposits   decimal.Decimal
	Paused          bool
	PendingRequests int
	PendingShares   decimal.Decimal
	Strategies      []StrategyRow
}

// StrategyRow is one strategy's line in the overview
type StrategyRow struct {
	Handle           string
	Balance          decimal.Decimal
	IsActive         bool
	LastAPY          decimal.Decimal
	APYMovingAverage decimal.Decimal
	PerformanceScore decimal.Decimal
}

// PositionResult represents one depositor's view of their holdings
type PositionResult struct {
	Shares          decimal.Decimal
	EscrowedShares  decimal.Decimal
	Principal       decimal.Decimal
	CurrentValue    decimal.Decimal
	AccruedInterest decimal.Decimal
	RiskLevel       domain.RiskLevel
}

// DashboardService aggregates vault, queue, and strategy state into
// read-only snapshots
type DashboardService struct {
	Vault      *vault.Service
	Strategies domain.StrategyRepository
}

// NewDashboardService creates a new DashboardService instance
func NewDashboardService(v *vault.Service, strategies domain.StrategyRepository) *DashboardService {
	return &DashboardService{
		Vault:      v,
		Strategies: strategies,
	}
}

// GetOverview assembles the vault-wide snapshot
func (s *DashboardService) GetOverview(ctx context.Context) (*OverviewResult, error) {
	state, err := s.Vault.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load vault state: %w", err)
	}
	totalAssets, err := s.Vault.TotalAssets(ctx)
	if err != nil {
		return nil, err
	}
	sharePrice, err := s.Vault.SharePrice(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := s.Vault.ListPendingWithdrawals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	pendingShares := decimal.Zero
	for _, request := range pending {
		pendingShares = pendingShares.Add(request.Shares)
	}

	records, err := s.Strategies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	rows := make([]StrategyRow, 0, len(records))
	for _, record := range records {
		row := StrategyRow{
			Handle:           record.Handle,
			IsActive:         record.IsActive,
			LastAPY:          record.LastAPY,
			APYMovingAverage: record.APYMovingAverage,
			PerformanceScore: record.PerformanceScore,
		}
		// A strategy that fails to report shows a zero balance rather than
		// failing the whole overview.
		if live, ok := s.Vault.Strategies.Live(record.Handle); ok {
			if balance, err := live.TotalAssets(ctx); err == nil {
				row.Balance = balance
			}
		}
		rows = append(rows, row)
	}

	return &OverviewResult{
		TotalAssets:     totalAssets,
		TotalShares:     state.TotalShares,
		SharePrice:      sharePrice,
		LiquidReserve:   state.LiquidReserve,
		TotalDeposits:   state.TotalDeposits,
		Paused:          state.Paused,
		PendingRequests: len(pending),
		PendingShares:   pendingShares,
		Strategies:      rows,
	}, nil
}

// GetPosition assembles one depositor's holdings snapshot
func (s *DashboardService) GetPosition(ctx context.Context, user string) (*PositionResult, error) {
	shares, err := s.Vault.GetUserShares(ctx, user)
	if err != nil {
		return nil, err
	}
	escrowed, err := s.Vault.GetUserEscrowedShares(ctx, user)
	if err != nil {
		return nil, err
	}
	principal, err := s.Vault.GetUserPrincipal(ctx, user)
	if err != nil {
		return nil, err
	}
	accrued, err := s.Vault.GetUserAccruedInterest(ctx, user)
	if err != nil {
		return nil, err
	}
	level, err := s.Vault.RiskProfiles.GetUserRiskLevel(ctx, user)
	if err != nil {
		return nil, err
	}
	sharePrice, err := s.Vault.SharePrice(ctx)
	if err != nil {
		return nil, err
	}

	return &PositionResult{
		Shares:          shares,
		EscrowedShares:  escrowed,
		Principal:       principal,
		CurrentValue:    shares.Add(escrowed).Mul(sharePrice),
		AccruedInterest: accrued,
		RiskLevel:       level,
	}, nil
}
