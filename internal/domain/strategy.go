package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Strategy defines the capability contract for external yield sources.
// The vault and strategy manager depend only on this interface, never on
// concrete variants. Any call may fail; a failure is isolated to that
// strategy and must never corrupt the vault ledger.
type Strategy interface {
	Name() string

	// Deposit moves amount of underlying tokens into the strategy.
	Deposit(ctx context.Context, amount decimal.Decimal) error

	// Withdraw pulls up to amount of underlying tokens out of the strategy
	// and returns the amount actually withdrawn.
	Withdraw(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)

	// WithdrawAll recalls every deployed token and returns the amount recalled.
	WithdrawAll(ctx context.Context) (decimal.Decimal, error)

	// Harvest realizes accumulated yield and returns the yield amount.
	Harvest(ctx context.Context) (decimal.Decimal, error)

	// TotalAssets returns the strategy's current underlying token balance.
	TotalAssets(ctx context.Context) (decimal.Decimal, error)

	// APY returns the strategy's current annualized yield in basis points.
	APY(ctx context.Context) (decimal.Decimal, error)
}

// BpsFull is the basis-point representation of 100%
const BpsFull int64 = 10000

// MaxRiskScore is the upper bound of a strategy risk score
const MaxRiskScore int64 = 100

// StrategyRecord holds the registration and performance bookkeeping for one
// strategy. Weight and bounds are mutated by governance; the APY fields are
// mutated by periodic APY updates.
type StrategyRecord struct {
	Handle           string
	Weight           int64 // relative weight in bps terms used for optimal allocation
	RiskScore        int64 // 0-100
	MaxAllocationBps int64
	MinAllocationBps int64
	IsActive         bool
	LastAPY          decimal.Decimal   // bps
	APYMovingAverage decimal.Decimal   // mean over the trailing window, bps
	APYHistory       []decimal.Decimal // trailing window of samples, newest last
	PerformanceScore decimal.Decimal   // 0-100, higher for lower APY variance
}

// Validate enforces the registration constraints
func (s *StrategyRecord) Validate() error {
	if s.Handle == "" {
		return ErrStrategyNotFound
	}
	if s.Weight <= 0 {
		return ErrInvalidWeight
	}
	if s.RiskScore < 0 || s.RiskScore > MaxRiskScore {
		return ErrRiskScoreTooHigh
	}
	if s.MinAllocationBps < 0 || s.MaxAllocationBps > BpsFull {
		return ErrInvalidAllocationBounds
	}
	if s.MinAllocationBps > s.MaxAllocationBps {
		return ErrInvalidAllocationBounds
	}
	return nil
}
