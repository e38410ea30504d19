package strategymanager

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/vaultflow-backend/internal/adapter/repository/memory"
	"github.com/simaogato/vaultflow-backend/internal/adapter/strategy/sim"
	"github.com/simaogato/vaultflow-backend/internal/domain"
	"github.com/simaogato/vaultflow-backend/internal/usecase/allocator"
	"github.com/simaogato/vaultflow-backend/internal/usecase/riskprofile"
)

const testOwner = "owner"

func newTestService(cfg Config) *Service {
	if cfg.Owner == "" {
		cfg.Owner = testOwner
	}
	if cfg.RiskTolerance == 0 {
		cfg.RiskTolerance = 100
	}
	accounts := memory.NewAccountRepository()
	return NewService(
		memory.NewStrategyRepository(),
		memory.NewAllocationRepository(),
		riskprofile.NewService(accounts, 72*time.Hour),
		cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func mustAdd(t *testing.T, svc *Service, name string, weight, riskScore int64) *sim.Strategy {
	t.Helper()
	strategy := sim.New(name, 800)
	require.NoError(t, svc.AddStrategy(context.Background(), testOwner, strategy, weight, riskScore, domain.BpsFull, 0))
	return strategy
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestAddStrategy(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()

	mustAdd(t, svc, "alpha", 100, 40)

	record, err := svc.Strategies.GetByHandle(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, record.IsActive)
	assert.Equal(t, int64(100), record.Weight)

	_, ok := svc.Live("alpha")
	assert.True(t, ok)
	assert.Equal(t, []string{"alpha"}, svc.LiveHandles())
}

func TestAddStrategy_Rejections(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)

	err := svc.AddStrategy(ctx, "stranger", sim.New("beta", 500), 100, 40, domain.BpsFull, 0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = svc.AddStrategy(ctx, testOwner, sim.New("alpha", 500), 100, 40, domain.BpsFull, 0)
	assert.ErrorIs(t, err, domain.ErrStrategyExists)

	err = svc.AddStrategy(ctx, testOwner, sim.New("beta", 500), 0, 40, domain.BpsFull, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidWeight)

	err = svc.AddStrategy(ctx, testOwner, sim.New("beta", 500), 100, 101, domain.BpsFull, 0)
	assert.ErrorIs(t, err, domain.ErrRiskScoreTooHigh)

	err = svc.AddStrategy(ctx, testOwner, sim.New("beta", 500), 100, 40, 4000, 5000)
	assert.ErrorIs(t, err, domain.ErrInvalidAllocationBounds)
}

func TestRemoveStrategy_FlagsRebalance(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)
	mustAdd(t, svc, "beta", 100, 40)

	require.NoError(t, svc.RemoveStrategy(ctx, testOwner, "alpha"))

	assert.Equal(t, []string{"beta"}, svc.LiveHandles())
	_, ok := svc.Live("alpha")
	assert.False(t, ok)

	should, err := svc.ShouldRebalance(ctx, map[string]decimal.Decimal{"beta": dec(100)})
	require.NoError(t, err)
	assert.True(t, should, "removal forces a rebalance")

	svc.MarkRebalanced()
	should, err = svc.ShouldRebalance(ctx, map[string]decimal.Decimal{"beta": dec(100)})
	require.NoError(t, err)
	assert.False(t, should)
}

func TestDeactivateStrategy_ExcludesFromAllocationAndFlagsRebalance(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)
	mustAdd(t, svc, "beta", 100, 40)

	require.NoError(t, svc.DeactivateStrategy(ctx, testOwner, "beta"))

	targets, err := svc.CalculateOptimalAllocation(ctx, dec(1000))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "alpha", targets[0].Handle)
	assert.True(t, targets[0].Amount.Equal(dec(1000)))

	should, err := svc.ShouldRebalance(ctx, map[string]decimal.Decimal{"alpha": dec(500), "beta": dec(500)})
	require.NoError(t, err)
	assert.True(t, should)

	require.NoError(t, svc.ReactivateStrategy(ctx, testOwner, "beta"))
	record, err := svc.Strategies.GetByHandle(ctx, "beta")
	require.NoError(t, err)
	assert.True(t, record.IsActive)
}

func TestEmergencyStop_DeactivatesEverything(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)
	mustAdd(t, svc, "beta", 100, 40)

	require.NoError(t, svc.EmergencyStop(ctx, testOwner))

	records, err := svc.Strategies.List(ctx)
	require.NoError(t, err)
	for _, record := range records {
		assert.False(t, record.IsActive)
	}
}

func TestSetRiskLevelAllocation(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)
	mustAdd(t, svc, "beta", 100, 40)

	tests := []struct {
		name    string
		handles []string
		bps     []int64
		wantErr error
	}{
		{
			name:    "Table summing to 10000 should pass",
			handles: []string{"alpha", "beta"},
			bps:     []int64{6000, 4000},
		},
		{
			name:    "Table summing to 9000 should fail",
			handles: []string{"alpha", "beta"},
			bps:     []int64{6000, 3000},
			wantErr: domain.ErrAllocationNotFull,
		},
		{
			name:    "Empty table should fail",
			handles: nil,
			bps:     nil,
			wantErr: domain.ErrEmptyAllocation,
		},
		{
			name:    "Mismatched lengths should fail",
			handles: []string{"alpha", "beta"},
			bps:     []int64{10000},
			wantErr: domain.ErrAllocationLengthMismatch,
		},
		{
			name:    "Unregistered handle should fail",
			handles: []string{"alpha", "ghost"},
			bps:     []int64{6000, 4000},
			wantErr: domain.ErrStrategyNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SetRiskLevelAllocation(ctx, testOwner, domain.RiskLevelLow, tt.handles, tt.bps)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSetRiskLevelAllocation_EnforcesPerStrategyBounds(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()
	strategy := sim.New("capped", 500)
	require.NoError(t, svc.AddStrategy(ctx, testOwner, strategy, 100, 40, 5000, 0))
	mustAdd(t, svc, "open", 100, 40)

	err := svc.SetRiskLevelAllocation(ctx, testOwner, domain.RiskLevelLow, []string{"capped", "open"}, []int64{6000, 4000})
	assert.ErrorIs(t, err, domain.ErrInvalidAllocationBounds)

	err = svc.SetRiskLevelAllocation(ctx, testOwner, domain.RiskLevelLow, []string{"capped", "open"}, []int64{5000, 5000})
	assert.NoError(t, err)
}

func TestCalculateAllocationForLevel_UsesTableAndFallsBack(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 300, 40)
	mustAdd(t, svc, "beta", 100, 40)
	require.NoError(t, svc.SetRiskLevelAllocation(ctx, testOwner, domain.RiskLevelLow, []string{"alpha", "beta"}, []int64{7000, 3000}))

	targets, err := svc.CalculateAllocationForLevel(ctx, domain.RiskLevelLow, dec(1000))
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.True(t, targets[0].Amount.Equal(dec(700)))
	assert.True(t, targets[1].Amount.Equal(dec(300)))

	// No table for HIGH: falls back to the weight-proportional optimum.
	targets, err = svc.CalculateAllocationForLevel(ctx, domain.RiskLevelHigh, dec(1000))
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.True(t, amountFor(targets, "alpha").Equal(dec(750)))
	assert.True(t, amountFor(targets, "beta").Equal(dec(250)))
}

func TestCalculateAllocationForLevel_FiltersInactiveEntries(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)
	mustAdd(t, svc, "beta", 100, 40)
	require.NoError(t, svc.SetRiskLevelAllocation(ctx, testOwner, domain.RiskLevelLow, []string{"alpha", "beta"}, []int64{6000, 4000}))

	require.NoError(t, svc.DeactivateStrategy(ctx, testOwner, "beta"))

	// The surviving entry absorbs the filtered slice so the split still
	// conserves the full amount.
	targets, err := svc.CalculateAllocationForLevel(ctx, domain.RiskLevelLow, dec(1000))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "alpha", targets[0].Handle)
	assert.True(t, targets[0].Amount.Equal(dec(1000)))
}

func TestCalculateUserAllocation_FollowsProfile(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)
	mustAdd(t, svc, "beta", 100, 40)
	require.NoError(t, svc.SetRiskLevelAllocation(ctx, testOwner, domain.RiskLevelHigh, []string{"alpha", "beta"}, []int64{2000, 8000}))
	require.NoError(t, svc.RiskProfiles.SetRiskProfile(ctx, "alice", domain.RiskLevelHigh))

	targets, err := svc.CalculateUserAllocation(ctx, "alice", dec(1000))
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.True(t, amountFor(targets, "alpha").Equal(dec(200)))
	assert.True(t, amountFor(targets, "beta").Equal(dec(800)))
}

func TestUpdateStrategyAPY_TracksWindowAndScore(t *testing.T) {
	svc := newTestService(Config{APYWindowSize: 3})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)

	err := svc.UpdateStrategyAPY(ctx, "stranger", "alpha", dec(500))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	for _, apy := range []int64{400, 500, 600, 700} {
		require.NoError(t, svc.UpdateStrategyAPY(ctx, testOwner, "alpha", dec(apy)))
	}

	record, err := svc.Strategies.GetByHandle(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, record.LastAPY.Equal(dec(700)))
	require.Len(t, record.APYHistory, 3, "window keeps the newest samples")
	assert.True(t, record.APYHistory[0].Equal(dec(500)))
	assert.True(t, record.APYMovingAverage.Equal(dec(600)))
	assert.True(t, record.PerformanceScore.LessThan(dec(100)), "a moving APY costs score")
}

func TestUpdateStrategyAPY_SteadyAPYScoresFull(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.UpdateStrategyAPY(ctx, testOwner, "alpha", dec(500)))
	}

	record, err := svc.Strategies.GetByHandle(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, record.PerformanceScore.Equal(dec(100)))
}

func TestRefreshAPYs_PollsLiveStrategiesAndSkipsFailures(t *testing.T) {
	svc := newTestService(Config{})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)
	flaky := mustAdd(t, svc, "beta", 100, 40)
	flaky.FailNextReport(assert.AnError)

	require.NoError(t, svc.RefreshAPYs(ctx))

	record, err := svc.Strategies.GetByHandle(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, record.LastAPY.Equal(dec(800)), "sim reports its configured APY")

	record, err = svc.Strategies.GetByHandle(ctx, "beta")
	require.NoError(t, err)
	assert.Empty(t, record.APYHistory, "failed poll records nothing")
}

func TestShouldRebalance_Deviation(t *testing.T) {
	svc := newTestService(Config{RebalanceThresholdBps: 500})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)
	mustAdd(t, svc, "beta", 100, 40)

	// Targets are 500/500; a 540/460 split deviates 400 bps, under threshold.
	should, err := svc.ShouldRebalance(ctx, map[string]decimal.Decimal{"alpha": dec(540), "beta": dec(460)})
	require.NoError(t, err)
	assert.False(t, should)

	// 600/400 deviates 1000 bps.
	should, err = svc.ShouldRebalance(ctx, map[string]decimal.Decimal{"alpha": dec(600), "beta": dec(400)})
	require.NoError(t, err)
	assert.True(t, should)

	// Nothing deployed at all: nothing to rebalance.
	should, err = svc.ShouldRebalance(ctx, map[string]decimal.Decimal{})
	require.NoError(t, err)
	assert.False(t, should)
}

func TestShouldRebalance_TargetWithNoDeployment(t *testing.T) {
	svc := newTestService(Config{RebalanceThresholdBps: 500})
	ctx := context.Background()
	mustAdd(t, svc, "alpha", 100, 40)
	mustAdd(t, svc, "fresh", 100, 40)

	// All capital sits in alpha while fresh is owed half the pool.
	should, err := svc.ShouldRebalance(ctx, map[string]decimal.Decimal{"alpha": dec(1000)})
	require.NoError(t, err)
	assert.True(t, should)
}

func amountFor(targets []allocator.StrategyAmount, handle string) decimal.Decimal {
	for _, target := range targets {
		if target.Handle == handle {
			return target.Amount
		}
	}
	return decimal.Zero
}
