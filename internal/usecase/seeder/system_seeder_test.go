package seeder

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/vaultflow-backend/internal/adapter/repository/memory"
	"github.com/simaogato/vaultflow-backend/internal/domain"
)

func TestSeed_CreatesStateAndDefaultTables(t *testing.T) {
	states := memory.NewVaultStateRepository()
	allocations := memory.NewAllocationRepository()
	s := NewSystemSeeder(states, allocations)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx))

	state, err := states.Get(ctx)
	require.NoError(t, err)
	assert.True(t, state.TotalShares.IsZero())
	assert.False(t, state.Paused)

	for _, level := range []domain.RiskLevel{domain.RiskLevelLow, domain.RiskLevelMedium, domain.RiskLevelHigh} {
		table, err := allocations.GetByLevel(ctx, level)
		require.NoError(t, err, "level %s", level)
		assert.NoError(t, table.Validate(), "seeded table for %s must sum to 10000 bps", level)
	}
}

func TestSeed_IsIdempotentAndKeepsOverrides(t *testing.T) {
	states := memory.NewVaultStateRepository()
	allocations := memory.NewAllocationRepository()
	s := NewSystemSeeder(states, allocations)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx))

	// An operator override and live ledger totals must survive reseeding.
	override := &domain.RiskAllocation{
		Level: domain.RiskLevelLow,
		Entries: []domain.AllocationEntry{
			{StrategyHandle: "treasury", Bps: 10000},
		},
	}
	require.NoError(t, allocations.Save(ctx, override))

	state, err := states.Get(ctx)
	require.NoError(t, err)
	state.TotalShares = decimal.NewFromInt(500)
	require.NoError(t, states.Save(ctx, state))

	require.NoError(t, s.Seed(ctx))

	table, err := allocations.GetByLevel(ctx, domain.RiskLevelLow)
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, "treasury", table.Entries[0].StrategyHandle)

	state, err = states.Get(ctx)
	require.NoError(t, err)
	assert.True(t, state.TotalShares.Equal(decimal.NewFromInt(500)))
}
