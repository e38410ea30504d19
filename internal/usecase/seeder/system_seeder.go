package seeder

import (
	"context"
	"errors"

	"github.com/simaogato/vaultflow-backend/internal/domain"
)

// Default allocation tables per risk level. Conservative tiers lean on the
// lower-risk strategies; the tables are only seeded when the level has no
// table yet, so operator overrides survive restarts.
var defaultTables = map[domain.RiskLevel][]domain.AllocationEntry{
	domain.RiskLevelLow: {
		{StrategyHandle: "stable-lend", Bps: 6000},
		{StrategyHandle: "lp-conservative", Bps: 3000},
		{StrategyHandle: "treasury", Bps: 1000},
	},
	domain.RiskLevelMedium: {
		{StrategyHandle: "stable-lend", Bps: 4000},
		{StrategyHandle: "lp-conservative", Bps: 4000},
		{StrategyHandle: "lp-aggressive", Bps: 2000},
	},
	domain.RiskLevelHigh: {
		{StrategyHandle: "lp-conservative", Bps: 3000},
		{StrategyHandle: "lp-aggressive", Bps: 7000},
	},
}

// SystemSeeder ensures the vault starts with a usable configuration:
// an initial vault state row and an allocation table for every risk level
type SystemSeeder struct {
	states      domain.VaultStateRepository
	allocations domain.AllocationRepository
}

// NewSystemSeeder creates a new SystemSeeder instance
func NewSystemSeeder(states domain.VaultStateRepository, allocations domain.AllocationRepository) *SystemSeeder {
	return &SystemSeeder{
		states:      states,
		allocations: allocations,
	}
}

// Seed ensures the vault state exists and every risk level has an
// allocation table, creating the defaults where missing
func (s *SystemSeeder) Seed(ctx context.Context) error {
	state, err := s.states.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		state = domain.NewVaultState()
	}
	if err := s.states.Save(ctx, state); err != nil {
		return err
	}

	for _, level := range []domain.RiskLevel{domain.RiskLevelLow, domain.RiskLevelMedium, domain.RiskLevelHigh} {
		if _, err := s.allocations.GetByLevel(ctx, level); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		table := &domain.RiskAllocation{
			Level:   level,
			Entries: defaultTables[level],
		}
		if err := table.Validate(); err != nil {
			return err
		}
		if err := s.allocations.Save(ctx, table); err != nil {
			return err
		}
	}
	return nil
}
