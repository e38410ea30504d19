package allocator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/vaultflow-backend/internal/domain"
)

func sumAllocations(allocations []StrategyAmount) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}

func amountFor(t *testing.T, allocations []StrategyAmount, handle string) decimal.Decimal {
	t.Helper()
	for _, a := range allocations {
		if a.Handle == handle {
			return a.Amount
		}
	}
	t.Fatalf("no allocation for handle %s", handle)
	return decimal.Zero
}

func TestSplitByTable_ConservativeProfile(t *testing.T) {
	// A LOW-risk table: 60% lending, 30% stable LP, 10% volatile LP
	entries := []domain.AllocationEntry{
		{StrategyHandle: "lending", Bps: 6000},
		{StrategyHandle: "stable-lp", Bps: 3000},
		{StrategyHandle: "volatile-lp", Bps: 1000},
	}

	allocations, err := SplitByTable(decimal.NewFromInt(1000), entries)
	require.NoError(t, err)
	require.Len(t, allocations, 3)

	assert.True(t, amountFor(t, allocations, "lending").Equal(decimal.NewFromInt(600)))
	assert.True(t, amountFor(t, allocations, "stable-lp").Equal(decimal.NewFromInt(300)))
	assert.True(t, amountFor(t, allocations, "volatile-lp").Equal(decimal.NewFromInt(100)))
	assert.True(t, sumAllocations(allocations).Equal(decimal.NewFromInt(1000)))
}

func TestSplitByTable_RoundingRemainderGoesToLastEntry(t *testing.T) {
	entries := []domain.AllocationEntry{
		{StrategyHandle: "a", Bps: 3333},
		{StrategyHandle: "b", Bps: 3333},
		{StrategyHandle: "c", Bps: 3334},
	}

	total := decimal.NewFromInt(100)
	allocations, err := SplitByTable(total, entries)
	require.NoError(t, err)

	// Whatever the per-entry rounding, the parts must sum exactly to the whole
	assert.True(t, sumAllocations(allocations).Equal(total), "no dust may be lost")
	assert.Equal(t, "c", allocations[2].Handle)
}

func TestSplitByTable_RejectsBadInput(t *testing.T) {
	entries := []domain.AllocationEntry{{StrategyHandle: "a", Bps: 10000}}

	_, err := SplitByTable(decimal.Zero, entries)
	assert.Error(t, err)

	_, err = SplitByTable(decimal.NewFromInt(100), nil)
	assert.ErrorIs(t, err, domain.ErrEmptyAllocation)
}

func unboundedRecord(handle string, weight int64) *domain.StrategyRecord {
	return &domain.StrategyRecord{
		Handle:           handle,
		Weight:           weight,
		RiskScore:        50,
		MinAllocationBps: 0,
		MaxAllocationBps: domain.BpsFull,
		IsActive:         true,
	}
}

func TestComputeOptimalAllocation_WeightProportional(t *testing.T) {
	records := []*domain.StrategyRecord{
		unboundedRecord("a", 2),
		unboundedRecord("b", 1),
		unboundedRecord("c", 1),
	}

	allocations := ComputeOptimalAllocation(decimal.NewFromInt(1000), records, 80)
	require.Len(t, allocations, 3)

	assert.True(t, amountFor(t, allocations, "a").Equal(decimal.NewFromInt(500)))
	assert.True(t, amountFor(t, allocations, "b").Equal(decimal.NewFromInt(250)))
	assert.True(t, amountFor(t, allocations, "c").Equal(decimal.NewFromInt(250)))
	assert.True(t, sumAllocations(allocations).Equal(decimal.NewFromInt(1000)))
}

func TestComputeOptimalAllocation_ClampsToMaxAndRedistributes(t *testing.T) {
	capped := unboundedRecord("capped", 8)
	capped.MaxAllocationBps = 2000 // at most 20% despite the dominant weight
	records := []*domain.StrategyRecord{
		capped,
		unboundedRecord("open", 2),
	}

	allocations := ComputeOptimalAllocation(decimal.NewFromInt(1000), records, 80)
	require.Len(t, allocations, 2)

	assert.True(t, amountFor(t, allocations, "capped").Equal(decimal.NewFromInt(200)))
	assert.True(t, amountFor(t, allocations, "open").Equal(decimal.NewFromInt(800)))
	assert.True(t, sumAllocations(allocations).Equal(decimal.NewFromInt(1000)))
}

func TestComputeOptimalAllocation_FiltersInactiveAndRisky(t *testing.T) {
	inactive := unboundedRecord("inactive", 5)
	inactive.IsActive = false
	risky := unboundedRecord("risky", 5)
	risky.RiskScore = 95
	records := []*domain.StrategyRecord{
		inactive,
		risky,
		unboundedRecord("safe", 1),
	}

	allocations := ComputeOptimalAllocation(decimal.NewFromInt(300), records, 80)
	require.Len(t, allocations, 1)
	assert.Equal(t, "safe", allocations[0].Handle)
	assert.True(t, allocations[0].Amount.Equal(decimal.NewFromInt(300)))
}

func TestComputeOptimalAllocation_ConservesTotalUnderTightBounds(t *testing.T) {
	// Max bounds sum to only 50%: conservation must still win, with the
	// residue assigned rather than dropped.
	a := unboundedRecord("a", 1)
	a.MaxAllocationBps = 3000
	b := unboundedRecord("b", 1)
	b.MaxAllocationBps = 2000
	records := []*domain.StrategyRecord{a, b}

	total := decimal.NewFromInt(1000)
	allocations := ComputeOptimalAllocation(total, records, 80)
	require.Len(t, allocations, 2)
	assert.True(t, sumAllocations(allocations).Equal(total))
}

func TestComputeOptimalAllocation_NoEligibleStrategies(t *testing.T) {
	inactive := unboundedRecord("inactive", 5)
	inactive.IsActive = false

	allocations := ComputeOptimalAllocation(decimal.NewFromInt(100), []*domain.StrategyRecord{inactive}, 80)
	assert.Empty(t, allocations)

	allocations = ComputeOptimalAllocation(decimal.Zero, []*domain.StrategyRecord{unboundedRecord("a", 1)}, 80)
	assert.Empty(t, allocations)
}
