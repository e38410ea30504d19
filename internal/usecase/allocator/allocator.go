package allocator

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
)

var bpsFull = decimal.NewFromInt(domain.BpsFull)

// StrategyAmount pairs a strategy handle with an allocated token amount
type StrategyAmount struct {
	Handle string
	Amount decimal.Decimal
}

// SplitByTable splits a total amount across an allocation table's entries
// proportionally to their basis points.
// Logic:
//  1. Allocate each entry except the last as amount * bps / 10000
//  2. Assign the final leftover to the last entry, so rounding dust is never lost
//
// Safety: Ensures total allocation equals the input amount exactly
func SplitByTable(totalAmount decimal.Decimal, entries []domain.AllocationEntry) ([]StrategyAmount, error) {
	if totalAmount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("total amount must be positive")
	}
	if len(entries) == 0 {
		return nil, domain.ErrEmptyAllocation
	}

	allocations := make([]StrategyAmount, 0, len(entries))
	allocated := decimal.Zero

	for i, entry := range entries {
		var amount decimal.Decimal
		if i == len(entries)-1 {
			// Last entry absorbs the rounding remainder
			amount = totalAmount.Sub(allocated)
		} else {
			amount = totalAmount.Mul(decimal.NewFromInt(entry.Bps)).Div(bpsFull)
		}
		allocations = append(allocations, StrategyAmount{Handle: entry.StrategyHandle, Amount: amount})
		allocated = allocated.Add(amount)
	}

	// Safety check: Ensure the parts sum exactly to the whole
	if !allocated.Equal(totalAmount) {
		return nil, errors.New("total allocation does not equal total amount")
	}

	return allocations, nil
}

// ComputeOptimalAllocation deterministically splits a total amount across the
// active strategies whose risk score does not exceed riskTolerance.
// Logic:
//  1. Filter to active, risk-acceptable strategies
//  2. Compute weight-proportional targets
//  3. Clamp each target to the strategy's [min,max] allocation bounds
//  4. Redistribute any leftover to the least-constrained strategy first
//     (greatest remaining headroom below its max bound)
//
// This function never fails on imbalanced inputs: it clamps and redistributes
// rather than erroring, because it sits on the deposit/withdrawal path. The
// returned allocations always sum exactly to the input amount. An empty
// result means no strategy is eligible and the capital stays in the reserve.
func ComputeOptimalAllocation(totalAmount decimal.Decimal, records []*domain.StrategyRecord, riskTolerance int64) []StrategyAmount {
	if totalAmount.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	eligible := make([]*domain.StrategyRecord, 0, len(records))
	var totalWeight int64
	for _, record := range records {
		if record.IsActive && record.RiskScore <= riskTolerance {
			eligible = append(eligible, record)
			totalWeight += record.Weight
		}
	}
	if len(eligible) == 0 || totalWeight <= 0 {
		return nil
	}

	weightTotal := decimal.NewFromInt(totalWeight)
	amounts := make(map[string]decimal.Decimal, len(eligible))
	maxCaps := make(map[string]decimal.Decimal, len(eligible))
	allocated := decimal.Zero

	for _, record := range eligible {
		target := totalAmount.Mul(decimal.NewFromInt(record.Weight)).Div(weightTotal)
		minAmount := totalAmount.Mul(decimal.NewFromInt(record.MinAllocationBps)).Div(bpsFull)
		maxAmount := totalAmount.Mul(decimal.NewFromInt(record.MaxAllocationBps)).Div(bpsFull)

		if target.LessThan(minAmount) {
			target = minAmount
		}
		if target.GreaterThan(maxAmount) {
			target = maxAmount
		}

		amounts[record.Handle] = target
		maxCaps[record.Handle] = maxAmount
		allocated = allocated.Add(target)
	}

	leftover := totalAmount.Sub(allocated)
	if !leftover.IsZero() {
		distributeLeftover(amounts, maxCaps, eligible, leftover)
	}

	allocations := make([]StrategyAmount, 0, len(eligible))
	for _, record := range eligible {
		allocations = append(allocations, StrategyAmount{Handle: record.Handle, Amount: amounts[record.Handle]})
	}
	return allocations
}

// distributeLeftover pushes a positive leftover into (or pulls a negative
// leftover out of) the allocations, most-headroom strategies first. If every
// bound is exhausted the final strategy absorbs the residue: conservation of
// the total takes precedence over per-strategy bounds.
func distributeLeftover(amounts, maxCaps map[string]decimal.Decimal, eligible []*domain.StrategyRecord, leftover decimal.Decimal) {
	ordered := make([]*domain.StrategyRecord, len(eligible))
	copy(ordered, eligible)
	sort.SliceStable(ordered, func(i, j int) bool {
		headroomI := maxCaps[ordered[i].Handle].Sub(amounts[ordered[i].Handle])
		headroomJ := maxCaps[ordered[j].Handle].Sub(amounts[ordered[j].Handle])
		if !headroomI.Equal(headroomJ) {
			return headroomI.GreaterThan(headroomJ)
		}
		return ordered[i].Handle < ordered[j].Handle
	})

	if leftover.IsPositive() {
		for _, record := range ordered {
			headroom := maxCaps[record.Handle].Sub(amounts[record.Handle])
			if headroom.LessThanOrEqual(decimal.Zero) {
				continue
			}
			grant := decimal.Min(leftover, headroom)
			amounts[record.Handle] = amounts[record.Handle].Add(grant)
			leftover = leftover.Sub(grant)
			if leftover.IsZero() {
				return
			}
		}
	} else {
		for _, record := range ordered {
			available := amounts[record.Handle]
			if available.LessThanOrEqual(decimal.Zero) {
				continue
			}
			take := decimal.Min(leftover.Neg(), available)
			amounts[record.Handle] = amounts[record.Handle].Sub(take)
			leftover = leftover.Add(take)
			if leftover.IsZero() {
				return
			}
		}
	}

	if !leftover.IsZero() && len(ordered) > 0 {
		last := ordered[len(ordered)-1].Handle
		amounts[last] = amounts[last].Add(leftover)
	}
}
