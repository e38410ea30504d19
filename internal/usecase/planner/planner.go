package planner

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/usecase/allocator"
)

// Move is a single rebalancing step: withdraw Amount from (or deposit Amount
// into) the strategy identified by Handle.
type Move struct {
	Handle string
	Amount decimal.Decimal
}

// PlanMoves compares the current per-strategy balances against the target
// allocation and produces two phases of moves:
//
//   - withdrawals: pull capital out of overweight strategies (and out of
//     strategies absent from the target entirely)
//   - deposits: push the freed capital into underweight strategies
//
// Deltas below dustFloor are ignored so the vault does not churn strategies
// over rounding noise. Both phases are ordered largest-delta first for
// deterministic output.
func PlanMoves(current map[string]decimal.Decimal, targets []allocator.StrategyAmount, dustFloor decimal.Decimal) (withdrawals, deposits []Move) {
	targetByHandle := make(map[string]decimal.Decimal, len(targets))
	for _, target := range targets {
		targetByHandle[target.Handle] = target.Amount
	}

	for handle, balance := range current {
		delta := balance.Sub(targetByHandle[handle])
		if delta.GreaterThan(dustFloor) {
			withdrawals = append(withdrawals, Move{Handle: handle, Amount: delta})
		}
	}
	for _, target := range targets {
		delta := target.Amount.Sub(current[target.Handle])
		if delta.GreaterThan(dustFloor) {
			deposits = append(deposits, Move{Handle: target.Handle, Amount: delta})
		}
	}

	sortMoves(withdrawals)
	sortMoves(deposits)
	return withdrawals, deposits
}

func sortMoves(moves []Move) {
	sort.SliceStable(moves, func(i, j int) bool {
		if !moves[i].Amount.Equal(moves[j].Amount) {
			return moves[i].Amount.GreaterThan(moves[j].Amount)
		}
		return moves[i].Handle < moves[j].Handle
	})
}
