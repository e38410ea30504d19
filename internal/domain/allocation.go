package domain

// AllocationEntry assigns a basis-point slice of deposited capital to one strategy
type AllocationEntry struct {
	StrategyHandle string
	Bps            int64
}

// RiskAllocation maps a risk level to its strategy allocation table.
// The entries' basis points must sum to exactly BpsFull (100%).
type RiskAllocation struct {
	Level   RiskLevel
	Entries []AllocationEntry
}

// Validate ensures the table adheres to domain rules
// CRITICAL: the entries must sum to exactly 10000 bps so that every deposit
// is fully allocated (no capital silently left behind or over-committed).
func (a *RiskAllocation) Validate() error {
	if !ValidRiskLevel(a.Level) {
		return ErrNotFound
	}
	if len(a.Entries) == 0 {
		return ErrEmptyAllocation
	}
	var total int64
	for _, entry := range a.Entries {
		if entry.StrategyHandle == "" {
			return ErrStrategyNotFound
		}
		if entry.Bps <= 0 {
			return ErrAllocationNotFull
		}
		total += entry.Bps
	}
	if total != BpsFull {
		return ErrAllocationNotFull
	}
	return nil
}
