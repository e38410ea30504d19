package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VaultState holds the vault globals. It is exclusively owned by the vault
// service and mutated only through its operations.
//
// Invariants enforced after every mutating operation:
//   - TotalShares == sum of every account's live + escrowed shares
//   - TotalDeposits == sum of every account's deposited principal
//   - sum of escrowed shares == sum of pending withdrawal request shares
type VaultState struct {
	TotalShares   decimal.Decimal
	TotalDeposits decimal.Decimal
	LiquidReserve decimal.Decimal // idle underlying tokens held by the vault
	InterestIndex decimal.Decimal // cumulative harvested yield per share
	Paused        bool
	LastRebalance time.Time
}

// NewVaultState returns an empty, unpaused vault state
func NewVaultState() *VaultState {
	return &VaultState{
		TotalShares:   decimal.Zero,
		TotalDeposits: decimal.Zero,
		LiquidReserve: decimal.Zero,
		InterestIndex: decimal.Zero,
	}
}
