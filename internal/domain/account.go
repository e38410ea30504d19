package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel represents a depositor-selected risk tier
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// ValidRiskLevel reports whether level is one of the three known tiers
func ValidRiskLevel(level RiskLevel) bool {
	return level == RiskLevelLow || level == RiskLevelMedium || level == RiskLevelHigh
}

// Account represents a depositor account in the domain layer
// Shares and EscrowedShares are separate sub-balances: Shares is the live,
// spendable balance; EscrowedShares backs pending withdrawal requests and
// cannot be spent again until the request settles or is cancelled.
// An account is never destroyed; a zero-share account is simply dormant.
type Account struct {
	Address            string
	Shares             decimal.Decimal // live (spendable) shares
	EscrowedShares     decimal.Decimal // reserved for pending withdrawal requests
	DepositedPrincipal decimal.Decimal
	AccruedInterest    decimal.Decimal
	InterestCheckpoint decimal.Decimal // interest index at last accrual
	RiskLevel          RiskLevel
	LastRiskChangeAt   time.Time
}

// NewAccount creates a dormant account with the given risk level
func NewAccount(address string, level RiskLevel) *Account {
	return &Account{
		Address:            address,
		Shares:             decimal.Zero,
		EscrowedShares:     decimal.Zero,
		DepositedPrincipal: decimal.Zero,
		AccruedInterest:    decimal.Zero,
		InterestCheckpoint: decimal.Zero,
		RiskLevel:          level,
	}
}

// TotalShares returns live plus escrowed shares
func (a *Account) TotalShares() decimal.Decimal {
	return a.Shares.Add(a.EscrowedShares)
}

// Validate ensures the account adheres to domain rules
// Returns an error if validation fails
func (a *Account) Validate() error {
	if a.Address == "" {
		return errors.New("account address cannot be empty")
	}
	if !ValidRiskLevel(a.RiskLevel) {
		return errors.New("account risk level must be LOW, MEDIUM, or HIGH")
	}
	if a.Shares.IsNegative() || a.EscrowedShares.IsNegative() {
		return errors.New("account share balances cannot be negative")
	}
	if a.DepositedPrincipal.IsNegative() {
		return errors.New("account deposited principal cannot be negative")
	}
	return nil
}
