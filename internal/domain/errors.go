package domain

import "errors"

// Validation errors: surfaced immediately to the caller, never retried.
var (
	ErrBelowMinimumDeposit      = errors.New("deposit below minimum")
	ErrZeroShares               = errors.New("share amount must be positive")
	ErrInsufficientShares       = errors.New("insufficient shares")
	ErrEmptyAllocation          = errors.New("allocation arrays cannot be empty")
	ErrAllocationLengthMismatch = errors.New("allocation arrays length mismatch")
	ErrAllocationNotFull        = errors.New("allocation must sum to 10000 bps")
	ErrInvalidWeight            = errors.New("strategy weight must be positive")
	ErrRiskScoreTooHigh         = errors.New("strategy risk score exceeds 100")
	ErrInvalidAllocationBounds  = errors.New("min allocation exceeds max allocation")
)

// Authorization errors: fatal to the call.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotRequestOwner = errors.New("not the withdrawal request owner")
)

// State errors: the caller may legitimately retry later.
var (
	ErrInvalidRequestID           = errors.New("invalid withdrawal request id")
	ErrAlreadyProcessed           = errors.New("withdrawal request already processed")
	ErrAlreadyCancelled           = errors.New("withdrawal request already cancelled")
	ErrWithdrawalWindowNotMet     = errors.New("withdrawal window not met")
	ErrCooldownNotMet             = errors.New("risk update cooldown not met")
	ErrVaultPaused                = errors.New("vault is paused")
	ErrStrategyNotFound           = errors.New("strategy not found")
	ErrStrategyExists             = errors.New("strategy already registered")
	ErrNotFound                   = errors.New("not found")
	ErrInvalidRiskProfileManager  = errors.New("invalid risk profile manager handle")
	ErrInvalidWithdrawalManager   = errors.New("invalid withdrawal manager handle")
)

// ErrInsufficientLiquidity is raised only after every liquidity source
// (idle reserve, then strategies) failed to cover a requested amount.
var ErrInsufficientLiquidity = errors.New("insufficient liquidity")

// ErrLedgerCorrupted signals a totalShares/totalDeposits mismatch. It is
// fatal: the vault pauses itself and refuses further mutating operations.
var ErrLedgerCorrupted = errors.New("ledger invariant violation")
