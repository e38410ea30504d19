package domain

import (
	"context"
)

// AccountRepository defines the interface for depositor account persistence
type AccountRepository interface {
	// GetByAddress retrieves an account by its address
	// Returns ErrNotFound if no account exists for the address
	GetByAddress(ctx context.Context, address string) (*Account, error)

	// Save upserts an account
	Save(ctx context.Context, account *Account) error

	// List retrieves all accounts in a deterministic order
	List(ctx context.Context) ([]*Account, error)
}

// WithdrawalRequestRepository defines the interface for withdrawal request persistence
type WithdrawalRequestRepository interface {
	// Create persists a new request and assigns it the next vault-scoped id,
	// monotonically increasing from 0. Ids are never reused.
	Create(ctx context.Context, request *WithdrawalRequest) error

	// GetByID retrieves a request by id
	// Returns ErrInvalidRequestID if the id does not exist
	GetByID(ctx context.Context, id int64) (*WithdrawalRequest, error)

	// Update persists a status transition
	Update(ctx context.Context, request *WithdrawalRequest) error

	// ListPending retrieves all PENDING requests ordered by id
	ListPending(ctx context.Context) ([]*WithdrawalRequest, error)
}

// StrategyRepository defines the interface for strategy record persistence
type StrategyRepository interface {
	// GetByHandle retrieves a record by handle
	// Returns ErrStrategyNotFound if the handle is not registered
	GetByHandle(ctx context.Context, handle string) (*StrategyRecord, error)

	// Save upserts a strategy record
	Save(ctx context.Context, record *StrategyRecord) error

	// Delete removes a strategy record
	Delete(ctx context.Context, handle string) error

	// List retrieves all records in registration order
	List(ctx context.Context) ([]*StrategyRecord, error)
}

// AllocationRepository defines the interface for risk-level allocation table persistence
type AllocationRepository interface {
	// GetByLevel retrieves the allocation table for a risk level
	// Returns ErrNotFound if no table has been set for the level
	GetByLevel(ctx context.Context, level RiskLevel) (*RiskAllocation, error)

	// Save replaces the allocation table for the entry's risk level
	Save(ctx context.Context, allocation *RiskAllocation) error
}

// VaultStateRepository defines the interface for vault global state persistence
type VaultStateRepository interface {
	// Get retrieves the singleton vault state
	// Returns ErrNotFound if the vault has never been initialized
	Get(ctx context.Context) (*VaultState, error)

	// Save persists the vault state
	Save(ctx context.Context, state *VaultState) error
}
