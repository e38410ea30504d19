package vault

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
)

// Read-only views. These take best-effort snapshots and do not serialize
// against the mutating operations.

// GetUserShares returns the user's spendable share balance
func (s *Service) GetUserShares(ctx context.Context, user string) (decimal.Decimal, error) {
	account, err := s.Accounts.GetByAddress(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return account.Shares, nil
}

// GetUserEscrowedShares returns shares locked behind pending withdrawal requests
func (s *Service) GetUserEscrowedShares(ctx context.Context, user string) (decimal.Decimal, error) {
	account, err := s.Accounts.GetByAddress(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return account.EscrowedShares, nil
}

// GetUserPrincipal returns the user's remaining deposited principal
func (s *Service) GetUserPrincipal(ctx context.Context, user string) (decimal.Decimal, error) {
	account, err := s.Accounts.GetByAddress(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return account.DepositedPrincipal, nil
}

// SharePrice returns the current value of one share, 1 when no shares exist
func (s *Service) SharePrice(ctx context.Context) (decimal.Decimal, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if state.TotalShares.IsZero() {
		return decimal.NewFromInt(1), nil
	}
	return s.totalAssetsValue(ctx, state).Div(state.TotalShares), nil
}

// TotalAssets returns the reserve plus all reporting strategy balances
func (s *Service) TotalAssets(ctx context.Context) (decimal.Decimal, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return s.totalAssetsValue(ctx, state), nil
}

// TotalShares returns the total shares outstanding, escrowed included
func (s *Service) TotalShares(ctx context.Context) (decimal.Decimal, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return state.TotalShares, nil
}

// TotalDeposits returns the sum of remaining deposited principal
func (s *Service) TotalDeposits(ctx context.Context) (decimal.Decimal, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return state.TotalDeposits, nil
}

// State returns a snapshot of the vault's aggregate ledger
func (s *Service) State(ctx context.Context) (*domain.VaultState, error) {
	return s.loadState(ctx)
}

// GetWithdrawalRequest returns a request by id, any owner
func (s *Service) GetWithdrawalRequest(ctx context.Context, requestID int64) (*domain.WithdrawalRequest, error) {
	return s.Requests.GetByID(ctx, requestID)
}

// ListPendingWithdrawals returns all pending requests ordered by id
func (s *Service) ListPendingWithdrawals(ctx context.Context) ([]*domain.WithdrawalRequest, error) {
	return s.Requests.ListPending(ctx)
}
