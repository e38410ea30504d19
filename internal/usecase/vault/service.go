package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
	"github.com/simaogato/vaultflow-backend/internal/recorder"
	"github.com/simaogato/vaultflow-backend/internal/usecase/riskprofile"
	"github.com/simaogato/vaultflow-backend/internal/usecase/strategymanager"
)

var bpsFull = decimal.NewFromInt(domain.BpsFull)

// Config holds the vault's economic parameters
type Config struct {
	Owner                   string
	WithdrawalManager       string // authorized caller of ProcessVaultWithdrawal
	RiskManager             string
	MinimumDeposit          decimal.Decimal
	InstantWithdrawalFeeBps int64
	WithdrawalWindow        time.Duration
	ReserveRatioBps         int64 // share of each deposit kept idle in the vault
}

// Service is the vault ledger: it owns share issuance and redemption, the
// per-user interest ledger, the withdrawal request lifecycle, and the
// orchestration of capital into and out of the strategies.
//
// Execution is strictly sequential: every state-mutating operation holds one
// mutex for its whole duration, so operations are atomic with respect to
// each other and the only concurrency concern is ordering between calls.
type Service struct {
	Accounts     domain.AccountRepository
	Requests     domain.WithdrawalRequestRepository
	States       domain.VaultStateRepository
	Strategies   *strategymanager.Service
	RiskProfiles *riskprofile.Service
	Recorder     recorder.Recorder

	cfg    Config
	logger *slog.Logger
	Now    func() time.Time

	mu sync.Mutex
}

// NewService creates a new vault Service instance
func NewService(
	accounts domain.AccountRepository,
	requests domain.WithdrawalRequestRepository,
	states domain.VaultStateRepository,
	strategies *strategymanager.Service,
	riskProfiles *riskprofile.Service,
	rec recorder.Recorder,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Accounts:     accounts,
		Requests:     requests,
		States:       states,
		Strategies:   strategies,
		RiskProfiles: riskProfiles,
		Recorder:     rec,
		cfg:          cfg,
		logger:       logger,
		Now:          time.Now,
	}
}

// Deposit mints shares for the caller's current risk level
func (s *Service) Deposit(ctx context.Context, caller string, amount decimal.Decimal) (decimal.Decimal, error) {
	level, err := s.RiskProfiles.GetUserRiskLevel(ctx, caller)
	if err != nil {
		return decimal.Zero, err
	}
	return s.DepositWithRiskLevel(ctx, caller, amount, level)
}

// DepositWithRiskLevel mints shares proportional to the current share price
// and routes the capital into strategies per the level's allocation table.
// A strategy that rejects its slice leaves that slice in the idle reserve;
// the ledger update is never partial.
func (s *Service) DepositWithRiskLevel(ctx context.Context, caller string, amount decimal.Decimal, level domain.RiskLevel) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if state.Paused {
		return decimal.Zero, domain.ErrVaultPaused
	}
	if amount.LessThan(s.cfg.MinimumDeposit) {
		return decimal.Zero, domain.ErrBelowMinimumDeposit
	}
	if !domain.ValidRiskLevel(level) {
		level = domain.RiskLevelMedium
	}

	account, err := s.loadOrCreateAccount(ctx, caller, level)
	if err != nil {
		return decimal.Zero, err
	}
	s.accrueInterest(account, state)

	// Share price must be computed against live strategy balances before the
	// new capital enters the pool, otherwise the depositor would dilute (or
	// enrich) existing holders.
	assetsBefore := s.totalAssetsValue(ctx, state)
	var shares decimal.Decimal
	if state.TotalShares.IsZero() || assetsBefore.LessThanOrEqual(decimal.Zero) {
		shares = amount
	} else {
		shares = amount.Mul(state.TotalShares).Div(assetsBefore)
	}

	account.Shares = account.Shares.Add(shares)
	account.DepositedPrincipal = account.DepositedPrincipal.Add(amount)
	state.TotalShares = state.TotalShares.Add(shares)
	state.TotalDeposits = state.TotalDeposits.Add(amount)
	state.LiquidReserve = state.LiquidReserve.Add(amount)

	if err := s.Accounts.Save(ctx, account); err != nil {
		return decimal.Zero, fmt.Errorf("failed to save account: %w", err)
	}

	// Keep the configured reserve slice idle; deploy the rest.
	reserveSlice := amount.Mul(decimal.NewFromInt(s.cfg.ReserveRatioBps)).Div(bpsFull)
	deployable := amount.Sub(reserveSlice)
	if deployable.IsPositive() {
		s.deployToStrategies(ctx, state, level, deployable)
	}

	if err := s.States.Save(ctx, state); err != nil {
		return decimal.Zero, fmt.Errorf("failed to save vault state: %w", err)
	}
	if err := s.checkInvariants(ctx, state); err != nil {
		return decimal.Zero, err
	}

	sharePrice := decimal.NewFromInt(1)
	if !state.TotalShares.IsZero() {
		sharePrice = s.totalAssetsValue(ctx, state).Div(state.TotalShares)
	}
	if err := s.Recorder.RecordDeposit(&recorder.DepositEvent{
		EventID:      uuid.New().String(),
		User:         caller,
		Amount:       amount,
		SharesMinted: shares,
		RiskLevel:    string(level),
		SharePrice:   sharePrice,
		OccurredAt:   s.Now(),
	}); err != nil {
		s.logger.Warn("failed to record deposit event", slog.String("error", err.Error()))
	}

	s.logger.Info("deposit",
		slog.String("user", caller),
		slog.String("amount", amount.String()),
		slog.String("shares", shares.String()),
		slog.String("riskLevel", string(level)),
	)
	return shares, nil
}

// InstantWithdrawal burns shares immediately, applies the instant fee, and
// pays the net amount out of the reserve (pulling from strategies only if
// the reserve cannot cover). It never queues and settles atomically.
func (s *Service) InstantWithdrawal(ctx context.Context, caller string, shares decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if state.Paused {
		return decimal.Zero, domain.ErrVaultPaused
	}
	if shares.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, domain.ErrZeroShares
	}

	account, err := s.Accounts.GetByAddress(ctx, caller)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, domain.ErrInsufficientShares
		}
		return decimal.Zero, err
	}
	if shares.GreaterThan(account.Shares) {
		return decimal.Zero, domain.ErrInsufficientShares
	}

	s.accrueInterest(account, state)

	gross := s.redemptionValue(ctx, state, shares)
	fee := gross.Mul(decimal.NewFromInt(s.cfg.InstantWithdrawalFeeBps)).Div(bpsFull)
	net := gross.Sub(fee)

	// Raise liquidity before touching the ledger: a failed pull must leave
	// shares and totals exactly as they were.
	if err := s.pullLiquidity(ctx, state, net); err != nil {
		return decimal.Zero, err
	}

	s.burnShares(account, state, shares)
	// The fee is not paid out; it stays in the pool and accrues to the
	// remaining shareholders through the share price.

	if err := s.Accounts.Save(ctx, account); err != nil {
		return decimal.Zero, fmt.Errorf("failed to save account: %w", err)
	}
	if err := s.States.Save(ctx, state); err != nil {
		return decimal.Zero, fmt.Errorf("failed to save vault state: %w", err)
	}
	if err := s.checkInvariants(ctx, state); err != nil {
		return decimal.Zero, err
	}

	if err := s.Recorder.RecordWithdrawal(&recorder.WithdrawalEvent{
		EventID:      uuid.New().String(),
		User:         caller,
		Path:         "INSTANT",
		SharesBurned: shares,
		GrossAmount:  gross,
		FeeAmount:    fee,
		NetPaidOut:   net,
		OccurredAt:   s.Now(),
	}); err != nil {
		s.logger.Warn("failed to record withdrawal event", slog.String("error", err.Error()))
	}

	return net, nil
}

// RequestWithdrawal moves shares from the caller's live balance into escrow
// and creates a PENDING withdrawal request. No tokens move until the request
// is processed after the withdrawal window.
func (s *Service) RequestWithdrawal(ctx context.Context, caller string, shares decimal.Decimal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return 0, err
	}
	if state.Paused {
		return 0, domain.ErrVaultPaused
	}
	if shares.LessThanOrEqual(decimal.Zero) {
		return 0, domain.ErrZeroShares
	}

	account, err := s.Accounts.GetByAddress(ctx, caller)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrInsufficientShares
		}
		return 0, err
	}
	if shares.GreaterThan(account.Shares) {
		return 0, domain.ErrInsufficientShares
	}

	// Escrow, don't burn: the shares leave the spendable balance now so they
	// cannot be double-spent, but they keep earning until settlement.
	account.Shares = account.Shares.Sub(shares)
	account.EscrowedShares = account.EscrowedShares.Add(shares)

	request := &domain.WithdrawalRequest{
		Owner:       caller,
		Shares:      shares,
		RequestedAt: s.Now(),
		Status:      domain.WithdrawalStatusPending,
		PaidOut:     decimal.Zero,
	}
	if err := s.Requests.Create(ctx, request); err != nil {
		return 0, fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	if err := s.Accounts.Save(ctx, account); err != nil {
		return 0, fmt.Errorf("failed to save account: %w", err)
	}
	if err := s.checkInvariants(ctx, state); err != nil {
		return 0, err
	}

	s.logger.Info("withdrawal requested",
		slog.String("user", caller),
		slog.Int64("requestId", request.ID),
		slog.String("shares", shares.String()),
	)
	return request.ID, nil
}

// ProcessWithdrawal settles a pending request after the withdrawal window.
// The owed amount is valued at the share price current at processing time,
// so the depositor bears or benefits from yield accrued during the wait.
func (s *Service) ProcessWithdrawal(ctx context.Context, caller string, requestID int64) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if state.Paused {
		return decimal.Zero, domain.ErrVaultPaused
	}

	request, err := s.Requests.GetByID(ctx, requestID)
	if err != nil {
		return decimal.Zero, err
	}
	if request.Owner != caller {
		return decimal.Zero, domain.ErrNotRequestOwner
	}
	now := s.Now()
	// The window is evaluated against requestedAt, so concurrently created
	// requests age independently. Exactly requestedAt+window succeeds.
	if now.Before(request.RequestedAt.Add(s.cfg.WithdrawalWindow)) {
		return decimal.Zero, domain.ErrWithdrawalWindowNotMet
	}

	account, err := s.Accounts.GetByAddress(ctx, caller)
	if err != nil {
		return decimal.Zero, err
	}
	s.accrueInterest(account, state)

	amount := s.redemptionValue(ctx, state, request.Shares)

	// The status transition is guarded inside MarkProcessed; doing it before
	// moving tokens means a replayed id fails before any liquidity work.
	if err := request.MarkProcessed(now, amount); err != nil {
		return decimal.Zero, err
	}

	if err := s.pullLiquidity(ctx, state, amount); err != nil {
		return decimal.Zero, err
	}

	// The shares were debited from the live balance at request time; now
	// they leave the books entirely.
	account.EscrowedShares = account.EscrowedShares.Sub(request.Shares)
	principalReduction := s.principalReduction(account, request.Shares, account.TotalShares().Add(request.Shares))
	account.DepositedPrincipal = account.DepositedPrincipal.Sub(principalReduction)
	state.TotalShares = state.TotalShares.Sub(request.Shares)
	state.TotalDeposits = state.TotalDeposits.Sub(principalReduction)

	if err := s.Requests.Update(ctx, request); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update withdrawal request: %w", err)
	}
	if err := s.Accounts.Save(ctx, account); err != nil {
		return decimal.Zero, fmt.Errorf("failed to save account: %w", err)
	}
	if err := s.States.Save(ctx, state); err != nil {
		return decimal.Zero, fmt.Errorf("failed to save vault state: %w", err)
	}
	if err := s.checkInvariants(ctx, state); err != nil {
		return decimal.Zero, err
	}

	if err := s.Recorder.RecordWithdrawal(&recorder.WithdrawalEvent{
		EventID:      uuid.New().String(),
		User:         caller,
		Path:         "QUEUED",
		RequestID:    &request.ID,
		SharesBurned: request.Shares,
		GrossAmount:  amount,
		FeeAmount:    decimal.Zero,
		NetPaidOut:   amount,
		OccurredAt:   now,
	}); err != nil {
		s.logger.Warn("failed to record withdrawal event", slog.String("error", err.Error()))
	}

	return amount, nil
}

// CancelWithdrawal restores a pending request's escrowed shares to the
// owner's live balance. A cancelled id is never reused or reprocessed.
func (s *Service) CancelWithdrawal(ctx context.Context, caller string, requestID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return err
	}

	request, err := s.Requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Owner != caller {
		return domain.ErrNotRequestOwner
	}
	if err := request.MarkCancelled(s.Now()); err != nil {
		return err
	}

	account, err := s.Accounts.GetByAddress(ctx, caller)
	if err != nil {
		return err
	}
	account.EscrowedShares = account.EscrowedShares.Sub(request.Shares)
	account.Shares = account.Shares.Add(request.Shares)

	if err := s.Requests.Update(ctx, request); err != nil {
		return fmt.Errorf("failed to update withdrawal request: %w", err)
	}
	if err := s.Accounts.Save(ctx, account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return s.checkInvariants(ctx, state)
}

// ProcessVaultWithdrawal is the privileged entry point for the registered
// withdrawal-manager collaborator: it debits live shares and pays amount to
// user directly, bypassing the request lifecycle.
func (s *Service) ProcessVaultWithdrawal(ctx context.Context, caller, user string, shares, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller == "" || caller != s.cfg.WithdrawalManager {
		return domain.ErrUnauthorized
	}

	state, err := s.loadState(ctx)
	if err != nil {
		return err
	}
	if state.Paused {
		return domain.ErrVaultPaused
	}
	if shares.LessThanOrEqual(decimal.Zero) {
		return domain.ErrZeroShares
	}

	account, err := s.Accounts.GetByAddress(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInsufficientShares
		}
		return err
	}
	if shares.GreaterThan(account.Shares) {
		return domain.ErrInsufficientShares
	}

	s.accrueInterest(account, state)
	if err := s.pullLiquidity(ctx, state, amount); err != nil {
		return err
	}
	s.burnShares(account, state, shares)

	if err := s.Accounts.Save(ctx, account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	if err := s.States.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save vault state: %w", err)
	}
	if err := s.checkInvariants(ctx, state); err != nil {
		return err
	}

	if err := s.Recorder.RecordWithdrawal(&recorder.WithdrawalEvent{
		EventID:      uuid.New().String(),
		User:         user,
		Path:         "MANAGER",
		SharesBurned: shares,
		GrossAmount:  amount,
		FeeAmount:    decimal.Zero,
		NetPaidOut:   amount,
		OccurredAt:   s.Now(),
	}); err != nil {
		s.logger.Warn("failed to record withdrawal event", slog.String("error", err.Error()))
	}
	return nil
}

// UpdateAccruedInterest recomputes the user's proportional share of yield
// harvested since their last accrual checkpoint
func (s *Service) UpdateAccruedInterest(ctx context.Context, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return err
	}
	account, err := s.Accounts.GetByAddress(ctx, user)
	if err != nil {
		return err
	}
	s.accrueInterest(account, state)
	return s.Accounts.Save(ctx, account)
}

// GetUserAccruedInterest returns the user's accrued interest including the
// not-yet-checkpointed portion, without mutating anything
func (s *Service) GetUserAccruedInterest(ctx context.Context, user string) (decimal.Decimal, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	account, err := s.Accounts.GetByAddress(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	pending := account.TotalShares().Mul(state.InterestIndex.Sub(account.InterestCheckpoint))
	return account.AccruedInterest.Add(pending), nil
}
