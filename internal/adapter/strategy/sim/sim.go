// Package sim provides a simulated yield strategy implementing
// domain.Strategy. It accrues yield on demand and supports failure
// injection, standing in for lending/AMM adapters in tests and in the
// server's local mode.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var hoursPerYear = decimal.NewFromInt(24 * 365)

// Strategy is a simulated yield source. Deposited capital sits in balance;
// accrued yield collects in pending until harvested.
type Strategy struct {
	mu      sync.Mutex
	name    string
	apyBps  decimal.Decimal
	balance decimal.Decimal
	pending decimal.Decimal

	nextErr       error
	nextReportErr error
}

// New creates a simulated strategy with a fixed APY in basis points
func New(name string, apyBps int64) *Strategy {
	return &Strategy{
		name:    name,
		apyBps:  decimal.NewFromInt(apyBps),
		balance: decimal.Zero,
		pending: decimal.Zero,
	}
}

func (s *Strategy) Name() string { return s.name }

// FailNext makes the next capital-moving call return err, then clears the fault
func (s *Strategy) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextErr = err
}

// FailNextReport makes the next read-only call return err, then clears the fault
func (s *Strategy) FailNextReport(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextReportErr = err
}

// Accrue adds unrealized yield awaiting the next harvest (test hook)
func (s *Strategy) Accrue(amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = s.pending.Add(amount)
}

// AccrueFor accrues linear yield on the deployed balance for the elapsed duration
func (s *Strategy) AccrueFor(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hours := decimal.NewFromFloat(elapsed.Hours())
	yield := s.balance.Mul(s.apyBps).Div(decimal.NewFromInt(10000)).Mul(hours).Div(hoursPerYear)
	s.pending = s.pending.Add(yield)
}

// Balance returns the deployed principal (test hook)
func (s *Strategy) Balance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *Strategy) takeFault() error {
	err := s.nextErr
	s.nextErr = nil
	return err
}

func (s *Strategy) takeReportFault() error {
	err := s.nextReportErr
	s.nextReportErr = nil
	return err
}

func (s *Strategy) Deposit(ctx context.Context, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault(); err != nil {
		return err
	}
	s.balance = s.balance.Add(amount)
	return nil
}

func (s *Strategy) Withdraw(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault(); err != nil {
		return decimal.Zero, err
	}
	// Realize pending yield when the deployed balance alone cannot cover.
	withdrawn := decimal.Min(amount, s.balance.Add(s.pending))
	fromBalance := decimal.Min(withdrawn, s.balance)
	s.balance = s.balance.Sub(fromBalance)
	s.pending = s.pending.Sub(withdrawn.Sub(fromBalance))
	return withdrawn, nil
}

func (s *Strategy) WithdrawAll(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault(); err != nil {
		return decimal.Zero, err
	}
	recalled := s.balance.Add(s.pending)
	s.balance = decimal.Zero
	s.pending = decimal.Zero
	return recalled, nil
}

func (s *Strategy) Harvest(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault(); err != nil {
		return decimal.Zero, err
	}
	yield := s.pending
	s.pending = decimal.Zero
	return yield, nil
}

func (s *Strategy) TotalAssets(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeReportFault(); err != nil {
		return decimal.Zero, err
	}
	return s.balance.Add(s.pending), nil
}

func (s *Strategy) APY(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeReportFault(); err != nil {
		return decimal.Zero, err
	}
	return s.apyBps, nil
}
