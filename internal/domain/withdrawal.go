package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus represents the lifecycle state of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "PENDING"
	WithdrawalStatusProcessed WithdrawalStatus = "PROCESSED"
	WithdrawalStatusCancelled WithdrawalStatus = "CANCELLED"
)

// WithdrawalRequest represents a delayed withdrawal claim on escrowed shares
// The id is vault-scoped (not per-user) and monotonically increasing from 0.
// Shares are debited from the owner's live balance when the request is
// created, so they cannot be double-spent while the request is pending.
// Status transitions PENDING->PROCESSED or PENDING->CANCELLED exactly once.
type WithdrawalRequest struct {
	ID          int64
	Owner       string
	Shares      decimal.Decimal
	RequestedAt time.Time
	Status      WithdrawalStatus
	SettledAt   *time.Time      // set on PROCESSED or CANCELLED
	PaidOut     decimal.Decimal // token amount paid on PROCESSED
}

// Validate ensures the request adheres to domain rules
func (r *WithdrawalRequest) Validate() error {
	if r.Owner == "" {
		return errors.New("withdrawal request owner cannot be empty")
	}
	if r.Shares.LessThanOrEqual(decimal.Zero) {
		return errors.New("withdrawal request shares must be positive")
	}
	switch r.Status {
	case WithdrawalStatusPending, WithdrawalStatusProcessed, WithdrawalStatusCancelled:
		return nil
	default:
		return errors.New("withdrawal request status must be PENDING, PROCESSED, or CANCELLED")
	}
}

// guardPending maps a terminal status to the matching state error
func (r *WithdrawalRequest) guardPending() error {
	switch r.Status {
	case WithdrawalStatusProcessed:
		return ErrAlreadyProcessed
	case WithdrawalStatusCancelled:
		return ErrAlreadyCancelled
	default:
		return nil
	}
}

// MarkProcessed transitions the request PENDING->PROCESSED
// Fails with ErrAlreadyProcessed/ErrAlreadyCancelled on a terminal status,
// so only one terminal transition can ever succeed per request.
func (r *WithdrawalRequest) MarkProcessed(at time.Time, paidOut decimal.Decimal) error {
	if err := r.guardPending(); err != nil {
		return err
	}
	r.Status = WithdrawalStatusProcessed
	r.SettledAt = &at
	r.PaidOut = paidOut
	return nil
}

// MarkCancelled transitions the request PENDING->CANCELLED
func (r *WithdrawalRequest) MarkCancelled(at time.Time) error {
	if err := r.guardPending(); err != nil {
		return err
	}
	r.Status = WithdrawalStatusCancelled
	r.SettledAt = &at
	return nil
}
