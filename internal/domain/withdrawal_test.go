package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingRequest() *WithdrawalRequest {
	return &WithdrawalRequest{
		ID:          7,
		Owner:       "alice",
		Shares:      decimal.NewFromInt(50),
		RequestedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Status:      WithdrawalStatusPending,
		PaidOut:     decimal.Zero,
	}
}

func TestWithdrawalRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *WithdrawalRequest)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "Pending request should pass",
			mutate:  func(r *WithdrawalRequest) {},
			wantErr: false,
		},
		{
			name:    "Request without owner should fail",
			mutate:  func(r *WithdrawalRequest) { r.Owner = "" },
			wantErr: true,
			errMsg:  "withdrawal request owner cannot be empty",
		},
		{
			name:    "Request with zero shares should fail",
			mutate:  func(r *WithdrawalRequest) { r.Shares = decimal.Zero },
			wantErr: true,
			errMsg:  "withdrawal request shares must be positive",
		},
		{
			name:    "Request with unknown status should fail",
			mutate:  func(r *WithdrawalRequest) { r.Status = WithdrawalStatus("DONE") },
			wantErr: true,
			errMsg:  "withdrawal request status must be PENDING, PROCESSED, or CANCELLED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := pendingRequest()
			tt.mutate(request)
			err := request.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.EqualError(t, err, tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithdrawalRequest_MarkProcessed(t *testing.T) {
	request := pendingRequest()
	settledAt := request.RequestedAt.Add(24 * time.Hour)
	paidOut := decimal.NewFromInt(52)

	require.NoError(t, request.MarkProcessed(settledAt, paidOut))

	assert.Equal(t, WithdrawalStatusProcessed, request.Status)
	require.NotNil(t, request.SettledAt)
	assert.Equal(t, settledAt, *request.SettledAt)
	assert.True(t, request.PaidOut.Equal(paidOut))

	// A processed request is terminal in both directions.
	assert.ErrorIs(t, request.MarkProcessed(settledAt, paidOut), ErrAlreadyProcessed)
	assert.ErrorIs(t, request.MarkCancelled(settledAt), ErrAlreadyProcessed)
}

func TestWithdrawalRequest_MarkCancelled(t *testing.T) {
	request := pendingRequest()
	settledAt := request.RequestedAt.Add(time.Hour)

	require.NoError(t, request.MarkCancelled(settledAt))

	assert.Equal(t, WithdrawalStatusCancelled, request.Status)
	require.NotNil(t, request.SettledAt)
	assert.True(t, request.PaidOut.IsZero(), "a cancelled request pays nothing")

	assert.ErrorIs(t, request.MarkCancelled(settledAt), ErrAlreadyCancelled)
	assert.ErrorIs(t, request.MarkProcessed(settledAt, decimal.NewFromInt(1)), ErrAlreadyCancelled)
}
