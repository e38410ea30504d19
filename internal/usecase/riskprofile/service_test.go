package riskprofile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/vaultflow-backend/internal/adapter/repository/memory"
	"github.com/simaogato/vaultflow-backend/internal/domain"
)

func newTestService() (*Service, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(memory.NewAccountRepository(), 72*time.Hour)
	svc.Now = func() time.Time { return now }
	return svc, &now
}

func TestSetRiskProfile_FirstSelectionCreatesAccount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.SetRiskProfile(ctx, "alice", domain.RiskLevelHigh))

	level, err := svc.GetUserRiskLevel(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskLevelHigh, level)
}

func TestSetRiskProfile_RejectsUnknownLevel(t *testing.T) {
	svc, _ := newTestService()

	err := svc.SetRiskProfile(context.Background(), "alice", domain.RiskLevel("EXTREME"))
	assert.EqualError(t, err, "risk level must be LOW, MEDIUM, or HIGH")
}

func TestSetRiskProfile_CooldownGatesChanges(t *testing.T) {
	svc, now := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.SetRiskProfile(ctx, "alice", domain.RiskLevelLow))

	// Changing again inside the cooldown fails and leaves the profile alone.
	*now = now.Add(71 * time.Hour)
	err := svc.SetRiskProfile(ctx, "alice", domain.RiskLevelHigh)
	assert.ErrorIs(t, err, domain.ErrCooldownNotMet)

	level, err := svc.GetUserRiskLevel(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskLevelLow, level)

	// The full cooldown elapsing unlocks the change.
	*now = now.Add(time.Hour)
	require.NoError(t, svc.SetRiskProfile(ctx, "alice", domain.RiskLevelHigh))

	level, err = svc.GetUserRiskLevel(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskLevelHigh, level)
}

func TestGetUserRiskLevel_DefaultsToMediumWithoutCreating(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	level, err := svc.GetUserRiskLevel(ctx, "stranger")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskLevelMedium, level)

	// Reading the default never persists an account, so a later first
	// selection is not cooldown-gated.
	require.NoError(t, svc.SetRiskProfile(ctx, "stranger", domain.RiskLevelLow))
}
