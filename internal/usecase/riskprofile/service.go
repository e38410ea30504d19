package riskprofile

import (
	"context"
	"errors"
	"time"

	"github.com/simaogato/vaultflow-backend/internal/domain"
)

// Service handles depositor risk profile operations
// A profile change is rate-limited by Cooldown, measured against the
// account's last change timestamp.
type Service struct {
	Accounts domain.AccountRepository
	Cooldown time.Duration
	Now      func() time.Time
}

// NewService creates a new risk profile Service instance
func NewService(accounts domain.AccountRepository, cooldown time.Duration) *Service {
	return &Service{
		Accounts: accounts,
		Cooldown: cooldown,
		Now:      time.Now,
	}
}

// SetRiskProfile updates the user's risk level
// Fails with ErrCooldownNotMet if the previous change is too recent.
func (s *Service) SetRiskProfile(ctx context.Context, user string, level domain.RiskLevel) error {
	if !domain.ValidRiskLevel(level) {
		return errors.New("risk level must be LOW, MEDIUM, or HIGH")
	}

	account, err := s.Accounts.GetByAddress(ctx, user)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		// First profile selection creates a dormant account
		account = domain.NewAccount(user, level)
	}

	now := s.Now()
	if !account.LastRiskChangeAt.IsZero() && now.Before(account.LastRiskChangeAt.Add(s.Cooldown)) {
		return domain.ErrCooldownNotMet
	}

	account.RiskLevel = level
	account.LastRiskChangeAt = now
	return s.Accounts.Save(ctx, account)
}

// GetUserRiskLevel returns the user's risk level
// Users who never set a profile default to MEDIUM; no account is created.
func (s *Service) GetUserRiskLevel(ctx context.Context, user string) (domain.RiskLevel, error) {
	account, err := s.Accounts.GetByAddress(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RiskLevelMedium, nil
		}
		return "", err
	}
	if !domain.ValidRiskLevel(account.RiskLevel) {
		return domain.RiskLevelMedium, nil
	}
	return account.RiskLevel, nil
}
