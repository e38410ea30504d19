package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "memory", cfg.Database.Mode)
	assert.Equal(t, int64(50), cfg.Vault.InstantWithdrawalFeeBps)
	assert.Equal(t, 24*time.Hour, cfg.WithdrawalWindow())
	assert.Equal(t, 72*time.Hour, cfg.RiskCooldown())
	assert.True(t, cfg.MinimumDepositDecimal().IsPositive())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("vault:\n  owner: treasury-ops\n  withdrawal_window_hours: 48\ndatabase:\n  mode: memory\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	t.Setenv("VAULT_OWNER", "override-owner")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "override-owner", cfg.Vault.Owner)
	assert.Equal(t, 48*time.Hour, cfg.WithdrawalWindow())
}

func TestValidate_Rejections(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	cfg.Vault.InstantWithdrawalFeeBps = 10001
	assert.Error(t, cfg.Validate())
	cfg.Vault.InstantWithdrawalFeeBps = 50

	cfg.Database.Mode = "postgres"
	assert.Error(t, cfg.Validate(), "postgres mode needs a DSN")
	cfg.Database.PostgresDSN = "host=localhost dbname=vaultflow"
	assert.NoError(t, cfg.Validate())
}
