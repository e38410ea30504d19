package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Vault struct {
		Owner                   string `yaml:"owner"`
		WithdrawalManager       string `yaml:"withdrawal_manager"`
		RiskManager             string `yaml:"risk_manager"`
		MinimumDeposit          string `yaml:"minimum_deposit"`
		InstantWithdrawalFeeBps int64  `yaml:"instant_withdrawal_fee_bps"`
		WithdrawalWindowHours   int64  `yaml:"withdrawal_window_hours"`
		ReserveRatioBps         int64  `yaml:"reserve_ratio_bps"`
	} `yaml:"vault"`
	Risk struct {
		CooldownHours         int64 `yaml:"cooldown_hours"`
		Tolerance             int64 `yaml:"tolerance"`
		RebalanceThresholdBps int64 `yaml:"rebalance_threshold_bps"`
		APYWindowSize         int   `yaml:"apy_window_size"`
	} `yaml:"risk"`
	Schedule struct {
		HarvestCron    string `yaml:"harvest_cron"`
		APYRefreshCron string `yaml:"apy_refresh_cron"`
		RebalanceCron  string `yaml:"rebalance_cron"`
	} `yaml:"schedule"`
	Database struct {
		Mode        string `yaml:"mode"` // "postgres" or "memory"
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"database"`
	Events struct {
		SQLitePath string `yaml:"sqlite_path"` // empty disables event recording
	} `yaml:"events"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("VAULT_OWNER"); v != "" {
		cfg.Vault.Owner = v
	}
	if v := os.Getenv("VAULT_WITHDRAWAL_MANAGER"); v != "" {
		cfg.Vault.WithdrawalManager = v
	}
	if v := os.Getenv("VAULT_RISK_MANAGER"); v != "" {
		cfg.Vault.RiskManager = v
	}
	if v := os.Getenv("VAULT_MINIMUM_DEPOSIT"); v != "" {
		cfg.Vault.MinimumDeposit = v
	}
	if v := os.Getenv("DATABASE_MODE"); v != "" {
		cfg.Database.Mode = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Events.SQLitePath = v
	}
	if v := os.Getenv("RESERVE_RATIO_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Vault.ReserveRatioBps = bps
		}
	}

	// Defaults
	if cfg.Vault.Owner == "" {
		cfg.Vault.Owner = "owner"
	}
	if cfg.Vault.WithdrawalManager == "" {
		cfg.Vault.WithdrawalManager = cfg.Vault.Owner
	}
	if cfg.Vault.RiskManager == "" {
		cfg.Vault.RiskManager = cfg.Vault.Owner
	}
	if cfg.Vault.MinimumDeposit == "" {
		cfg.Vault.MinimumDeposit = "1"
	}
	if cfg.Vault.InstantWithdrawalFeeBps == 0 {
		cfg.Vault.InstantWithdrawalFeeBps = 50
	}
	if cfg.Vault.WithdrawalWindowHours == 0 {
		cfg.Vault.WithdrawalWindowHours = 24
	}
	if cfg.Vault.ReserveRatioBps == 0 {
		cfg.Vault.ReserveRatioBps = 1000
	}
	if cfg.Risk.CooldownHours == 0 {
		cfg.Risk.CooldownHours = 72
	}
	if cfg.Risk.Tolerance == 0 {
		cfg.Risk.Tolerance = 80
	}
	if cfg.Risk.RebalanceThresholdBps == 0 {
		cfg.Risk.RebalanceThresholdBps = 500
	}
	if cfg.Risk.APYWindowSize == 0 {
		cfg.Risk.APYWindowSize = 7
	}
	if cfg.Schedule.HarvestCron == "" {
		cfg.Schedule.HarvestCron = "0 0 * * * *"
	}
	if cfg.Schedule.APYRefreshCron == "" {
		cfg.Schedule.APYRefreshCron = "0 30 * * * *"
	}
	if cfg.Schedule.RebalanceCron == "" {
		cfg.Schedule.RebalanceCron = "0 0 */6 * * *"
	}
	if cfg.Database.Mode == "" {
		cfg.Database.Mode = "memory"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Vault.Owner == "" {
		return fmt.Errorf("vault.owner is required")
	}
	if _, err := decimal.NewFromString(c.Vault.MinimumDeposit); err != nil {
		return fmt.Errorf("vault.minimum_deposit must be a decimal number: %w", err)
	}
	if c.Vault.InstantWithdrawalFeeBps < 0 || c.Vault.InstantWithdrawalFeeBps > 10000 {
		return fmt.Errorf("vault.instant_withdrawal_fee_bps must be within [0, 10000]")
	}
	if c.Vault.ReserveRatioBps < 0 || c.Vault.ReserveRatioBps > 10000 {
		return fmt.Errorf("vault.reserve_ratio_bps must be within [0, 10000]")
	}
	if c.Database.Mode != "memory" && c.Database.Mode != "postgres" {
		return fmt.Errorf("database.mode must be \"memory\" or \"postgres\"")
	}
	if c.Database.Mode == "postgres" && c.Database.PostgresDSN == "" {
		return fmt.Errorf("database.postgres_dsn is required in postgres mode")
	}
	return nil
}

// MinimumDepositDecimal parses the configured minimum deposit
func (c *Config) MinimumDepositDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(c.Vault.MinimumDeposit)
	if err != nil {
		return decimal.NewFromInt(1)
	}
	return d
}

// WithdrawalWindow returns the withdrawal window as a duration
func (c *Config) WithdrawalWindow() time.Duration {
	return time.Duration(c.Vault.WithdrawalWindowHours) * time.Hour
}

// RiskCooldown returns the risk profile change cooldown as a duration
func (c *Config) RiskCooldown() time.Duration {
	return time.Duration(c.Risk.CooldownHours) * time.Hour
}
