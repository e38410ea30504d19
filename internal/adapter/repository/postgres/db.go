package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=vaultflow sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// EnsureSchema creates the vault tables when they do not exist yet
func (db *DB) EnsureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vault_accounts (
		address             TEXT PRIMARY KEY,
		shares              DECIMAL NOT NULL DEFAULT 0,
		escrowed_shares     DECIMAL NOT NULL DEFAULT 0,
		deposited_principal DECIMAL NOT NULL DEFAULT 0,
		accrued_interest    DECIMAL NOT NULL DEFAULT 0,
		interest_checkpoint DECIMAL NOT NULL DEFAULT 0,
		risk_level          TEXT NOT NULL,
		last_risk_change_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS withdrawal_requests (
		id           BIGINT PRIMARY KEY,
		owner        TEXT NOT NULL,
		shares       DECIMAL NOT NULL,
		requested_at TIMESTAMPTZ NOT NULL,
		status       TEXT NOT NULL,
		settled_at   TIMESTAMPTZ,
		paid_out     DECIMAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_status ON withdrawal_requests (status);

	CREATE TABLE IF NOT EXISTS strategies (
		handle             TEXT PRIMARY KEY,
		weight             BIGINT NOT NULL,
		risk_score         BIGINT NOT NULL,
		max_allocation_bps BIGINT NOT NULL,
		min_allocation_bps BIGINT NOT NULL,
		is_active          BOOLEAN NOT NULL,
		last_apy           DECIMAL NOT NULL DEFAULT 0,
		apy_moving_average DECIMAL NOT NULL DEFAULT 0,
		apy_history        TEXT[] NOT NULL DEFAULT '{}',
		performance_score  DECIMAL NOT NULL DEFAULT 100,
		registered_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS risk_allocations (
		level           TEXT NOT NULL,
		strategy_handle TEXT NOT NULL,
		bps             BIGINT NOT NULL,
		position        INT NOT NULL,
		PRIMARY KEY (level, strategy_handle)
	);

	CREATE TABLE IF NOT EXISTS vault_state (
		id             SMALLINT PRIMARY KEY CHECK (id = 1),
		total_shares   DECIMAL NOT NULL DEFAULT 0,
		total_deposits DECIMAL NOT NULL DEFAULT 0,
		liquid_reserve DECIMAL NOT NULL DEFAULT 0,
		interest_index DECIMAL NOT NULL DEFAULT 0,
		paused         BOOLEAN NOT NULL DEFAULT FALSE,
		last_rebalance TIMESTAMPTZ
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
