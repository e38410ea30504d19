package recorder

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists vault events to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the vault writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("sqlite recorder opened", slog.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS deposit_events (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id      TEXT NOT NULL,
			occurred_at   INTEGER NOT NULL,
			user_address  TEXT NOT NULL,
			amount        TEXT NOT NULL,
			shares_minted TEXT NOT NULL,
			risk_level    TEXT NOT NULL,
			share_price   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deposit_user ON deposit_events(user_address)`,

		`CREATE TABLE IF NOT EXISTS withdrawal_events (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id      TEXT NOT NULL,
			occurred_at   INTEGER NOT NULL,
			user_address  TEXT NOT NULL,
			path          TEXT NOT NULL,
			request_id    INTEGER,
			shares_burned TEXT NOT NULL,
			gross_amount  TEXT NOT NULL,
			fee_amount    TEXT NOT NULL,
			net_paid_out  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawal_user ON withdrawal_events(user_address)`,

		`CREATE TABLE IF NOT EXISTS harvest_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id     TEXT NOT NULL,
			occurred_at  INTEGER NOT NULL,
			total_yield  TEXT NOT NULL,
			failed_count INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS rebalance_events (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id       TEXT NOT NULL,
			occurred_at    INTEGER NOT NULL,
			moved_amount   TEXT NOT NULL,
			withdraw_moves INTEGER NOT NULL,
			deposit_moves  INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordDeposit(evt *DepositEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		`INSERT INTO deposit_events (event_id, occurred_at, user_address, amount, shares_minted, risk_level, share_price)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.EventID, evt.OccurredAt.Unix(), evt.User,
		evt.Amount.String(), evt.SharesMinted.String(), evt.RiskLevel, evt.SharePrice.String(),
	)
	if err != nil {
		return fmt.Errorf("record deposit: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordWithdrawal(evt *WithdrawalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var requestID any
	if evt.RequestID != nil {
		requestID = *evt.RequestID
	}
	_, err := r.db.Exec(
		`INSERT INTO withdrawal_events (event_id, occurred_at, user_address, path, request_id, shares_burned, gross_amount, fee_amount, net_paid_out)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.EventID, evt.OccurredAt.Unix(), evt.User, evt.Path, requestID,
		evt.SharesBurned.String(), evt.GrossAmount.String(), evt.FeeAmount.String(), evt.NetPaidOut.String(),
	)
	if err != nil {
		return fmt.Errorf("record withdrawal: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordHarvest(evt *HarvestEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		`INSERT INTO harvest_events (event_id, occurred_at, total_yield, failed_count)
		 VALUES (?, ?, ?, ?)`,
		evt.EventID, evt.OccurredAt.Unix(), evt.TotalYield.String(), evt.FailedCount,
	)
	if err != nil {
		return fmt.Errorf("record harvest: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordRebalance(evt *RebalanceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		`INSERT INTO rebalance_events (event_id, occurred_at, moved_amount, withdraw_moves, deposit_moves)
		 VALUES (?, ?, ?, ?, ?)`,
		evt.EventID, evt.OccurredAt.Unix(), evt.MovedAmount.String(), evt.WithdrawMoves, evt.DepositMoves,
	)
	if err != nil {
		return fmt.Errorf("record rebalance: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
