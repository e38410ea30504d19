package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
)

// vaultStateRepository implements domain.VaultStateRepository
// The vault state is a single row with a fixed id.
type vaultStateRepository struct {
	db *DB
}

// NewVaultStateRepository creates a new vault state repository
func NewVaultStateRepository(db *DB) domain.VaultStateRepository {
	return &vaultStateRepository{db: db}
}

// Get retrieves the vault state row
func (r *vaultStateRepository) Get(ctx context.Context) (*domain.VaultState, error) {
	query := `
		SELECT total_shares, total_deposits, liquid_reserve, interest_index, paused, last_rebalance
		FROM vault_state
		WHERE id = 1
	`

	var state domain.VaultState
	var totalShares, totalDeposits, liquidReserve, interestIndex string
	var lastRebalance sql.NullTime

	err := r.db.QueryRowContext(ctx, query).Scan(
		&totalShares,
		&totalDeposits,
		&liquidReserve,
		&interestIndex,
		&state.Paused,
		&lastRebalance,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get vault state: %w", err)
	}

	if state.TotalShares, err = decimal.NewFromString(totalShares); err != nil {
		return nil, fmt.Errorf("failed to parse total_shares: %w", err)
	}
	if state.TotalDeposits, err = decimal.NewFromString(totalDeposits); err != nil {
		return nil, fmt.Errorf("failed to parse total_deposits: %w", err)
	}
	if state.LiquidReserve, err = decimal.NewFromString(liquidReserve); err != nil {
		return nil, fmt.Errorf("failed to parse liquid_reserve: %w", err)
	}
	if state.InterestIndex, err = decimal.NewFromString(interestIndex); err != nil {
		return nil, fmt.Errorf("failed to parse interest_index: %w", err)
	}
	if lastRebalance.Valid {
		state.LastRebalance = lastRebalance.Time.UTC()
	}
	return &state, nil
}

// Save upserts the vault state row
func (r *vaultStateRepository) Save(ctx context.Context, state *domain.VaultState) error {
	query := `
		INSERT INTO vault_state (id, total_shares, total_deposits, liquid_reserve, interest_index, paused, last_rebalance)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			total_shares = EXCLUDED.total_shares,
			total_deposits = EXCLUDED.total_deposits,
			liquid_reserve = EXCLUDED.liquid_reserve,
			interest_index = EXCLUDED.interest_index,
			paused = EXCLUDED.paused,
			last_rebalance = EXCLUDED.last_rebalance
	`

	var lastRebalance interface{}
	if !state.LastRebalance.IsZero() {
		lastRebalance = state.LastRebalance
	}

	_, err := r.db.ExecContext(ctx, query,
		state.TotalShares.String(),
		state.TotalDeposits.String(),
		state.LiquidReserve.String(),
		state.InterestIndex.String(),
		state.Paused,
		lastRebalance,
	)
	if err != nil {
		return fmt.Errorf("failed to save vault state: %w", err)
	}
	return nil
}
