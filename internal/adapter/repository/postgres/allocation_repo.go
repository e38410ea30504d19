package postgres

import (
	"context"
	"fmt"

	"github.com/simaogato/vaultflow-backend/internal/domain"
)

// allocationRepository implements domain.AllocationRepository
type allocationRepository struct {
	db *DB
}

// NewAllocationRepository creates a new allocation table repository
func NewAllocationRepository(db *DB) domain.AllocationRepository {
	return &allocationRepository{db: db}
}

// GetByLevel retrieves the allocation table for a risk level
func (r *allocationRepository) GetByLevel(ctx context.Context, level domain.RiskLevel) (*domain.RiskAllocation, error) {
	query := `
		SELECT strategy_handle, bps
		FROM risk_allocations
		WHERE level = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, string(level))
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation table: %w", err)
	}
	defer rows.Close()

	table := &domain.RiskAllocation{Level: level}
	for rows.Next() {
		var entry domain.AllocationEntry
		if err := rows.Scan(&entry.StrategyHandle, &entry.Bps); err != nil {
			return nil, fmt.Errorf("failed to scan allocation entry: %w", err)
		}
		table.Entries = append(table.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allocation entries: %w", err)
	}
	if len(table.Entries) == 0 {
		return nil, domain.ErrNotFound
	}
	return table, nil
}

// Save replaces the allocation table for the level atomically
func (r *allocationRepository) Save(ctx context.Context, allocation *domain.RiskAllocation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM risk_allocations WHERE level = $1`, string(allocation.Level),
	); err != nil {
		return fmt.Errorf("failed to clear allocation table: %w", err)
	}

	for i, entry := range allocation.Entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO risk_allocations (level, strategy_handle, bps, position) VALUES ($1, $2, $3, $4)`,
			string(allocation.Level), entry.StrategyHandle, entry.Bps, i,
		); err != nil {
			return fmt.Errorf("failed to insert allocation entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit allocation table: %w", err)
	}
	return nil
}
