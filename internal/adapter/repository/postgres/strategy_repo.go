package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
)

// strategyRepository implements domain.StrategyRepository
type strategyRepository struct {
	db *DB
}

// NewStrategyRepository creates a new strategy repository
func NewStrategyRepository(db *DB) domain.StrategyRepository {
	return &strategyRepository{db: db}
}

// GetByHandle retrieves a strategy record by its handle
func (r *strategyRepository) GetByHandle(ctx context.Context, handle string) (*domain.StrategyRecord, error) {
	query := `
		SELECT handle, weight, risk_score, max_allocation_bps, min_allocation_bps,
		       is_active, last_apy, apy_moving_average, apy_history, performance_score
		FROM strategies
		WHERE handle = $1
	`

	record, err := scanStrategyRecord(r.db.QueryRowContext(ctx, query, handle))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStrategyNotFound
		}
		return nil, fmt.Errorf("failed to get strategy by handle: %w", err)
	}
	return record, nil
}

// Save inserts or updates a strategy record
func (r *strategyRepository) Save(ctx context.Context, record *domain.StrategyRecord) error {
	query := `
		INSERT INTO strategies (
			handle, weight, risk_score, max_allocation_bps, min_allocation_bps,
			is_active, last_apy, apy_moving_average, apy_history, performance_score
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (handle) DO UPDATE SET
			weight = EXCLUDED.weight,
			risk_score = EXCLUDED.risk_score,
			max_allocation_bps = EXCLUDED.max_allocation_bps,
			min_allocation_bps = EXCLUDED.min_allocation_bps,
			is_active = EXCLUDED.is_active,
			last_apy = EXCLUDED.last_apy,
			apy_moving_average = EXCLUDED.apy_moving_average,
			apy_history = EXCLUDED.apy_history,
			performance_score = EXCLUDED.performance_score
	`

	history := make([]string, len(record.APYHistory))
	for i, sample := range record.APYHistory {
		history[i] = sample.String()
	}

	_, err := r.db.ExecContext(ctx, query,
		record.Handle,
		record.Weight,
		record.RiskScore,
		record.MaxAllocationBps,
		record.MinAllocationBps,
		record.IsActive,
		record.LastAPY.String(),
		record.APYMovingAverage.String(),
		pq.Array(history),
		record.PerformanceScore.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save strategy: %w", err)
	}
	return nil
}

// Delete removes a strategy record
func (r *strategyRepository) Delete(ctx context.Context, handle string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM strategies WHERE handle = $1`, handle)
	if err != nil {
		return fmt.Errorf("failed to delete strategy: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrStrategyNotFound
	}
	return nil
}

// List retrieves all strategy records in registration order
func (r *strategyRepository) List(ctx context.Context) ([]*domain.StrategyRecord, error) {
	query := `
		SELECT handle, weight, risk_score, max_allocation_bps, min_allocation_bps,
		       is_active, last_apy, apy_moving_average, apy_history, performance_score
		FROM strategies
		ORDER BY registered_at, handle
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer rows.Close()

	var records []*domain.StrategyRecord
	for rows.Next() {
		record, err := scanStrategyRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate strategies: %w", err)
	}
	return records, nil
}

func scanStrategyRecord(row rowScanner) (*domain.StrategyRecord, error) {
	var record domain.StrategyRecord
	var lastAPY, movingAverage, performanceScore string
	var history pq.StringArray

	err := row.Scan(
		&record.Handle,
		&record.Weight,
		&record.RiskScore,
		&record.MaxAllocationBps,
		&record.MinAllocationBps,
		&record.IsActive,
		&lastAPY,
		&movingAverage,
		&history,
		&performanceScore,
	)
	if err != nil {
		return nil, err
	}

	if record.LastAPY, err = decimal.NewFromString(lastAPY); err != nil {
		return nil, fmt.Errorf("failed to parse last_apy: %w", err)
	}
	if record.APYMovingAverage, err = decimal.NewFromString(movingAverage); err != nil {
		return nil, fmt.Errorf("failed to parse apy_moving_average: %w", err)
	}
	if record.PerformanceScore, err = decimal.NewFromString(performanceScore); err != nil {
		return nil, fmt.Errorf("failed to parse performance_score: %w", err)
	}

	record.APYHistory = make([]decimal.Decimal, len(history))
	for i, sample := range history {
		if record.APYHistory[i], err = decimal.NewFromString(sample); err != nil {
			return nil, fmt.Errorf("failed to parse apy_history sample: %w", err)
		}
	}
	return &record, nil
}
