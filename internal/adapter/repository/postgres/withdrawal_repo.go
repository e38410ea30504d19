package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
)

// withdrawalRepository implements domain.WithdrawalRequestRepository
type withdrawalRepository struct {
	db *DB
}

// NewWithdrawalRequestRepository creates a new withdrawal request repository
func NewWithdrawalRequestRepository(db *DB) domain.WithdrawalRequestRepository {
	return &withdrawalRepository{db: db}
}

// Create inserts a new request and assigns the next vault-scoped id,
// starting from 0. The vault serializes writes, so the MAX(id)+1 assignment
// cannot race with another Create.
func (r *withdrawalRepository) Create(ctx context.Context, request *domain.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (id, owner, shares, requested_at, status, settled_at, paid_out)
		VALUES (
			COALESCE((SELECT MAX(id) + 1 FROM withdrawal_requests), 0),
			$1, $2, $3, $4, NULL, $5
		)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		request.Owner,
		request.Shares.String(),
		request.RequestedAt,
		string(request.Status),
		request.PaidOut.String(),
	).Scan(&request.ID)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return nil
}

// GetByID retrieves a request by its id
func (r *withdrawalRepository) GetByID(ctx context.Context, id int64) (*domain.WithdrawalRequest, error) {
	query := `
		SELECT id, owner, shares, requested_at, status, settled_at, paid_out
		FROM withdrawal_requests
		WHERE id = $1
	`

	request, err := scanWithdrawalRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidRequestID
		}
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	return request, nil
}

// Update persists a request's status transition
func (r *withdrawalRepository) Update(ctx context.Context, request *domain.WithdrawalRequest) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $2, settled_at = $3, paid_out = $4
		WHERE id = $1
	`

	var settledAt interface{}
	if request.SettledAt != nil {
		settledAt = *request.SettledAt
	}

	result, err := r.db.ExecContext(ctx, query,
		request.ID,
		string(request.Status),
		settledAt,
		request.PaidOut.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrInvalidRequestID
	}
	return nil
}

// ListPending retrieves all pending requests ordered by id
func (r *withdrawalRepository) ListPending(ctx context.Context) ([]*domain.WithdrawalRequest, error) {
	query := `
		SELECT id, owner, shares, requested_at, status, settled_at, paid_out
		FROM withdrawal_requests
		WHERE status = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, string(domain.WithdrawalStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawal requests: %w", err)
	}
	defer rows.Close()

	var requests []*domain.WithdrawalRequest
	for rows.Next() {
		request, err := scanWithdrawalRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate withdrawal requests: %w", err)
	}
	return requests, nil
}

func scanWithdrawalRequest(row rowScanner) (*domain.WithdrawalRequest, error) {
	var request domain.WithdrawalRequest
	var shares, paidOut string
	var status string
	var settledAt sql.NullTime

	err := row.Scan(
		&request.ID,
		&request.Owner,
		&shares,
		&request.RequestedAt,
		&status,
		&settledAt,
		&paidOut,
	)
	if err != nil {
		return nil, err
	}

	if request.Shares, err = decimal.NewFromString(shares); err != nil {
		return nil, fmt.Errorf("failed to parse shares: %w", err)
	}
	if request.PaidOut, err = decimal.NewFromString(paidOut); err != nil {
		return nil, fmt.Errorf("failed to parse paid_out: %w", err)
	}

	request.Status = domain.WithdrawalStatus(status)
	request.RequestedAt = request.RequestedAt.UTC()
	if settledAt.Valid {
		settled := settledAt.Time.UTC()
		request.SettledAt = &settled
	}
	return &request, nil
}
