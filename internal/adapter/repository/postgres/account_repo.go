package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
)

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

// GetByAddress retrieves an account by its address
func (r *accountRepository) GetByAddress(ctx context.Context, address string) (*domain.Account, error) {
	query := `
		SELECT address, shares, escrowed_shares, deposited_principal,
		       accrued_interest, interest_checkpoint, risk_level, last_risk_change_at
		FROM vault_accounts
		WHERE address = $1
	`

	row := r.db.QueryRowContext(ctx, query, address)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by address: %w", err)
	}
	return account, nil
}

// Save inserts or updates an account
func (r *accountRepository) Save(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO vault_accounts (
			address, shares, escrowed_shares, deposited_principal,
			accrued_interest, interest_checkpoint, risk_level, last_risk_change_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (address) DO UPDATE SET
			shares = EXCLUDED.shares,
			escrowed_shares = EXCLUDED.escrowed_shares,
			deposited_principal = EXCLUDED.deposited_principal,
			accrued_interest = EXCLUDED.accrued_interest,
			interest_checkpoint = EXCLUDED.interest_checkpoint,
			risk_level = EXCLUDED.risk_level,
			last_risk_change_at = EXCLUDED.last_risk_change_at
	`

	var lastChange interface{}
	if !account.LastRiskChangeAt.IsZero() {
		lastChange = account.LastRiskChangeAt
	}

	_, err := r.db.ExecContext(ctx, query,
		account.Address,
		account.Shares.String(),
		account.EscrowedShares.String(),
		account.DepositedPrincipal.String(),
		account.AccruedInterest.String(),
		account.InterestCheckpoint.String(),
		string(account.RiskLevel),
		lastChange,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// List retrieves all accounts ordered by address
func (r *accountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	query := `
		SELECT address, shares, escrowed_shares, deposited_principal,
		       accrued_interest, interest_checkpoint, risk_level, last_risk_change_at
		FROM vault_accounts
		ORDER BY address
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var shares, escrowed, principal, interest, checkpoint string
	var riskLevel string
	var lastChange sql.NullTime

	err := row.Scan(
		&account.Address,
		&shares,
		&escrowed,
		&principal,
		&interest,
		&checkpoint,
		&riskLevel,
		&lastChange,
	)
	if err != nil {
		return nil, err
	}

	if account.Shares, err = decimal.NewFromString(shares); err != nil {
		return nil, fmt.Errorf("failed to parse shares: %w", err)
	}
	if account.EscrowedShares, err = decimal.NewFromString(escrowed); err != nil {
		return nil, fmt.Errorf("failed to parse escrowed_shares: %w", err)
	}
	if account.DepositedPrincipal, err = decimal.NewFromString(principal); err != nil {
		return nil, fmt.Errorf("failed to parse deposited_principal: %w", err)
	}
	if account.AccruedInterest, err = decimal.NewFromString(interest); err != nil {
		return nil, fmt.Errorf("failed to parse accrued_interest: %w", err)
	}
	if account.InterestCheckpoint, err = decimal.NewFromString(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to parse interest_checkpoint: %w", err)
	}

	account.RiskLevel = domain.RiskLevel(riskLevel)
	if lastChange.Valid {
		account.LastRiskChangeAt = lastChange.Time.UTC()
	} else {
		account.LastRiskChangeAt = time.Time{}
	}
	return &account, nil
}
