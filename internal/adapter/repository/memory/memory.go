// Package memory provides in-memory implementations of the domain
// repositories. They back the server's memory storage mode and the test
// suites; ordering is deterministic and withdrawal request ids are
// monotonically increasing from 0, matching the postgres adapter.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/simaogato/vaultflow-backend/internal/domain"
)

// AccountRepository implements domain.AccountRepository
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

// NewAccountRepository creates a new in-memory account repository
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]domain.Account)}
}

func (r *AccountRepository) GetByAddress(ctx context.Context, address string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[address]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := account
	return &copied, nil
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.Address] = *account
	return nil
}

func (r *AccountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addresses := make([]string, 0, len(r.accounts))
	for address := range r.accounts {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	accounts := make([]*domain.Account, 0, len(addresses))
	for _, address := range addresses {
		copied := r.accounts[address]
		accounts = append(accounts, &copied)
	}
	return accounts, nil
}

// WithdrawalRequestRepository implements domain.WithdrawalRequestRepository
type WithdrawalRequestRepository struct {
	mu       sync.RWMutex
	requests map[int64]domain.WithdrawalRequest
	nextID   int64
}

// NewWithdrawalRequestRepository creates a new in-memory request repository
func NewWithdrawalRequestRepository() *WithdrawalRequestRepository {
	return &WithdrawalRequestRepository{requests: make(map[int64]domain.WithdrawalRequest)}
}

func (r *WithdrawalRequestRepository) Create(ctx context.Context, request *domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	request.ID = r.nextID
	r.nextID++
	r.requests[request.ID] = *request
	return nil
}

func (r *WithdrawalRequestRepository) GetByID(ctx context.Context, id int64) (*domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, domain.ErrInvalidRequestID
	}
	copied := request
	return &copied, nil
}

func (r *WithdrawalRequestRepository) Update(ctx context.Context, request *domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[request.ID]; !ok {
		return domain.ErrInvalidRequestID
	}
	r.requests[request.ID] = *request
	return nil
}

func (r *WithdrawalRequestRepository) ListPending(ctx context.Context) ([]*domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.requests))
	for id, request := range r.requests {
		if request.Status == domain.WithdrawalStatusPending {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pending := make([]*domain.WithdrawalRequest, 0, len(ids))
	for _, id := range ids {
		copied := r.requests[id]
		pending = append(pending, &copied)
	}
	return pending, nil
}

// StrategyRepository implements domain.StrategyRepository
type StrategyRepository struct {
	mu      sync.RWMutex
	records map[string]domain.StrategyRecord
	order   []string
}

// NewStrategyRepository creates a new in-memory strategy record repository
func NewStrategyRepository() *StrategyRepository {
	return &StrategyRepository{records: make(map[string]domain.StrategyRecord)}
}

func (r *StrategyRepository) GetByHandle(ctx context.Context, handle string) (*domain.StrategyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[handle]
	if !ok {
		return nil, domain.ErrStrategyNotFound
	}
	copied := cloneRecord(record)
	return &copied, nil
}

func (r *StrategyRepository) Save(ctx context.Context, record *domain.StrategyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[record.Handle]; !ok {
		r.order = append(r.order, record.Handle)
	}
	r.records[record.Handle] = cloneRecord(*record)
	return nil
}

func (r *StrategyRepository) Delete(ctx context.Context, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[handle]; !ok {
		return domain.ErrStrategyNotFound
	}
	delete(r.records, handle)
	for i, h := range r.order {
		if h == handle {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *StrategyRepository) List(ctx context.Context) ([]*domain.StrategyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]*domain.StrategyRecord, 0, len(r.order))
	for _, handle := range r.order {
		copied := cloneRecord(r.records[handle])
		records = append(records, &copied)
	}
	return records, nil
}

func cloneRecord(record domain.StrategyRecord) domain.StrategyRecord {
	copied := record
	copied.APYHistory = append([]decimal.Decimal(nil), record.APYHistory...)
	return copied
}

// AllocationRepository implements domain.AllocationRepository
type AllocationRepository struct {
	mu     sync.RWMutex
	tables map[domain.RiskLevel]domain.RiskAllocation
}

// NewAllocationRepository creates a new in-memory allocation table repository
func NewAllocationRepository() *AllocationRepository {
	return &AllocationRepository{tables: make(map[domain.RiskLevel]domain.RiskAllocation)}
}

func (r *AllocationRepository) GetByLevel(ctx context.Context, level domain.RiskLevel) (*domain.RiskAllocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.tables[level]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := domain.RiskAllocation{
		Level:   table.Level,
		Entries: append([]domain.AllocationEntry(nil), table.Entries...),
	}
	return &copied, nil
}

func (r *AllocationRepository) Save(ctx context.Context, allocation *domain.RiskAllocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[allocation.Level] = domain.RiskAllocation{
		Level:   allocation.Level,
		Entries: append([]domain.AllocationEntry(nil), allocation.Entries...),
	}
	return nil
}

// VaultStateRepository implements domain.VaultStateRepository
type VaultStateRepository struct {
	mu    sync.RWMutex
	state *domain.VaultState
}

// NewVaultStateRepository creates a new in-memory vault state repository
func NewVaultStateRepository() *VaultStateRepository {
	return &VaultStateRepository{}
}

func (r *VaultStateRepository) Get(ctx context.Context) (*domain.VaultState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == nil {
		return nil, domain.ErrNotFound
	}
	copied := *r.state
	return &copied, nil
}

func (r *VaultStateRepository) Save(ctx context.Context, state *domain.VaultState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *state
	r.state = &copied
	return nil
}
