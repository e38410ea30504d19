package recorder

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositEvent records a share mint.
type DepositEvent struct {
	EventID      string
	User         string
	Amount       decimal.Decimal
	SharesMinted decimal.Decimal
	RiskLevel    string
	SharePrice   decimal.Decimal
	OccurredAt   time.Time
}

// WithdrawalEvent records a share burn through either redemption path.
type WithdrawalEvent struct {
	EventID      string
	User         string
	Path         string // "INSTANT", "QUEUED", or "MANAGER"
	RequestID    *int64 // set for the queued path
	SharesBurned decimal.Decimal
	GrossAmount  decimal.Decimal
	FeeAmount    decimal.Decimal
	NetPaidOut   decimal.Decimal
	OccurredAt   time.Time
}

// HarvestEvent records realized yield pulled from the strategies.
type HarvestEvent struct {
	EventID     string
	TotalYield  decimal.Decimal
	FailedCount int
	OccurredAt  time.Time
}

// RebalanceEvent records an executed rebalance cycle.
type RebalanceEvent struct {
	EventID       string
	MovedAmount   decimal.Decimal
	WithdrawMoves int
	DepositMoves  int
	OccurredAt    time.Time
}

// Recorder persists vault events for later analysis. Implementations must
// never fail the calling operation: recording errors are the recorder's
// problem to surface.
type Recorder interface {
	RecordDeposit(evt *DepositEvent) error
	RecordWithdrawal(evt *WithdrawalEvent) error
	RecordHarvest(evt *HarvestEvent) error
	RecordRebalance(evt *RebalanceEvent) error
	Close() error
}
