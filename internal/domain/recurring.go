package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

func (d Direction) IsValid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

type Cadence string

const (
	CadenceWeekly    Cadence = "weekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceYearly    Cadence = "yearly"
)

func (c Cadence) IsValid() bool {
	switch c {
	case CadenceWeekly, CadenceMonthly, CadenceQuarterly, CadenceYearly:
		return true
	}
	return false
}

// MonthStep returns the number of months between occurrences, or 0 for weekly.
func (c Cadence) MonthStep() int {
	switch c {
	case CadenceMonthly:
		return 1
	case CadenceQuarterly:
		return 3
	case CadenceYearly:
		return 12
	}
	return 0
}

// SettlementMode is shared by rules (settlement mode) and transactions
// (payment mode).
type SettlementMode string

const (
	SettlementImmediate SettlementMode = "immediate"
	SettlementDeferred  SettlementMode = "deferred"
)

func (m SettlementMode) IsValid() bool {
	return m == SettlementImmediate || m == SettlementDeferred
}

const (
	MinDayOfMonth = 1
	MaxDayOfMonth = 31
	MinWeekday    = 0
	MaxWeekday    = 6
)

type RecurringRule struct {
	ID             uuid.UUID       `json:"id"`
	OwnerID        string          `json:"ownerId"`
	Amount         decimal.Decimal `json:"amount"`
	Direction      Direction       `json:"direction"`
	Cadence        Cadence         `json:"cadence"`
	DayOfMonth     *int            `json:"dayOfMonth,omitempty"`
	Weekday        *int            `json:"weekday,omitempty"`
	SettlementMode SettlementMode  `json:"settlementMode"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        *time.Time      `json:"endDate,omitempty"`
	Category       Category        `json:"category"`
	Description    string          `json:"description"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	DeletedAt      *time.Time      `json:"deletedAt,omitempty"`
}

// IsDeferredExpense reports whether occurrences of the rule settle in the
// following month.
func (r *RecurringRule) IsDeferredExpense() bool {
	return r.SettlementMode == SettlementDeferred && r.Direction == DirectionExpense
}

type RecurringRuleRepository interface {
	Create(ctx context.Context, rule *RecurringRule) (*RecurringRule, error)
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*RecurringRule, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*RecurringRule, error)
	Update(ctx context.Context, rule *RecurringRule) (*RecurringRule, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}
