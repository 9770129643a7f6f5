package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InstanceKind string

const (
	InstanceRecurring InstanceKind = "recurring"
	InstanceCarryover InstanceKind = "carryover"
)

// CarryoverInstanceID is the synthetic rule id of carryover instances.
const CarryoverInstanceID = "carryover"

// SettlementTag marks an instance as the deferred settlement of a rule
// occurrence in Period (YYYY-MM).
type SettlementTag struct {
	RuleID string `json:"ruleId"`
	Period string `json:"period"`
}

// ForecastInstance is derived on every forecast call and never persisted.
type ForecastInstance struct {
	RuleID     string          `json:"ruleId"`
	DueDate    time.Time       `json:"dueDate"`
	Amount     decimal.Decimal `json:"amount"`
	Category   Category        `json:"category"`
	Direction  Direction       `json:"direction"`
	Kind       InstanceKind    `json:"kind"`
	Label      string          `json:"label,omitempty"`
	Settlement *SettlementTag  `json:"metadata,omitempty"`
}

// IsSettlement reports whether the instance is a deferred settlement.
func (i ForecastInstance) IsSettlement() bool {
	return i.Category == CategoryDeferredSettlement
}

// MonthItem is one line of a month breakdown.
type MonthItem struct {
	RuleID    string          `json:"ruleId"`
	Label     string          `json:"label,omitempty"`
	DueDate   time.Time       `json:"dueDate"`
	Amount    decimal.Decimal `json:"amount"`
	Category  Category        `json:"category"`
	Direction Direction       `json:"direction"`
	Kind      InstanceKind    `json:"kind"`
}

type MonthSummary struct {
	Month              string          `json:"month"`
	Immediate          decimal.Decimal `json:"immediate"`
	Deferred           decimal.Decimal `json:"deferred"`
	Income             decimal.Decimal `json:"income"`
	OverdraftIn        decimal.Decimal `json:"overdraftIn"`
	CarryoverPaid      decimal.Decimal `json:"carryoverPaid"`
	OverdraftRemaining decimal.Decimal `json:"overdraftRemaining"`
	TotalWithCarryover decimal.Decimal `json:"totalWithCarryover"`
	FinalBalance       decimal.Decimal `json:"finalBalance"`
	Items              []MonthItem     `json:"items"`
}

type ForecastResult struct {
	Instances         []ForecastInstance `json:"instances"`
	MonthSummaries    []MonthSummary     `json:"monthSummaries"`
	StartingOverdraft decimal.Decimal    `json:"startingOverdraft"`
	Warnings          []string           `json:"warnings,omitempty"`
}
