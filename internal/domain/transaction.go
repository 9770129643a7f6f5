package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LinkKind identifies which generator owns a transaction row.
type LinkKind string

const (
	LinkRecurring  LinkKind = "recurring"
	LinkSettlement LinkKind = "settlement"
	LinkCarryover  LinkKind = "carryover"
)

// TransactionLink is the idempotency key of an engine-generated row. The store
// enforces uniqueness on (owner, kind, source, period).
//
//	recurring:  source = rule id,          period = occurrence day (YYYY-MM-DD)
//	settlement: source = primary tx id,    period = primary month (YYYY-MM)
//	carryover:  source = deficit month,    period = target month (YYYY-MM)
type TransactionLink struct {
	Kind     LinkKind `json:"kind"`
	SourceID string   `json:"sourceId"`
	Period   string   `json:"period"`
}

// Matches reports whether two links address the same generated row.
func (l TransactionLink) Matches(other TransactionLink) bool {
	return l.Kind == other.Kind && l.SourceID == other.SourceID && l.Period == other.Period
}

type Transaction struct {
	ID           uuid.UUID        `json:"id"`
	OwnerID      string           `json:"ownerId"`
	Amount       decimal.Decimal  `json:"amount"`
	Direction    Direction        `json:"direction"`
	Date         time.Time        `json:"date"`
	Category     Category         `json:"category"`
	Description  string           `json:"description"`
	PaymentMode  SettlementMode   `json:"paymentMode"`
	IsSettlement bool             `json:"isSettlement"`
	EnvelopeID   *uuid.UUID       `json:"envelopeId,omitempty"`
	Link         *TransactionLink `json:"link,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	DeletedAt    *time.Time       `json:"deletedAt,omitempty"`
}

// IsDeferredPrimary reports whether the row is a primary charge whose cash
// effect happens through a settlement row.
func (t *Transaction) IsDeferredPrimary() bool {
	return !t.IsSettlement && t.PaymentMode == SettlementDeferred && t.DeletedAt == nil
}

// CountsAsCashOutflow reports whether the row moves cash in its own month.
func (t *Transaction) CountsAsCashOutflow() bool {
	if t.Direction != DirectionExpense || t.DeletedAt != nil {
		return false
	}
	return t.IsSettlement || t.PaymentMode != SettlementDeferred
}

// Metadata renders the link as the key/value map exposed to API clients.
func (t *Transaction) Metadata() map[string]string {
	if t.Link == nil {
		return nil
	}
	meta := map[string]string{"period": t.Link.Period}
	switch t.Link.Kind {
	case LinkRecurring:
		meta["recurringRuleId"] = t.Link.SourceID
	case LinkSettlement:
		meta["settlementOf"] = t.Link.SourceID
	case LinkCarryover:
		meta["carryoverFrom"] = t.Link.SourceID
	}
	return meta
}

type TransactionFilters struct {
	StartDate  *time.Time
	EndDate    *time.Time // exclusive
	EnvelopeID *uuid.UUID
	Direction  *Direction
	Category   *Category
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) (*Transaction, error)
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*Transaction, error)
	// GetByIDForUpdate locks the row for the rest of the enclosing unit.
	GetByIDForUpdate(ctx context.Context, ownerID string, id uuid.UUID) (*Transaction, error)
	List(ctx context.Context, ownerID string, filters *TransactionFilters) ([]*Transaction, error)
	Update(ctx context.Context, tx *Transaction) (*Transaction, error)
	SoftDelete(ctx context.Context, ownerID string, id uuid.UUID) error
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	// FindByLinkSource returns every live row generated from the given source,
	// across all periods.
	FindByLinkSource(ctx context.Context, ownerID string, kind LinkKind, sourceID string) ([]*Transaction, error)
	// FindByLink returns the row for an exact idempotency key, soft-deleted rows
	// included, or ErrTransactionNotFound.
	FindByLink(ctx context.Context, ownerID string, link TransactionLink) (*Transaction, error)
	ListSettlements(ctx context.Context, ownerID string) ([]*Transaction, error)
	ListDeferredPrimaries(ctx context.Context, ownerID string) ([]*Transaction, error)
	DetachEnvelopes(ctx context.Context, ownerID string, envelopeIDs []uuid.UUID) (int64, error)
	SumExpensesByEnvelope(ctx context.Context, ownerID string, envelopeID uuid.UUID) (decimal.Decimal, error)
	// SumCashOutflow sums expenses in [start, end) that move cash in that window.
	SumCashOutflow(ctx context.Context, ownerID string, start, end time.Time) (decimal.Decimal, error)
}
