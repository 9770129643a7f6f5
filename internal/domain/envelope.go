package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BudgetEnvelope struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   string          `json:"ownerId"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Remaining decimal.Decimal `json:"remaining"`
	IsMaster  bool            `json:"isMaster"`
	ParentID  *uuid.UUID      `json:"parentId,omitempty"`
	Category  *Category       `json:"category,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type EnvelopeRepository interface {
	Create(ctx context.Context, envelope *BudgetEnvelope) (*BudgetEnvelope, error)
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*BudgetEnvelope, error)
	// GetMaster returns ErrNoMaster when the owner has none.
	GetMaster(ctx context.Context, ownerID string) (*BudgetEnvelope, error)
	// GetMasterForUpdate locks the master row for the rest of the enclosing unit.
	GetMasterForUpdate(ctx context.Context, ownerID string) (*BudgetEnvelope, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*BudgetEnvelope, error)
	ListChildren(ctx context.Context, ownerID string, masterID uuid.UUID) ([]*BudgetEnvelope, error)
	// FindChildByCategory returns ErrEnvelopeNotFound when no child matches.
	FindChildByCategory(ctx context.Context, ownerID string, category Category) (*BudgetEnvelope, error)
	Update(ctx context.Context, envelope *BudgetEnvelope) (*BudgetEnvelope, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	DeleteChildren(ctx context.Context, ownerID string, masterID uuid.UUID) (int64, error)
}
