package service

import (
	"context"
	"strings"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/dankozobeats/voicetracker-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TransactionService handles transaction business logic. Every mutation is
// one unit: primary write, settlement reconciliation, envelope refresh.
type TransactionService struct {
	transactionRepo domain.TransactionRepository
	txManager       domain.TxManager
	envelopes       *EnvelopeService
	settlements     *SettlementService
	eventPublisher  websocket.EventPublisher
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(
	transactionRepo domain.TransactionRepository,
	txManager domain.TxManager,
	envelopes *EnvelopeService,
	settlements *SettlementService,
) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		txManager:       txManager,
		envelopes:       envelopes,
		settlements:     settlements,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *TransactionService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *TransactionService) publishEvent(ownerID string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(ownerID, event)
	}
}

// TransactionInput holds the input for creating or replacing a transaction
type TransactionInput struct {
	Amount      decimal.Decimal
	Direction   domain.Direction
	Date        time.Time
	Category    string
	Description string
	PaymentMode domain.SettlementMode
	EnvelopeID  *uuid.UUID
}

// GetTransaction retrieves a transaction by ID
func (s *TransactionService) GetTransaction(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Transaction, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	return s.transactionRepo.GetByID(ctx, ownerID, id)
}

// ListTransactions returns the owner's live transactions matching filters
func (s *TransactionService) ListTransactions(ctx context.Context, ownerID string, filters *domain.TransactionFilters) ([]*domain.Transaction, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	return s.transactionRepo.List(ctx, ownerID, filters)
}

// CreateTransaction records a transaction. Expenses without an explicit
// envelope are filed under the child envelope of their category.
func (s *TransactionService) CreateTransaction(ctx context.Context, ownerID string, input TransactionInput) (*domain.Transaction, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	tx := &domain.Transaction{OwnerID: ownerID}
	if err := applyTransactionInput(tx, input); err != nil {
		return nil, err
	}

	var created *domain.Transaction
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.fileEnvelope(ctx, tx, input.EnvelopeID); err != nil {
			return err
		}

		var err error
		created, err = s.transactionRepo.Create(ctx, tx)
		if err != nil {
			return err
		}

		s.syncSettlement(ctx, created)
		return s.refreshEnvelopes(ctx, ownerID, created.EnvelopeID)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("owner_id", ownerID).Str("transaction_id", created.ID.String()).Str("payment_mode", string(created.PaymentMode)).Msg("Transaction created")
	s.publishEvent(ownerID, websocket.TransactionCreated(created))
	return created, nil
}

// UpdateTransaction replaces a transaction's fields. Settlement and carryover
// rows are read-only.
func (s *TransactionService) UpdateTransaction(ctx context.Context, ownerID string, id uuid.UUID, input TransactionInput) (*domain.Transaction, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}

	var updated *domain.Transaction
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.transactionRepo.GetByIDForUpdate(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if existing.IsSettlement || existing.Category.IsSystem() {
			return domain.ErrSettlementReadOnly
		}

		previousEnvelope := existing.EnvelopeID
		if err := applyTransactionInput(existing, input); err != nil {
			return err
		}
		if err := s.fileEnvelope(ctx, existing, input.EnvelopeID); err != nil {
			return err
		}

		updated, err = s.transactionRepo.Update(ctx, existing)
		if err != nil {
			return err
		}

		s.syncSettlement(ctx, updated)
		return s.refreshEnvelopes(ctx, ownerID, previousEnvelope, updated.EnvelopeID)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ownerID, websocket.TransactionUpdated(updated))
	return updated, nil
}

// DeleteTransaction soft-deletes a transaction and removes its settlement.
func (s *TransactionService) DeleteTransaction(ctx context.Context, ownerID string, id uuid.UUID) error {
	if ownerID == "" {
		return domain.ErrOwnerRequired
	}

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.transactionRepo.GetByIDForUpdate(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if existing.IsSettlement {
			return domain.ErrSettlementReadOnly
		}

		if err := s.transactionRepo.SoftDelete(ctx, ownerID, id); err != nil {
			return err
		}
		if err := s.settlements.OnDelete(ctx, existing); err != nil {
			log.Warn().Err(err).
				Str("owner_id", ownerID).
				Str("transaction_id", id.String()).
				Msg("Failed to remove settlement of deleted transaction")
		}
		return s.refreshEnvelopes(ctx, ownerID, existing.EnvelopeID)
	})
	if err != nil {
		return err
	}

	log.Info().Str("owner_id", ownerID).Str("transaction_id", id.String()).Msg("Transaction deleted")
	s.publishEvent(ownerID, websocket.TransactionDeleted(map[string]string{"id": id.String()}))
	return nil
}

// fileEnvelope links tx to the explicit envelope or, for expenses, to the
// child envelope matching its category.
func (s *TransactionService) fileEnvelope(ctx context.Context, tx *domain.Transaction, explicit *uuid.UUID) error {
	if explicit != nil {
		if _, err := s.envelopes.GetEnvelope(ctx, tx.OwnerID, *explicit); err != nil {
			return err
		}
		id := *explicit
		tx.EnvelopeID = &id
		return nil
	}

	tx.EnvelopeID = nil
	if tx.Direction != domain.DirectionExpense {
		return nil
	}
	match, err := s.envelopes.MatchForCategory(ctx, tx.OwnerID, tx.Category)
	if err != nil {
		return err
	}
	if match != nil {
		id := match.ID
		tx.EnvelopeID = &id
	}
	return nil
}

// syncSettlement reconciles in a nested unit; failure leaves the primary write intact.
func (s *TransactionService) syncSettlement(ctx context.Context, tx *domain.Transaction) {
	if err := s.settlements.Sync(ctx, tx); err != nil {
		log.Warn().Err(err).
			Str("owner_id", tx.OwnerID).
			Str("transaction_id", tx.ID.String()).
			Msg("Settlement reconciliation failed")
	}
}

func (s *TransactionService) refreshEnvelopes(ctx context.Context, ownerID string, ids ...*uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == nil || seen[*id] {
			continue
		}
		seen[*id] = true
		if err := s.envelopes.RefreshSpent(ctx, ownerID, *id); err != nil {
			return err
		}
	}
	return nil
}

func applyTransactionInput(tx *domain.Transaction, input TransactionInput) error {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrInvalidAmount
	}
	if !input.Direction.IsValid() {
		return domain.ErrInvalidDirection
	}
	if input.Date.IsZero() {
		return domain.ErrDateRequired
	}

	mode := input.PaymentMode
	if mode == "" {
		mode = domain.SettlementImmediate
	}
	if !mode.IsValid() {
		return domain.ErrInvalidPaymentMode
	}
	if mode == domain.SettlementDeferred && input.Direction != domain.DirectionExpense {
		return domain.ErrDeferredIncome
	}

	category, err := domain.ParseCategory(input.Category)
	if err != nil {
		return err
	}
	description := strings.TrimSpace(input.Description)
	if len(description) > domain.MaxDescriptionLength {
		return domain.ErrDescriptionTooLong
	}

	tx.Amount = input.Amount
	tx.Direction = input.Direction
	tx.Date = util.NormalizeAnchor(input.Date)
	tx.Category = category
	tx.Description = description
	tx.PaymentMode = mode
	return nil
}
