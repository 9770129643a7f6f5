package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/dankozobeats/voicetracker-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// EnvelopeService maintains the master/child envelope ledger of an owner.
// Every mutation runs as one atomic unit with the master row locked, so no
// reader observes a master whose remaining disagrees with its children.
type EnvelopeService struct {
	envelopeRepo    domain.EnvelopeRepository
	transactionRepo domain.TransactionRepository
	txManager       domain.TxManager
	eventPublisher  websocket.EventPublisher
}

// NewEnvelopeService creates a new EnvelopeService
func NewEnvelopeService(
	envelopeRepo domain.EnvelopeRepository,
	transactionRepo domain.TransactionRepository,
	txManager domain.TxManager,
) *EnvelopeService {
	return &EnvelopeService{
		envelopeRepo:    envelopeRepo,
		transactionRepo: transactionRepo,
		txManager:       txManager,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *EnvelopeService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *EnvelopeService) publishEvent(ownerID string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(ownerID, event)
	}
}

// CreateEnvelopeInput holds the input for creating an envelope
type CreateEnvelopeInput struct {
	Name     string
	Amount   decimal.Decimal
	IsMaster bool
	ParentID *uuid.UUID
	Category string
}

// UpdateEnvelopeInput holds the fields to change; nil fields are kept
type UpdateEnvelopeInput struct {
	Name     *string
	Amount   *decimal.Decimal
	Category *string
}

// ListEnvelopes returns the owner's master followed by its children
func (s *EnvelopeService) ListEnvelopes(ctx context.Context, ownerID string) ([]*domain.BudgetEnvelope, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	return s.envelopeRepo.ListByOwner(ctx, ownerID)
}

// GetEnvelope retrieves a single envelope
func (s *EnvelopeService) GetEnvelope(ctx context.Context, ownerID string, id uuid.UUID) (*domain.BudgetEnvelope, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	return s.envelopeRepo.GetByID(ctx, ownerID, id)
}

// CreateEnvelope creates the owner's master envelope or a child allocation
func (s *EnvelopeService) CreateEnvelope(ctx context.Context, ownerID string, input CreateEnvelopeInput) (*domain.BudgetEnvelope, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	name, err := validateEnvelopeName(input.Name)
	if err != nil {
		return nil, err
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}

	var created *domain.BudgetEnvelope
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		if input.IsMaster {
			created, err = s.createMaster(ctx, ownerID, name, input)
			return err
		}
		created, err = s.createChild(ctx, ownerID, name, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("owner_id", ownerID).Str("envelope_id", created.ID.String()).Bool("is_master", created.IsMaster).Msg("Envelope created")
	s.publishEvent(ownerID, websocket.EnvelopeCreated(created))
	return created, nil
}

func (s *EnvelopeService) createMaster(ctx context.Context, ownerID, name string, input CreateEnvelopeInput) (*domain.BudgetEnvelope, error) {
	if strings.TrimSpace(input.Category) != "" || input.ParentID != nil {
		return nil, domain.ErrMasterCategory
	}

	_, err := s.envelopeRepo.GetMasterForUpdate(ctx, ownerID)
	if err == nil {
		return nil, domain.ErrMasterExists
	}
	if !errors.Is(err, domain.ErrNoMaster) {
		return nil, err
	}

	return s.envelopeRepo.Create(ctx, &domain.BudgetEnvelope{
		OwnerID:   ownerID,
		Name:      name,
		Amount:    input.Amount,
		Remaining: input.Amount,
		IsMaster:  true,
	})
}

func (s *EnvelopeService) createChild(ctx context.Context, ownerID, name string, input CreateEnvelopeInput) (*domain.BudgetEnvelope, error) {
	category, err := parseChildCategory(input.Category)
	if err != nil {
		return nil, err
	}

	master, err := s.envelopeRepo.GetMasterForUpdate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if input.ParentID == nil || *input.ParentID != master.ID {
		return nil, domain.ErrChildParentMismatch
	}

	children, err := s.envelopeRepo.ListChildren(ctx, ownerID, master.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if child.Category != nil && *child.Category == category {
			return nil, domain.ErrEnvelopeCategoryTaken
		}
	}

	committed := sumAllocations(children)
	if committed.Add(input.Amount).GreaterThan(master.Amount) {
		return nil, domain.ErrAllocationExceeded
	}

	masterID := master.ID
	created, err := s.envelopeRepo.Create(ctx, &domain.BudgetEnvelope{
		OwnerID:   ownerID,
		Name:      name,
		Amount:    input.Amount,
		Remaining: input.Amount,
		ParentID:  &masterID,
		Category:  &category,
	})
	if err != nil {
		return nil, err
	}

	master.Remaining = master.Amount.Sub(committed.Add(input.Amount))
	if _, err := s.envelopeRepo.Update(ctx, master); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateEnvelope changes an envelope while keeping the allocation invariant
func (s *EnvelopeService) UpdateEnvelope(ctx context.Context, ownerID string, id uuid.UUID, input UpdateEnvelopeInput) (*domain.BudgetEnvelope, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	if input.Amount != nil && input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	var name string
	if input.Name != nil {
		var err error
		if name, err = validateEnvelopeName(*input.Name); err != nil {
			return nil, err
		}
	}

	var updated *domain.BudgetEnvelope
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		master, err := s.envelopeRepo.GetMasterForUpdate(ctx, ownerID)
		if err != nil {
			return err
		}
		envelope, err := s.envelopeRepo.GetByID(ctx, ownerID, id)
		if err != nil {
			return err
		}
		children, err := s.envelopeRepo.ListChildren(ctx, ownerID, master.ID)
		if err != nil {
			return err
		}
		if input.Name != nil {
			envelope.Name = name
		}

		if envelope.IsMaster {
			updated, err = s.updateMaster(ctx, master, children, input)
			return err
		}
		updated, err = s.updateChild(ctx, master, envelope, children, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ownerID, websocket.EnvelopeUpdated(updated))
	return updated, nil
}

func (s *EnvelopeService) updateMaster(ctx context.Context, master *domain.BudgetEnvelope, children []*domain.BudgetEnvelope, input UpdateEnvelopeInput) (*domain.BudgetEnvelope, error) {
	if input.Category != nil && strings.TrimSpace(*input.Category) != "" {
		return nil, domain.ErrMasterCategory
	}
	if input.Name != nil {
		master.Name = strings.TrimSpace(*input.Name)
	}

	committed := sumAllocations(children)
	if input.Amount != nil {
		// Cannot shrink below what is already promised to children
		if input.Amount.LessThan(committed) {
			return nil, domain.ErrBelowCommitments
		}
		master.Amount = *input.Amount
	}
	master.Remaining = master.Amount.Sub(committed)
	return s.envelopeRepo.Update(ctx, master)
}

func (s *EnvelopeService) updateChild(ctx context.Context, master, child *domain.BudgetEnvelope, children []*domain.BudgetEnvelope, input UpdateEnvelopeInput) (*domain.BudgetEnvelope, error) {
	if input.Category != nil {
		category, err := parseChildCategory(*input.Category)
		if err != nil {
			return nil, err
		}
		for _, other := range children {
			if other.ID != child.ID && other.Category != nil && *other.Category == category {
				return nil, domain.ErrEnvelopeCategoryTaken
			}
		}
		child.Category = &category
	}

	others := decimal.Zero
	for _, other := range children {
		if other.ID != child.ID {
			others = others.Add(other.Amount)
		}
	}
	if input.Amount != nil {
		if others.Add(*input.Amount).GreaterThan(master.Amount) {
			return nil, domain.ErrAllocationExceeded
		}
		child.Amount = *input.Amount
	}

	spent, err := s.transactionRepo.SumExpensesByEnvelope(ctx, child.OwnerID, child.ID)
	if err != nil {
		return nil, err
	}
	child.Remaining = childRemaining(child.Amount, spent)

	updated, err := s.envelopeRepo.Update(ctx, child)
	if err != nil {
		return nil, err
	}

	master.Remaining = master.Amount.Sub(others.Add(child.Amount))
	if _, err := s.envelopeRepo.Update(ctx, master); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEnvelope removes an envelope. Deleting the master removes every child
// and detaches all of their transactions; deleting a child returns its
// allocation to the master.
func (s *EnvelopeService) DeleteEnvelope(ctx context.Context, ownerID string, id uuid.UUID) error {
	if ownerID == "" {
		return domain.ErrOwnerRequired
	}

	var detached int64
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		master, err := s.envelopeRepo.GetMasterForUpdate(ctx, ownerID)
		if errors.Is(err, domain.ErrNoMaster) {
			return domain.ErrEnvelopeNotFound
		}
		if err != nil {
			return err
		}
		envelope, err := s.envelopeRepo.GetByID(ctx, ownerID, id)
		if err != nil {
			return err
		}
		children, err := s.envelopeRepo.ListChildren(ctx, ownerID, master.ID)
		if err != nil {
			return err
		}

		if envelope.IsMaster {
			ids := make([]uuid.UUID, 0, len(children)+1)
			ids = append(ids, master.ID)
			for _, child := range children {
				ids = append(ids, child.ID)
			}
			if detached, err = s.transactionRepo.DetachEnvelopes(ctx, ownerID, ids); err != nil {
				return err
			}
			if _, err := s.envelopeRepo.DeleteChildren(ctx, ownerID, master.ID); err != nil {
				return err
			}
			return s.envelopeRepo.Delete(ctx, ownerID, master.ID)
		}

		if detached, err = s.transactionRepo.DetachEnvelopes(ctx, ownerID, []uuid.UUID{envelope.ID}); err != nil {
			return err
		}
		if err := s.envelopeRepo.Delete(ctx, ownerID, envelope.ID); err != nil {
			return err
		}

		remaining := decimal.Zero
		for _, child := range children {
			if child.ID != envelope.ID {
				remaining = remaining.Add(child.Amount)
			}
		}
		master.Remaining = master.Amount.Sub(remaining)
		_, err = s.envelopeRepo.Update(ctx, master)
		return err
	})
	if err != nil {
		return err
	}

	log.Info().Str("owner_id", ownerID).Str("envelope_id", id.String()).Int64("detached_transactions", detached).Msg("Envelope deleted")
	s.publishEvent(ownerID, websocket.EnvelopeDeleted(map[string]string{"id": id.String()}))
	return nil
}

// MatchForCategory returns the child envelope filed under category, or nil
// when there is none. The master is never returned.
func (s *EnvelopeService) MatchForCategory(ctx context.Context, ownerID string, category domain.Category) (*domain.BudgetEnvelope, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	if category == "" || category.IsSystem() {
		return nil, nil
	}
	envelope, err := s.envelopeRepo.FindChildByCategory(ctx, ownerID, category)
	if errors.Is(err, domain.ErrEnvelopeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if envelope.IsMaster {
		return nil, nil
	}
	return envelope, nil
}

// RefreshSpent recomputes a child's remaining from its linked expenses
func (s *EnvelopeService) RefreshSpent(ctx context.Context, ownerID string, envelopeID uuid.UUID) error {
	envelope, err := s.envelopeRepo.GetByID(ctx, ownerID, envelopeID)
	if errors.Is(err, domain.ErrEnvelopeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if envelope.IsMaster {
		return nil
	}

	spent, err := s.transactionRepo.SumExpensesByEnvelope(ctx, ownerID, envelopeID)
	if err != nil {
		return err
	}
	remaining := childRemaining(envelope.Amount, spent)
	if remaining.Equal(envelope.Remaining) {
		return nil
	}
	envelope.Remaining = remaining
	_, err = s.envelopeRepo.Update(ctx, envelope)
	return err
}

// MonthDeficit returns how much the month's cash outflow exceeds the master
// allocation. Owners without a master have no deficit.
func (s *EnvelopeService) MonthDeficit(ctx context.Context, ownerID string, month time.Time) (decimal.Decimal, error) {
	master, err := s.envelopeRepo.GetMaster(ctx, ownerID)
	if errors.Is(err, domain.ErrNoMaster) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}

	start := util.StartOfMonth(month)
	outflow, err := s.transactionRepo.SumCashOutflow(ctx, ownerID, start, util.FirstOfNextMonth(start))
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Max(outflow.Sub(master.Amount), decimal.Zero), nil
}

// CheckCarryover compares the carryover row already generated for month, if
// any, with expected. A mismatch means the previous month changed after the
// carryover was charged and is returned as a wrapped ErrCarryoverDrift.
func (s *EnvelopeService) CheckCarryover(ctx context.Context, ownerID string, month time.Time, expected decimal.Decimal) error {
	start := util.StartOfMonth(month)
	link := domain.TransactionLink{
		Kind:     domain.LinkCarryover,
		SourceID: util.MonthKey(previousMonthStart(start)),
		Period:   util.MonthKey(start),
	}
	row, err := s.transactionRepo.FindByLink(ctx, ownerID, link)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	// A deleted carryover was removed on purpose
	if row.DeletedAt != nil || row.Amount.Equal(expected) {
		return nil
	}

	log.Warn().
		Str("owner_id", ownerID).
		Str("month", link.Period).
		Str("charged", row.Amount.String()).
		Str("expected", expected.String()).
		Msg("Carryover no longer matches the previous month's deficit")
	return fmt.Errorf("%w: %s charged %s, expected %s", domain.ErrCarryoverDrift, link.Period, row.Amount.String(), expected.String())
}

// CheckDrift compares the stored master remaining with the value derived
// from its children and returns a wrapped ErrLedgerDrift on mismatch.
func (s *EnvelopeService) CheckDrift(ctx context.Context, ownerID string) error {
	master, err := s.envelopeRepo.GetMaster(ctx, ownerID)
	if errors.Is(err, domain.ErrNoMaster) {
		return nil
	}
	if err != nil {
		return err
	}
	children, err := s.envelopeRepo.ListChildren(ctx, ownerID, master.ID)
	if err != nil {
		return err
	}

	expected := master.Amount.Sub(sumAllocations(children))
	if !master.Remaining.Equal(expected) {
		log.Warn().
			Str("owner_id", ownerID).
			Str("stored", master.Remaining.String()).
			Str("expected", expected.String()).
			Msg("Master envelope remaining drifted from allocations")
		return fmt.Errorf("%w: stored %s, expected %s", domain.ErrLedgerDrift, master.Remaining.String(), expected.String())
	}
	return nil
}

// previousMonthStart returns the anchored first day of the month before t's.
func previousMonthStart(t time.Time) time.Time {
	year, month := util.PreviousMonth(t.Year(), int(t.Month()))
	return util.CalculateActualDate(year, time.Month(month), 1)
}

func validateEnvelopeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", domain.ErrNameRequired
	}
	if len(name) > domain.MaxEnvelopeNameLength {
		return "", domain.ErrNameTooLong
	}
	return name, nil
}

func parseChildCategory(raw string) (domain.Category, error) {
	if strings.TrimSpace(raw) == "" {
		return "", domain.ErrCategoryRequired
	}
	return domain.ParseCategory(raw)
}

func sumAllocations(envelopes []*domain.BudgetEnvelope) decimal.Decimal {
	total := decimal.Zero
	for _, envelope := range envelopes {
		total = total.Add(envelope.Amount)
	}
	return total
}

func childRemaining(amount, spent decimal.Decimal) decimal.Decimal {
	return decimal.Max(amount.Sub(spent), decimal.Zero)
}
