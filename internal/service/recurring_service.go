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

// RecurringService handles recurring rule business logic
type RecurringService struct {
	ruleRepo       domain.RecurringRuleRepository
	eventPublisher websocket.EventPublisher
}

// NewRecurringService creates a new RecurringService
func NewRecurringService(ruleRepo domain.RecurringRuleRepository) *RecurringService {
	return &RecurringService{ruleRepo: ruleRepo}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *RecurringService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *RecurringService) publishEvent(ownerID string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(ownerID, event)
	}
}

// RuleInput holds the input for creating or replacing a recurring rule
type RuleInput struct {
	Amount         decimal.Decimal
	Direction      domain.Direction
	Cadence        domain.Cadence
	DayOfMonth     *int
	Weekday        *int
	SettlementMode domain.SettlementMode
	StartDate      time.Time
	EndDate        *time.Time
	Category       string
	Description    string
}

// ListRules returns all live rules of the owner
func (s *RecurringService) ListRules(ctx context.Context, ownerID string) ([]*domain.RecurringRule, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	return s.ruleRepo.ListByOwner(ctx, ownerID)
}

// GetRule retrieves a rule by ID
func (s *RecurringService) GetRule(ctx context.Context, ownerID string, id uuid.UUID) (*domain.RecurringRule, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	return s.ruleRepo.GetByID(ctx, ownerID, id)
}

// CreateRule validates and stores a new rule
func (s *RecurringService) CreateRule(ctx context.Context, ownerID string, input RuleInput) (*domain.RecurringRule, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	rule := &domain.RecurringRule{OwnerID: ownerID}
	if err := applyRuleInput(rule, input); err != nil {
		return nil, err
	}

	created, err := s.ruleRepo.Create(ctx, rule)
	if err != nil {
		return nil, err
	}

	log.Info().Str("owner_id", ownerID).Str("rule_id", created.ID.String()).Str("cadence", string(created.Cadence)).Msg("Recurring rule created")
	s.publishEvent(ownerID, websocket.RuleCreated(created))
	return created, nil
}

// UpdateRule replaces every field of an existing rule
func (s *RecurringService) UpdateRule(ctx context.Context, ownerID string, id uuid.UUID, input RuleInput) (*domain.RecurringRule, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	existing, err := s.ruleRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := applyRuleInput(existing, input); err != nil {
		return nil, err
	}

	updated, err := s.ruleRepo.Update(ctx, existing)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ownerID, websocket.RuleUpdated(updated))
	return updated, nil
}

// DeleteRule removes a rule. Rows it already generated are kept.
func (s *RecurringService) DeleteRule(ctx context.Context, ownerID string, id uuid.UUID) error {
	if ownerID == "" {
		return domain.ErrOwnerRequired
	}
	if _, err := s.ruleRepo.GetByID(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.ruleRepo.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	log.Info().Str("owner_id", ownerID).Str("rule_id", id.String()).Msg("Recurring rule deleted")
	s.publishEvent(ownerID, websocket.RuleDeleted(map[string]string{"id": id.String()}))
	return nil
}

// applyRuleInput validates input and copies it onto rule.
func applyRuleInput(rule *domain.RecurringRule, input RuleInput) error {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrInvalidAmount
	}
	if !input.Direction.IsValid() {
		return domain.ErrInvalidDirection
	}
	if !input.Cadence.IsValid() {
		return domain.ErrInvalidCadence
	}

	if input.Cadence == domain.CadenceWeekly {
		if input.DayOfMonth != nil {
			return domain.ErrAnchorMismatch
		}
		if input.Weekday != nil && (*input.Weekday < domain.MinWeekday || *input.Weekday > domain.MaxWeekday) {
			return domain.ErrInvalidWeekday
		}
	} else {
		if input.Weekday != nil {
			return domain.ErrAnchorMismatch
		}
		if input.DayOfMonth != nil && (*input.DayOfMonth < domain.MinDayOfMonth || *input.DayOfMonth > domain.MaxDayOfMonth) {
			return domain.ErrInvalidDayOfMonth
		}
	}

	mode := input.SettlementMode
	if mode == "" {
		mode = domain.SettlementImmediate
	}
	if !mode.IsValid() {
		return domain.ErrInvalidSettlementMode
	}

	if input.StartDate.IsZero() {
		return domain.ErrStartDateRequired
	}
	start := util.NormalizeAnchor(input.StartDate)
	var end *time.Time
	if input.EndDate != nil {
		normalized := util.NormalizeAnchor(*input.EndDate)
		if normalized.Before(start) {
			return domain.ErrEndBeforeStart
		}
		end = &normalized
	}

	category, err := domain.ParseCategory(input.Category)
	if err != nil {
		return err
	}

	description := strings.TrimSpace(input.Description)
	if len(description) > domain.MaxDescriptionLength {
		return domain.ErrDescriptionTooLong
	}

	rule.Amount = input.Amount
	rule.Direction = input.Direction
	rule.Cadence = input.Cadence
	rule.DayOfMonth = input.DayOfMonth
	rule.Weekday = input.Weekday
	rule.SettlementMode = mode
	rule.StartDate = start
	rule.EndDate = end
	rule.Category = category
	rule.Description = description
	return nil
}
