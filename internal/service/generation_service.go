package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/metrics"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/dankozobeats/voicetracker-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultGenerationConcurrency bounds how many owners are generated at once
const DefaultGenerationConcurrency = 4

// GenerationService materializes a month of recurring rules into transaction
// rows. Every row carries a TransactionLink, so a rerun finds what it wrote
// before and adds nothing.
type GenerationService struct {
	ruleRepo        domain.RecurringRuleRepository
	transactionRepo domain.TransactionRepository
	ownerRepo       domain.OwnerRepository
	txManager       domain.TxManager
	envelopes       *EnvelopeService
	settlements     *SettlementService
	concurrency     int
	eventPublisher  websocket.EventPublisher
}

// NewGenerationService creates a new GenerationService
func NewGenerationService(
	ruleRepo domain.RecurringRuleRepository,
	transactionRepo domain.TransactionRepository,
	ownerRepo domain.OwnerRepository,
	txManager domain.TxManager,
	envelopes *EnvelopeService,
	settlements *SettlementService,
) *GenerationService {
	return &GenerationService{
		ruleRepo:        ruleRepo,
		transactionRepo: transactionRepo,
		ownerRepo:       ownerRepo,
		txManager:       txManager,
		envelopes:       envelopes,
		settlements:     settlements,
		concurrency:     DefaultGenerationConcurrency,
	}
}

// SetConcurrency sets the number of owners generated in parallel
func (s *GenerationService) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *GenerationService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *GenerationService) publishEvent(ownerID string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(ownerID, event)
	}
}

// GenerationResult summarizes a batch run over all owners
type GenerationResult struct {
	Month      string   `json:"month"`
	Owners     int      `json:"owners"`
	Generated  int      `json:"generated"`
	Skipped    int      `json:"skipped"`
	Carryovers int      `json:"carryovers"`
	Errors     []string `json:"errors,omitempty"`
}

// OwnerGenerationResult summarizes one owner's unit
type OwnerGenerationResult struct {
	OwnerID    string `json:"ownerId"`
	Month      string `json:"month"`
	Generated  int    `json:"generated"`
	Skipped    int    `json:"skipped"`
	Carryovers int    `json:"carryovers"`
}

// RunGeneration generates month (YYYY-MM) for every owner. Owners run in
// parallel, each in its own atomic unit. A failing owner is reported in the
// result and does not stop the others.
func (s *GenerationService) RunGeneration(ctx context.Context, month string) (*GenerationResult, error) {
	monthStart, err := util.ParseMonthKey(month)
	if err != nil {
		return nil, domain.ErrInvalidMonth
	}
	started := time.Now()

	owners, err := s.ownerRepo.ListOwnerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}

	results := make([]*OwnerGenerationResult, len(owners))
	failures := make([]error, len(owners))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, ownerID := range owners {
		i, ownerID := i, ownerID
		g.Go(func() error {
			if ctx.Err() != nil {
				failures[i] = ctx.Err()
				return nil
			}
			results[i], failures[i] = s.generateOwner(ctx, ownerID, monthStart)
			metrics.CountOwnerGeneration(failures[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &GenerationResult{Month: util.MonthKey(monthStart), Owners: len(owners)}
	for i, ownerID := range owners {
		if failures[i] != nil {
			log.Error().Err(failures[i]).Str("owner_id", ownerID).Str("month", result.Month).Msg("Failed to generate month for owner")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", ownerID, failures[i]))
			continue
		}
		result.Generated += results[i].Generated
		result.Skipped += results[i].Skipped
		result.Carryovers += results[i].Carryovers
	}
	sort.Strings(result.Errors)

	metrics.ObserveGenerationRun(time.Since(started))
	log.Info().
		Str("month", result.Month).
		Int("owners", result.Owners).
		Int("generated", result.Generated).
		Int("skipped", result.Skipped).
		Int("carryovers", result.Carryovers).
		Int("errors", len(result.Errors)).
		Dur("elapsed", time.Since(started)).
		Msg("Completed generation run")

	return result, nil
}

// GenerateOwner generates month (YYYY-MM) for a single owner
func (s *GenerationService) GenerateOwner(ctx context.Context, ownerID, month string) (*OwnerGenerationResult, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	monthStart, err := util.ParseMonthKey(month)
	if err != nil {
		return nil, domain.ErrInvalidMonth
	}
	result, err := s.generateOwner(ctx, ownerID, monthStart)
	metrics.CountOwnerGeneration(err)
	return result, err
}

func (s *GenerationService) generateOwner(ctx context.Context, ownerID string, monthStart time.Time) (*OwnerGenerationResult, error) {
	result := &OwnerGenerationResult{OwnerID: ownerID, Month: util.MonthKey(monthStart)}
	monthEnd := util.FirstOfNextMonth(monthStart)

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		rules, err := s.ruleRepo.ListByOwner(ctx, ownerID)
		if err != nil {
			return err
		}

		touched := make(map[uuid.UUID]bool)
		var deferred []*domain.Transaction

		for _, rule := range rules {
			if rule.DeletedAt != nil {
				continue
			}
			for _, due := range OccurrencesBetween(rule, monthStart, monthEnd) {
				row, created, err := s.materialize(ctx, rule, due)
				if err != nil {
					return fmt.Errorf("rule %s: %w", rule.ID, err)
				}
				if created {
					result.Generated++
				} else {
					result.Skipped++
				}
				if row.EnvelopeID != nil {
					touched[*row.EnvelopeID] = true
				}
				if row.IsDeferredPrimary() {
					deferred = append(deferred, row)
				}
			}
		}

		for _, primary := range deferred {
			if err := s.settlements.Sync(ctx, primary); err != nil {
				log.Warn().Err(err).
					Str("owner_id", ownerID).
					Str("transaction_id", primary.ID.String()).
					Msg("Settlement reconciliation failed during generation")
			}
		}

		created, err := s.carryOver(ctx, ownerID, monthStart)
		if err != nil {
			return err
		}
		if created {
			result.Carryovers++
		}

		for envelopeID := range touched {
			if err := s.envelopes.RefreshSpent(ctx, ownerID, envelopeID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CountGenerated(string(domain.LinkRecurring), result.Generated)
	metrics.CountGenerated(string(domain.LinkCarryover), result.Carryovers)
	if result.Generated > 0 || result.Carryovers > 0 {
		log.Debug().
			Str("owner_id", ownerID).
			Str("month", result.Month).
			Int("generated", result.Generated).
			Int("skipped", result.Skipped).
			Msg("Generated month for owner")
		s.publishEvent(ownerID, websocket.GenerationCompleted(result))
	}
	return result, nil
}

// materialize returns the row for one rule occurrence, inserting it when the
// link is not yet taken.
func (s *GenerationService) materialize(ctx context.Context, rule *domain.RecurringRule, due time.Time) (*domain.Transaction, bool, error) {
	link := domain.TransactionLink{
		Kind:     domain.LinkRecurring,
		SourceID: rule.ID.String(),
		Period:   util.DayKey(due),
	}

	existing, err := s.transactionRepo.FindByLink(ctx, rule.OwnerID, link)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, false, err
	}

	mode := domain.SettlementImmediate
	if rule.Direction == domain.DirectionExpense {
		mode = rule.SettlementMode
	}

	row := &domain.Transaction{
		OwnerID:     rule.OwnerID,
		Amount:      rule.Amount,
		Direction:   rule.Direction,
		Date:        due,
		Category:    rule.Category,
		Description: rule.Description,
		PaymentMode: mode,
		Link:        &link,
	}
	if rule.Direction == domain.DirectionExpense {
		match, err := s.envelopes.MatchForCategory(ctx, rule.OwnerID, rule.Category)
		if err != nil {
			return nil, false, err
		}
		if match != nil {
			id := match.ID
			row.EnvelopeID = &id
		}
	}

	created, err := s.transactionRepo.Create(ctx, row)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// carryOver charges the previous month's ledger deficit on the first of
// monthStart, once.
func (s *GenerationService) carryOver(ctx context.Context, ownerID string, monthStart time.Time) (bool, error) {
	previous := previousMonthStart(monthStart)
	deficit, err := s.envelopes.MonthDeficit(ctx, ownerID, previous)
	if err != nil {
		return false, err
	}
	// An existing row is never rewritten; a stale amount is only reported
	if err := s.envelopes.CheckCarryover(ctx, ownerID, monthStart, deficit); err != nil && !errors.Is(err, domain.ErrCarryoverDrift) {
		return false, err
	}
	if !deficit.IsPositive() {
		return false, nil
	}

	link := domain.TransactionLink{
		Kind:     domain.LinkCarryover,
		SourceID: util.MonthKey(previous),
		Period:   util.MonthKey(monthStart),
	}
	_, err = s.transactionRepo.FindByLink(ctx, ownerID, link)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		return false, err
	}

	_, err = s.transactionRepo.Create(ctx, &domain.Transaction{
		OwnerID:     ownerID,
		Amount:      deficit,
		Direction:   domain.DirectionExpense,
		Date:        monthStart,
		Category:    domain.CategoryCarryover,
		Description: "Overdraft carried over from " + link.SourceID,
		PaymentMode: domain.SettlementImmediate,
		Link:        &link,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
