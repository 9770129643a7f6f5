package service

import (
	"context"
	"errors"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/metrics"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/dankozobeats/voicetracker-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SettlementService keeps the settlement row of every deferred primary
// transaction in step with its primary. A primary is either immediate (no
// settlement) or deferred-pending (exactly one settlement dated the first of
// the following month).
type SettlementService struct {
	transactionRepo domain.TransactionRepository
	txManager       domain.TxManager
	eventPublisher  websocket.EventPublisher
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(transactionRepo domain.TransactionRepository, txManager domain.TxManager) *SettlementService {
	return &SettlementService{
		transactionRepo: transactionRepo,
		txManager:       txManager,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *SettlementService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// publishEvent publishes a WebSocket event if a publisher is configured
func (s *SettlementService) publishEvent(ownerID string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(ownerID, event)
	}
}

// ReconcileResult counts the settlement rows touched by a repair pass
type ReconcileResult struct {
	OwnerID  string `json:"ownerId"`
	Checked  int    `json:"checked"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Deleted  int    `json:"deleted"`
	Failures int    `json:"failures"`
}

func (r *ReconcileResult) add(o syncOutcome) {
	r.Created += o.created
	r.Updated += o.updated
	r.Deleted += o.deleted
}

type syncOutcome struct {
	created int
	updated int
	deleted int
}

// Sync brings the settlement rows of primary in line with its current state.
// It runs as a nested unit: a failure rolls back only the settlement writes
// and is returned for the caller to log.
func (s *SettlementService) Sync(ctx context.Context, primary *domain.Transaction) error {
	_, err := s.sync(ctx, primary.OwnerID, primary.ID)
	return err
}

func (s *SettlementService) sync(ctx context.Context, ownerID string, primaryID uuid.UUID) (syncOutcome, error) {
	var outcome syncOutcome
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = s.reconcile(ctx, ownerID, primaryID)
		return err
	})
	return outcome, err
}

// reconcile performs every lookup before the first write.
func (s *SettlementService) reconcile(ctx context.Context, ownerID string, primaryID uuid.UUID) (syncOutcome, error) {
	var outcome syncOutcome

	primary, err := s.transactionRepo.GetByIDForUpdate(ctx, ownerID, primaryID)
	if err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
		return outcome, err
	}
	if primary != nil && primary.IsSettlement {
		return outcome, nil
	}

	existing, err := s.transactionRepo.FindByLinkSource(ctx, ownerID, domain.LinkSettlement, primaryID.String())
	if err != nil {
		return outcome, err
	}

	desired := primary != nil && primary.IsDeferredPrimary() && primary.Direction == domain.DirectionExpense
	var want *domain.Transaction
	if desired {
		want = settlementFor(primary)
	}

	var keep *domain.Transaction
	var stale []*domain.Transaction
	for _, row := range existing {
		if want != nil && keep == nil && row.Link != nil && row.Link.Matches(*want.Link) {
			keep = row
			continue
		}
		stale = append(stale, row)
	}

	for _, row := range stale {
		if err := s.transactionRepo.Delete(ctx, ownerID, row.ID); err != nil {
			return outcome, err
		}
		outcome.deleted++
		metrics.CountSettlementRepair("deleted")
	}

	if want == nil {
		return outcome, nil
	}

	if keep == nil {
		if _, err := s.transactionRepo.Create(ctx, want); err != nil {
			return outcome, err
		}
		outcome.created++
		metrics.CountSettlementRepair("created")
		return outcome, nil
	}

	if settlementDiffers(keep, want) {
		keep.Amount = want.Amount
		keep.Date = want.Date
		keep.Description = want.Description
		keep.Category = want.Category
		keep.EnvelopeID = nil
		if _, err := s.transactionRepo.Update(ctx, keep); err != nil {
			return outcome, err
		}
		outcome.updated++
		metrics.CountSettlementRepair("updated")
	}
	return outcome, nil
}

// OnDelete removes every settlement row generated from primary.
func (s *SettlementService) OnDelete(ctx context.Context, primary *domain.Transaction) error {
	return s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		rows, err := s.transactionRepo.FindByLinkSource(ctx, primary.OwnerID, domain.LinkSettlement, primary.ID.String())
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := s.transactionRepo.Delete(ctx, primary.OwnerID, row.ID); err != nil {
				return err
			}
			metrics.CountSettlementRepair("deleted")
		}
		return nil
	})
}

// ReconcileOwner repairs the settlement rows of every deferred primary of the
// owner and removes orphans whose primary is gone or no longer deferred.
// A primary that fails to reconcile is counted and skipped.
func (s *SettlementService) ReconcileOwner(ctx context.Context, ownerID string) (*ReconcileResult, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	result := &ReconcileResult{OwnerID: ownerID}

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		primaries, err := s.transactionRepo.ListDeferredPrimaries(ctx, ownerID)
		if err != nil {
			return err
		}
		settlements, err := s.transactionRepo.ListSettlements(ctx, ownerID)
		if err != nil {
			return err
		}

		seen := make(map[uuid.UUID]bool, len(primaries))
		for _, primary := range primaries {
			seen[primary.ID] = true
			result.Checked++
			outcome, err := s.sync(ctx, ownerID, primary.ID)
			if err != nil {
				result.Failures++
				log.Warn().Err(err).
					Str("owner_id", ownerID).
					Str("transaction_id", primary.ID.String()).
					Msg("Failed to reconcile settlement")
				continue
			}
			result.add(outcome)
		}

		// Settlements pointing at anything else are orphans
		for _, row := range settlements {
			if row.Link == nil || row.Link.Kind != domain.LinkSettlement {
				continue
			}
			primaryID, err := uuid.Parse(row.Link.SourceID)
			if err == nil && seen[primaryID] {
				continue
			}
			if err != nil {
				if delErr := s.transactionRepo.Delete(ctx, ownerID, row.ID); delErr != nil {
					return delErr
				}
				result.Deleted++
				metrics.CountSettlementRepair("deleted")
				continue
			}
			seen[primaryID] = true
			result.Checked++
			outcome, err := s.sync(ctx, ownerID, primaryID)
			if err != nil {
				result.Failures++
				log.Warn().Err(err).
					Str("owner_id", ownerID).
					Str("transaction_id", primaryID.String()).
					Msg("Failed to remove orphan settlement")
				continue
			}
			result.add(outcome)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("owner_id", ownerID).
		Int("checked", result.Checked).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int("failures", result.Failures).
		Msg("Settlement reconciliation completed")
	s.publishEvent(ownerID, websocket.SettlementsReconciled(result))
	return result, nil
}

// settlementFor builds the settlement row a deferred primary should have.
func settlementFor(primary *domain.Transaction) *domain.Transaction {
	return &domain.Transaction{
		OwnerID:      primary.OwnerID,
		Amount:       primary.Amount,
		Direction:    domain.DirectionExpense,
		Date:         util.FirstOfNextMonth(primary.Date),
		Category:     domain.CategoryDeferredSettlement,
		Description:  primary.Description,
		PaymentMode:  domain.SettlementImmediate,
		IsSettlement: true,
		Link: &domain.TransactionLink{
			Kind:     domain.LinkSettlement,
			SourceID: primary.ID.String(),
			Period:   util.MonthKey(primary.Date),
		},
	}
}

func settlementDiffers(current, want *domain.Transaction) bool {
	return !current.Amount.Equal(want.Amount) ||
		!util.NormalizeAnchor(current.Date).Equal(want.Date) ||
		current.Description != want.Description ||
		current.Category != want.Category ||
		current.EnvelopeID != nil
}
