package service

import (
	"context"
	"errors"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/metrics"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/rs/zerolog/log"
)

// ForecastService projects an owner's recurring rules into dated instances
// and month summaries. It never writes.
type ForecastService struct {
	ruleRepo      domain.RecurringRuleRepository
	ledger        *EnvelopeService
	defaultMonths int
	maxMonths     int
}

// NewForecastService creates a new ForecastService
func NewForecastService(ruleRepo domain.RecurringRuleRepository, ledger *EnvelopeService) *ForecastService {
	return &ForecastService{
		ruleRepo:      ruleRepo,
		ledger:        ledger,
		defaultMonths: DefaultForecastMonths,
		maxMonths:     MaxForecastMonths,
	}
}

// SetHorizonLimits overrides the default and maximum horizon in months.
func (s *ForecastService) SetHorizonLimits(defaultMonths, maxMonths int) {
	if maxMonths > 0 {
		s.maxMonths = maxMonths
	}
	if defaultMonths > 0 && defaultMonths <= s.maxMonths {
		s.defaultMonths = defaultMonths
	}
}

// Forecast returns the projection of ownerID's rules over horizonMonths
// months starting at now's month. A zero horizon selects the default.
func (s *ForecastService) Forecast(ctx context.Context, ownerID string, horizonMonths int, now time.Time) (*domain.ForecastResult, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	horizon, err := s.resolveHorizon(horizonMonths)
	if err != nil {
		return nil, err
	}
	started := time.Now()

	rules, err := s.ruleRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	// The current month's rows are projected by the rules themselves, so only
	// the closed previous month feeds the starting overdraft
	startingOverdraft, err := s.ledger.MonthDeficit(ctx, ownerID, previousMonthStart(now))
	if err != nil {
		return nil, err
	}

	var warnings []string
	if err := s.ledger.CheckDrift(ctx, ownerID); err != nil {
		if !errors.Is(err, domain.ErrLedgerDrift) {
			return nil, err
		}
		warnings = append(warnings, err.Error())
	}
	if err := s.ledger.CheckCarryover(ctx, ownerID, now, startingOverdraft); err != nil {
		if !errors.Is(err, domain.ErrCarryoverDrift) {
			return nil, err
		}
		warnings = append(warnings, err.Error())
	}

	instances := ProjectRules(rules, now, horizon)
	if startingOverdraft.IsPositive() {
		instances = append(instances, domain.ForecastInstance{
			RuleID:    domain.CarryoverInstanceID,
			DueDate:   util.StartOfMonth(now),
			Amount:    startingOverdraft,
			Category:  domain.CategoryCarryover,
			Direction: domain.DirectionExpense,
			Kind:      domain.InstanceCarryover,
			Label:     "Overdraft carried over",
		})
	}
	SortInstances(instances)

	result := &domain.ForecastResult{
		Instances:         instances,
		MonthSummaries:    Aggregate(instances, startingOverdraft, util.MonthKeys(now, horizon)),
		StartingOverdraft: startingOverdraft,
		Warnings:          warnings,
	}

	metrics.ObserveForecast(time.Since(started), len(warnings))
	log.Debug().
		Str("owner_id", ownerID).
		Int("rules", len(rules)).
		Int("instances", len(instances)).
		Int("months", horizon).
		Msg("Forecast computed")

	return result, nil
}

// ProjectRules expands and transforms every rule, keeping instances due in
// [now, horizon end). Deferred expense rules are expanded from the start of
// the previous month so occurrences already past still yield their
// settlement when it falls due on or after now.
func ProjectRules(rules []*domain.RecurringRule, now time.Time, horizonMonths int) []domain.ForecastInstance {
	instances := make([]domain.ForecastInstance, 0)
	if horizonMonths <= 0 {
		return instances
	}
	today := util.NormalizeAnchor(now)
	end := HorizonEnd(now, horizonMonths)

	for _, rule := range rules {
		if rule.DeletedAt != nil {
			continue
		}
		from := today
		if rule.IsDeferredExpense() {
			from = previousMonthStart(now)
		}
		projected := ApplyDeferredSettlement(rule, ruleInstances(rule, OccurrencesBetween(rule, from, end)))
		for _, instance := range projected {
			if !instance.DueDate.Before(today) && instance.DueDate.Before(end) {
				instances = append(instances, instance)
			}
		}
	}
	return instances
}

func (s *ForecastService) resolveHorizon(months int) (int, error) {
	if months == 0 {
		return s.defaultMonths, nil
	}
	if months < 0 || months > s.maxMonths {
		return 0, domain.ErrInvalidHorizon
	}
	return months, nil
}
