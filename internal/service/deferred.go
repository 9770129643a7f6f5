package service

import (
	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
)

// ApplyDeferredSettlement replaces each occurrence of a deferred expense rule
// with its settlement, dated the first of the following month and tagged with
// the occurrence month. Other rules pass through untouched.
func ApplyDeferredSettlement(rule *domain.RecurringRule, occurrences []domain.ForecastInstance) []domain.ForecastInstance {
	if !rule.IsDeferredExpense() {
		return occurrences
	}

	settlements := make([]domain.ForecastInstance, 0, len(occurrences))
	for _, occurrence := range occurrences {
		settlements = append(settlements, domain.ForecastInstance{
			RuleID:    occurrence.RuleID,
			DueDate:   util.FirstOfNextMonth(occurrence.DueDate),
			Amount:    occurrence.Amount,
			Category:  domain.CategoryDeferredSettlement,
			Direction: domain.DirectionExpense,
			Kind:      domain.InstanceRecurring,
			Label:     occurrence.Label,
			Settlement: &domain.SettlementTag{
				RuleID: occurrence.RuleID,
				Period: util.MonthKey(occurrence.DueDate),
			},
		})
	}
	return settlements
}
