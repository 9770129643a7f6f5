package service

import (
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
)

const (
	// DefaultForecastMonths is the default number of months to project ahead
	DefaultForecastMonths = 12
	// MaxForecastMonths bounds the horizon of a single forecast call
	MaxForecastMonths = 36
)

// HorizonEnd returns the exclusive end of a forecast starting at now's month.
func HorizonEnd(now time.Time, horizonMonths int) time.Time {
	return util.AddMonths(util.StartOfMonth(now), horizonMonths, 1)
}

// ExpandRule returns one instance per occurrence of rule from the first due
// date on or after now through the end of the horizon. Past due dates are
// never emitted.
func ExpandRule(rule *domain.RecurringRule, now time.Time, horizonMonths int) []domain.ForecastInstance {
	if horizonMonths <= 0 {
		return nil
	}
	return ruleInstances(rule, OccurrencesBetween(rule, util.NormalizeAnchor(now), HorizonEnd(now, horizonMonths)))
}

func ruleInstances(rule *domain.RecurringRule, occurrences []time.Time) []domain.ForecastInstance {
	instances := make([]domain.ForecastInstance, 0, len(occurrences))
	for _, due := range occurrences {
		instances = append(instances, domain.ForecastInstance{
			RuleID:    rule.ID.String(),
			DueDate:   due,
			Amount:    rule.Amount,
			Category:  rule.Category,
			Direction: rule.Direction,
			Kind:      domain.InstanceRecurring,
			Label:     rule.Description,
		})
	}
	return instances
}

// OccurrencesBetween returns the anchored due dates of rule in [from, until).
func OccurrencesBetween(rule *domain.RecurringRule, from, until time.Time) []time.Time {
	from = util.NormalizeAnchor(from)
	until = util.NormalizeAnchor(until)

	var endDate time.Time
	if rule.EndDate != nil {
		endDate = util.NormalizeAnchor(*rule.EndDate)
	}

	cursor := firstOccurrence(rule)
	// Catch up one cadence step at a time
	for cursor.Before(from) {
		cursor = nextOccurrence(rule, cursor)
	}

	var dates []time.Time
	for cursor.Before(until) {
		if !endDate.IsZero() && cursor.After(endDate) {
			break
		}
		dates = append(dates, cursor)
		cursor = nextOccurrence(rule, cursor)
	}
	return dates
}

// firstOccurrence snaps the normalized start date onto the rule's anchor,
// never earlier than the start date itself.
func firstOccurrence(rule *domain.RecurringRule) time.Time {
	start := util.NormalizeAnchor(rule.StartDate)

	if rule.Cadence == domain.CadenceWeekly {
		return snapToWeekday(start, rule.Weekday)
	}

	day := preferredDay(rule)
	first := util.CalculateActualDate(start.Year(), start.Month(), day)
	if first.Before(start) {
		first = util.AddMonths(first, 1, day)
	}
	return first
}

func nextOccurrence(rule *domain.RecurringRule, cursor time.Time) time.Time {
	if rule.Cadence == domain.CadenceWeekly {
		return snapToWeekday(cursor.AddDate(0, 0, 7), rule.Weekday)
	}
	step := rule.Cadence.MonthStep()
	if step == 0 {
		step = 1
	}
	return util.AddMonths(cursor, step, preferredDay(rule))
}

// preferredDay is the rule's day-of-month anchor, falling back to the start
// date's day so clamped months recover (Jan 31 -> Feb 29 -> Mar 31).
func preferredDay(rule *domain.RecurringRule) int {
	if rule.DayOfMonth != nil {
		return *rule.DayOfMonth
	}
	return util.NormalizeAnchor(rule.StartDate).Day()
}

// snapToWeekday moves t forward to the requested weekday (0 = Sunday).
func snapToWeekday(t time.Time, weekday *int) time.Time {
	if weekday == nil {
		return t
	}
	delta := (*weekday - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, delta)
}
