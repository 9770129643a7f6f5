package service

import (
	"sort"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/shopspring/decimal"
)

// SortInstances orders instances by due date, rule id, category and amount so
// that identical inputs always serialize identically.
func SortInstances(instances []domain.ForecastInstance) {
	sort.SliceStable(instances, func(i, j int) bool {
		a, b := instances[i], instances[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Amount.LessThan(b.Amount)
	})
}

// Aggregate folds sorted instances into one summary per month key, carrying
// the overdraft from each month into the next. Months must be chronological.
func Aggregate(instances []domain.ForecastInstance, startingOverdraft decimal.Decimal, months []string) []domain.MonthSummary {
	byMonth := make(map[string][]domain.ForecastInstance, len(months))
	for _, instance := range instances {
		key := util.MonthKey(instance.DueDate)
		byMonth[key] = append(byMonth[key], instance)
	}

	overdraft := decimal.Max(startingOverdraft, decimal.Zero)
	summaries := make([]domain.MonthSummary, 0, len(months))

	for _, month := range months {
		summary := summarizeMonth(month, byMonth[month], overdraft)
		summaries = append(summaries, summary)
		overdraft = summary.OverdraftRemaining
	}
	return summaries
}

func summarizeMonth(month string, instances []domain.ForecastInstance, overdraftIn decimal.Decimal) domain.MonthSummary {
	immediate := decimal.Zero
	deferred := decimal.Zero
	income := decimal.Zero
	items := make([]domain.MonthItem, 0, len(instances))

	for _, instance := range instances {
		items = append(items, domain.MonthItem{
			RuleID:    instance.RuleID,
			Label:     instance.Label,
			DueDate:   instance.DueDate,
			Amount:    instance.Amount,
			Category:  instance.Category,
			Direction: instance.Direction,
			Kind:      instance.Kind,
		})

		switch {
		case instance.Kind == domain.InstanceCarryover:
			// Already counted through overdraftIn
		case instance.Direction == domain.DirectionIncome:
			income = income.Add(instance.Amount)
		case instance.IsSettlement():
			deferred = deferred.Add(instance.Amount)
		default:
			immediate = immediate.Add(instance.Amount)
		}
	}

	// Prior overdraft is paid first, up to this month's income
	carryoverPaid := decimal.Min(overdraftIn, income)
	overdraftOut := decimal.Max(overdraftIn.Add(immediate).Sub(income), decimal.Zero)

	return domain.MonthSummary{
		Month:              month,
		Immediate:          immediate,
		Deferred:           deferred,
		Income:             income,
		OverdraftIn:        overdraftIn,
		CarryoverPaid:      carryoverPaid,
		OverdraftRemaining: overdraftOut,
		TotalWithCarryover: immediate.Add(deferred).Add(overdraftIn),
		FinalBalance:       income.Sub(overdraftIn).Sub(immediate).Sub(deferred),
		Items:              items,
	}
}
