package domain

import "strings"

// Category is the closed set of spending/income categories shared by rules,
// transactions and envelopes.
type Category string

const (
	CategoryHousing       Category = "housing"
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryUtilities     Category = "utilities"
	CategorySubscriptions Category = "subscriptions"
	CategoryHealth        Category = "health"
	CategoryLeisure       Category = "leisure"
	CategoryShopping      Category = "shopping"
	CategoryEducation     Category = "education"
	CategorySalary        Category = "salary"
	CategorySavings       Category = "savings"
	CategoryOther         Category = "other"

	// System variants. Only the engine writes these.
	CategoryDeferredSettlement Category = "deferred_settlement"
	CategoryCarryover          Category = "carryover"
)

var userCategories = map[Category]struct{}{
	CategoryHousing:       {},
	CategoryFood:          {},
	CategoryTransport:     {},
	CategoryUtilities:     {},
	CategorySubscriptions: {},
	CategoryHealth:        {},
	CategoryLeisure:       {},
	CategoryShopping:      {},
	CategoryEducation:     {},
	CategorySalary:        {},
	CategorySavings:       {},
	CategoryOther:         {},
}

// ParseCategory validates a caller-supplied category. An empty value maps to
// CategoryOther. System variants are rejected.
func ParseCategory(raw string) (Category, error) {
	value := Category(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return CategoryOther, nil
	}
	if _, ok := userCategories[value]; !ok {
		return "", ErrInvalidCategory
	}
	return value, nil
}

// IsSystem reports whether the category is reserved for engine-generated rows.
func (c Category) IsSystem() bool {
	return c == CategoryDeferredSettlement || c == CategoryCarryover
}

// IsValid reports whether c is any known variant, system variants included.
func (c Category) IsValid() bool {
	if c.IsSystem() {
		return true
	}
	_, ok := userCategories[c]
	return ok
}

// UserCategories returns the selectable categories in a stable order.
func UserCategories() []Category {
	return []Category{
		CategoryHousing,
		CategoryFood,
		CategoryTransport,
		CategoryUtilities,
		CategorySubscriptions,
		CategoryHealth,
		CategoryLeisure,
		CategoryShopping,
		CategoryEducation,
		CategorySalary,
		CategorySavings,
		CategoryOther,
	}
}
