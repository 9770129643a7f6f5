package domain

import "errors"

// Generic errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInternalError = errors.New("internal error")
	ErrOwnerRequired = errors.New("owner id is required")
)

// Validation errors
var (
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrInvalidDirection      = errors.New("direction must be income or expense")
	ErrInvalidCadence        = errors.New("cadence must be weekly, monthly, quarterly or yearly")
	ErrInvalidDayOfMonth     = errors.New("day of month must be between 1 and 31")
	ErrInvalidWeekday        = errors.New("weekday must be between 0 and 6")
	ErrAnchorMismatch        = errors.New("day of month applies to monthly, quarterly and yearly rules, weekday to weekly rules")
	ErrInvalidSettlementMode = errors.New("settlement mode must be immediate or deferred")
	ErrEndBeforeStart        = errors.New("end date must not be before start date")
	ErrStartDateRequired     = errors.New("start date is required")
	ErrInvalidCategory       = errors.New("unknown category")
	ErrDescriptionTooLong    = errors.New("description exceeds maximum length")
	ErrNameRequired          = errors.New("name is required")
	ErrNameTooLong           = errors.New("name exceeds maximum length")
	ErrInvalidPaymentMode    = errors.New("payment mode must be immediate or deferred")
	ErrDeferredIncome        = errors.New("deferred payment mode only applies to expenses")
	ErrInvalidMonth          = errors.New("month must be formatted as YYYY-MM")
	ErrInvalidHorizon        = errors.New("forecast horizon out of range")
	ErrDateRequired          = errors.New("date is required")
)

// Ledger invariant errors
var (
	ErrMasterExists          = errors.New("master envelope already exists")
	ErrNoMaster              = errors.New("no master envelope configured")
	ErrBelowCommitments      = errors.New("amount below allocated commitments")
	ErrChildParentMismatch   = errors.New("child must attach to the existing master")
	ErrAllocationExceeded    = errors.New("allocation exceeds master remaining amount")
	ErrCategoryRequired      = errors.New("child envelope requires a category")
	ErrMasterCategory        = errors.New("master envelope cannot have a category")
	ErrEnvelopeCategoryTaken = errors.New("an envelope already exists for this category")
	ErrLedgerDrift           = errors.New("stored master remaining differs from allocations")
	ErrCarryoverDrift        = errors.New("generated carryover differs from the previous month's deficit")
)

// Not found errors
var (
	ErrRuleNotFound        = errors.New("recurring rule not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrEnvelopeNotFound    = errors.New("envelope not found")
)

// Transaction errors
var (
	ErrSettlementReadOnly = errors.New("settlement rows are managed automatically")
	// ErrDuplicateLink is returned by the store when a generated row's link is already taken
	ErrDuplicateLink = errors.New("duplicate transaction link")
)

// Validation constants
const (
	MaxDescriptionLength  = 255
	MaxEnvelopeNameLength = 100
)

// IsValidationError reports whether err is a caller-facing validation or
// invariant failure rather than an infrastructure failure.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var validationErrors = []error{
	ErrInvalidInput,
	ErrOwnerRequired,
	ErrInvalidAmount,
	ErrInvalidDirection,
	ErrInvalidCadence,
	ErrInvalidDayOfMonth,
	ErrInvalidWeekday,
	ErrAnchorMismatch,
	ErrInvalidSettlementMode,
	ErrEndBeforeStart,
	ErrStartDateRequired,
	ErrInvalidCategory,
	ErrDescriptionTooLong,
	ErrNameRequired,
	ErrNameTooLong,
	ErrInvalidPaymentMode,
	ErrDeferredIncome,
	ErrInvalidMonth,
	ErrInvalidHorizon,
	ErrDateRequired,
	ErrCategoryRequired,
	ErrMasterCategory,
	ErrSettlementReadOnly,
}

// IsInvariantError reports whether err is a ledger invariant violation.
func IsInvariantError(err error) bool {
	return errors.Is(err, ErrMasterExists) ||
		errors.Is(err, ErrNoMaster) ||
		errors.Is(err, ErrBelowCommitments) ||
		errors.Is(err, ErrChildParentMismatch) ||
		errors.Is(err, ErrAllocationExceeded) ||
		errors.Is(err, ErrEnvelopeCategoryTaken) ||
		errors.Is(err, ErrDuplicateLink)
}
