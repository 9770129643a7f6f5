package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation   = "https://voicetracker.app/errors/validation"
	ErrorTypeNotFound     = "https://voicetracker.app/errors/not-found"
	ErrorTypeUnauthorized = "https://voicetracker.app/errors/unauthorized"
	ErrorTypeConflict     = "https://voicetracker.app/errors/conflict"
	ErrorTypeInternal     = "https://voicetracker.app/errors/internal"
)

const dateLayout = "2006-01-02"

func problem(c echo.Context, status int, typ, title, detail string) error {
	return c.JSON(status, ProblemDetails{
		Type:     typ,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewValidationError responds 400 with the offending fields
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return c.JSON(http.StatusBadRequest, ProblemDetails{
		Type:     ErrorTypeValidation,
		Title:    "Validation Error",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errors,
	})
}

func NewNotFoundError(c echo.Context, detail string) error {
	return problem(c, http.StatusNotFound, ErrorTypeNotFound, "Not Found", detail)
}

func NewUnauthorizedError(c echo.Context, detail string) error {
	return problem(c, http.StatusUnauthorized, ErrorTypeUnauthorized, "Unauthorized", detail)
}

// NewConflictError reports a ledger or idempotency invariant the request would break
func NewConflictError(c echo.Context, detail string) error {
	return problem(c, http.StatusConflict, ErrorTypeConflict, "Conflict", detail)
}

func NewInternalError(c echo.Context, detail string) error {
	return problem(c, http.StatusInternalServerError, ErrorTypeInternal, "Internal Server Error", detail)
}

// handleServiceError maps service errors onto problem responses. Anything
// unrecognized is logged and hidden behind a generic 500.
func handleServiceError(c echo.Context, err error, ownerID, action string) error {
	switch {
	case errors.Is(err, domain.ErrOwnerRequired):
		return NewUnauthorizedError(c, "Owner required")
	case errors.Is(err, domain.ErrRuleNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrEnvelopeNotFound),
		errors.Is(err, domain.ErrNotFound):
		return NewNotFoundError(c, err.Error())
	case domain.IsInvariantError(err):
		return NewConflictError(c, err.Error())
	case domain.IsValidationError(err):
		return NewValidationError(c, err.Error(), nil)
	}

	log.Error().Err(err).Str("owner_id", ownerID).Msg("Failed to " + action)
	return NewInternalError(c, "Failed to "+action)
}

// parseAmount parses a decimal amount field
func parseAmount(field, raw string) (decimal.Decimal, *ValidationError) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Message: "Must be a valid decimal number"}
	}
	return amount, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339
func parseDate(field, raw string) (time.Time, *ValidationError) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, &ValidationError{Field: field, Message: "Must be a date formatted as YYYY-MM-DD"}
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
