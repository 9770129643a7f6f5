package handler

import (
	"net/http"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/middleware"
	"github.com/dankozobeats/voicetracker-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// RuleHandler handles recurring rule HTTP requests
type RuleHandler struct {
	recurringService *service.RecurringService
}

// NewRuleHandler creates a new RuleHandler
func NewRuleHandler(recurringService *service.RecurringService) *RuleHandler {
	return &RuleHandler{
		recurringService: recurringService,
	}
}

// RuleRequest is the body of create and replace requests
type RuleRequest struct {
	Amount         string  `json:"amount"`
	Direction      string  `json:"direction"`
	Cadence        string  `json:"cadence"`
	DayOfMonth     *int    `json:"dayOfMonth,omitempty"`
	Weekday        *int    `json:"weekday,omitempty"`
	SettlementMode string  `json:"settlementMode"`
	StartDate      string  `json:"startDate"`
	EndDate        *string `json:"endDate,omitempty"`
	Category       string  `json:"category"`
	Description    string  `json:"description"`
}

// RuleResponse represents a recurring rule in API responses
type RuleResponse struct {
	ID             string  `json:"id"`
	Amount         string  `json:"amount"`
	Direction      string  `json:"direction"`
	Cadence        string  `json:"cadence"`
	DayOfMonth     *int    `json:"dayOfMonth,omitempty"`
	Weekday        *int    `json:"weekday,omitempty"`
	SettlementMode string  `json:"settlementMode"`
	StartDate      string  `json:"startDate"`
	EndDate        *string `json:"endDate,omitempty"`
	Category       string  `json:"category"`
	Description    string  `json:"description"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

// RuleListResponse represents the list response
type RuleListResponse struct {
	Data []RuleResponse `json:"data"`
}

// ListRules handles GET /api/v1/rules
func (h *RuleHandler) ListRules(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	rules, err := h.recurringService.ListRules(c.Request().Context(), ownerID)
	if err != nil {
		return handleServiceError(c, err, ownerID, "list recurring rules")
	}

	data := make([]RuleResponse, len(rules))
	for i, rule := range rules {
		data[i] = toRuleResponse(rule)
	}
	return c.JSON(http.StatusOK, RuleListResponse{Data: data})
}

// GetRule handles GET /api/v1/rules/:id
func (h *RuleHandler) GetRule(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid rule ID", nil)
	}

	rule, err := h.recurringService.GetRule(c.Request().Context(), ownerID, id)
	if err != nil {
		return handleServiceError(c, err, ownerID, "get recurring rule")
	}
	return c.JSON(http.StatusOK, toRuleResponse(rule))
}

// CreateRule handles POST /api/v1/rules
func (h *RuleHandler) CreateRule(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	var req RuleRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input, fieldErrs := req.toInput()
	if len(fieldErrs) > 0 {
		return NewValidationError(c, "Invalid recurring rule", fieldErrs)
	}

	rule, err := h.recurringService.CreateRule(c.Request().Context(), ownerID, input)
	if err != nil {
		return handleServiceError(c, err, ownerID, "create recurring rule")
	}

	log.Info().Str("owner_id", ownerID).Str("rule_id", rule.ID.String()).Str("cadence", string(rule.Cadence)).Msg("Recurring rule created")

	return c.JSON(http.StatusCreated, toRuleResponse(rule))
}

// UpdateRule handles PUT /api/v1/rules/:id
func (h *RuleHandler) UpdateRule(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid rule ID", nil)
	}

	var req RuleRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input, fieldErrs := req.toInput()
	if len(fieldErrs) > 0 {
		return NewValidationError(c, "Invalid recurring rule", fieldErrs)
	}

	rule, err := h.recurringService.UpdateRule(c.Request().Context(), ownerID, id, input)
	if err != nil {
		return handleServiceError(c, err, ownerID, "update recurring rule")
	}

	log.Info().Str("owner_id", ownerID).Str("rule_id", rule.ID.String()).Msg("Recurring rule updated")

	return c.JSON(http.StatusOK, toRuleResponse(rule))
}

// DeleteRule handles DELETE /api/v1/rules/:id
func (h *RuleHandler) DeleteRule(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid rule ID", nil)
	}

	if err := h.recurringService.DeleteRule(c.Request().Context(), ownerID, id); err != nil {
		return handleServiceError(c, err, ownerID, "delete recurring rule")
	}

	log.Info().Str("owner_id", ownerID).Str("rule_id", id.String()).Msg("Recurring rule deleted")

	return c.NoContent(http.StatusNoContent)
}

func (r RuleRequest) toInput() (service.RuleInput, []ValidationError) {
	var fieldErrs []ValidationError

	amount, amountErr := parseAmount("amount", r.Amount)
	if amountErr != nil {
		fieldErrs = append(fieldErrs, *amountErr)
	}

	var start time.Time
	if r.StartDate != "" {
		parsed, dateErr := parseDate("startDate", r.StartDate)
		if dateErr != nil {
			fieldErrs = append(fieldErrs, *dateErr)
		}
		start = parsed
	}

	var end *time.Time
	if r.EndDate != nil && *r.EndDate != "" {
		parsed, dateErr := parseDate("endDate", *r.EndDate)
		if dateErr != nil {
			fieldErrs = append(fieldErrs, *dateErr)
		} else {
			end = &parsed
		}
	}

	return service.RuleInput{
		Amount:         amount,
		Direction:      domain.Direction(r.Direction),
		Cadence:        domain.Cadence(r.Cadence),
		DayOfMonth:     r.DayOfMonth,
		Weekday:        r.Weekday,
		SettlementMode: domain.SettlementMode(r.SettlementMode),
		StartDate:      start,
		EndDate:        end,
		Category:       r.Category,
		Description:    r.Description,
	}, fieldErrs
}

func toRuleResponse(rule *domain.RecurringRule) RuleResponse {
	resp := RuleResponse{
		ID:             rule.ID.String(),
		Amount:         formatAmount(rule.Amount),
		Direction:      string(rule.Direction),
		Cadence:        string(rule.Cadence),
		DayOfMonth:     rule.DayOfMonth,
		Weekday:        rule.Weekday,
		SettlementMode: string(rule.SettlementMode),
		StartDate:      formatDate(rule.StartDate),
		Category:       string(rule.Category),
		Description:    rule.Description,
		CreatedAt:      formatTimestamp(rule.CreatedAt),
		UpdatedAt:      formatTimestamp(rule.UpdatedAt),
	}
	if rule.EndDate != nil {
		end := formatDate(*rule.EndDate)
		resp.EndDate = &end
	}
	return resp
}
