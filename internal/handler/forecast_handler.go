package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/middleware"
	"github.com/dankozobeats/voicetracker-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// ForecastHandler serves cash-flow projections
type ForecastHandler struct {
	forecastService *service.ForecastService
	now             func() time.Time
}

// NewForecastHandler creates a new ForecastHandler
func NewForecastHandler(forecastService *service.ForecastService) *ForecastHandler {
	return &ForecastHandler{
		forecastService: forecastService,
		now:             time.Now,
	}
}

type SettlementTagResponse struct {
	RuleID string `json:"ruleId"`
	Period string `json:"period"`
}

type ForecastInstanceResponse struct {
	RuleID    string                 `json:"ruleId"`
	DueDate   string                 `json:"dueDate"`
	Amount    string                 `json:"amount"`
	Category  string                 `json:"category"`
	Direction string                 `json:"direction"`
	Kind      string                 `json:"kind"`
	Label     string                 `json:"label,omitempty"`
	Metadata  *SettlementTagResponse `json:"metadata,omitempty"`
}

type MonthItemResponse struct {
	RuleID    string `json:"ruleId"`
	Label     string `json:"label,omitempty"`
	DueDate   string `json:"dueDate"`
	Amount    string `json:"amount"`
	Category  string `json:"category"`
	Direction string `json:"direction"`
	Kind      string `json:"kind"`
}

type MonthSummaryResponse struct {
	Month              string              `json:"month"`
	Immediate          string              `json:"immediate"`
	Deferred           string              `json:"deferred"`
	Income             string              `json:"income"`
	OverdraftIn        string              `json:"overdraftIn"`
	CarryoverPaid      string              `json:"carryoverPaid"`
	OverdraftRemaining string              `json:"overdraftRemaining"`
	TotalWithCarryover string              `json:"totalWithCarryover"`
	FinalBalance       string              `json:"finalBalance"`
	Items              []MonthItemResponse `json:"items"`
}

// ForecastResponse is the body of GET /forecast
type ForecastResponse struct {
	Instances         []ForecastInstanceResponse `json:"instances"`
	MonthSummaries    []MonthSummaryResponse     `json:"monthSummaries"`
	StartingOverdraft string                     `json:"startingOverdraft"`
	Warnings          []string                   `json:"warnings,omitempty"`
}

// GetForecast handles GET /api/v1/forecast?months=N
func (h *ForecastHandler) GetForecast(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	months := 0
	if raw := c.QueryParam("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return NewValidationError(c, "Invalid months", []ValidationError{
				{Field: "months", Message: "Must be an integer"},
			})
		}
		months = parsed
	}

	result, err := h.forecastService.Forecast(c.Request().Context(), ownerID, months, h.now())
	if err != nil {
		return handleServiceError(c, err, ownerID, "compute forecast")
	}

	return c.JSON(http.StatusOK, toForecastResponse(result))
}

func toForecastResponse(result *domain.ForecastResult) ForecastResponse {
	resp := ForecastResponse{
		Instances:         make([]ForecastInstanceResponse, len(result.Instances)),
		MonthSummaries:    make([]MonthSummaryResponse, len(result.MonthSummaries)),
		StartingOverdraft: formatAmount(result.StartingOverdraft),
		Warnings:          result.Warnings,
	}

	for i, instance := range result.Instances {
		item := ForecastInstanceResponse{
			RuleID:    instance.RuleID,
			DueDate:   formatDate(instance.DueDate),
			Amount:    formatAmount(instance.Amount),
			Category:  string(instance.Category),
			Direction: string(instance.Direction),
			Kind:      string(instance.Kind),
			Label:     instance.Label,
		}
		if instance.Settlement != nil {
			item.Metadata = &SettlementTagResponse{
				RuleID: instance.Settlement.RuleID,
				Period: instance.Settlement.Period,
			}
		}
		resp.Instances[i] = item
	}

	for i, summary := range result.MonthSummaries {
		items := make([]MonthItemResponse, len(summary.Items))
		for j, item := range summary.Items {
			items[j] = MonthItemResponse{
				RuleID:    item.RuleID,
				Label:     item.Label,
				DueDate:   formatDate(item.DueDate),
				Amount:    formatAmount(item.Amount),
				Category:  string(item.Category),
				Direction: string(item.Direction),
				Kind:      string(item.Kind),
			}
		}
		resp.MonthSummaries[i] = MonthSummaryResponse{
			Month:              summary.Month,
			Immediate:          formatAmount(summary.Immediate),
			Deferred:           formatAmount(summary.Deferred),
			Income:             formatAmount(summary.Income),
			OverdraftIn:        formatAmount(summary.OverdraftIn),
			CarryoverPaid:      formatAmount(summary.CarryoverPaid),
			OverdraftRemaining: formatAmount(summary.OverdraftRemaining),
			TotalWithCarryover: formatAmount(summary.TotalWithCarryover),
			FinalBalance:       formatAmount(summary.FinalBalance),
			Items:              items,
		}
	}

	return resp
}
