package handler

import (
	"net/http"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/middleware"
	"github.com/dankozobeats/voicetracker-backend/internal/service"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// TransactionHandler handles transaction HTTP requests
type TransactionHandler struct {
	transactionService *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// TransactionRequest is the body of create and replace requests
type TransactionRequest struct {
	Amount      string  `json:"amount"`
	Direction   string  `json:"direction"`
	Date        string  `json:"date"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	PaymentMode string  `json:"paymentMode,omitempty"`
	EnvelopeID  *string `json:"envelopeId,omitempty"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID           string            `json:"id"`
	Amount       string            `json:"amount"`
	Direction    string            `json:"direction"`
	Date         string            `json:"date"`
	Category     string            `json:"category"`
	Description  string            `json:"description"`
	PaymentMode  string            `json:"paymentMode"`
	IsSettlement bool              `json:"isSettlement"`
	EnvelopeID   *string           `json:"envelopeId,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    string            `json:"createdAt"`
	UpdatedAt    string            `json:"updatedAt"`
}

// TransactionListResponse represents the list response
type TransactionListResponse struct {
	Data []TransactionResponse `json:"data"`
}

// ListTransactions handles GET /api/v1/transactions
// Query params: month (YYYY-MM) or startDate/endDate (endDate exclusive),
// envelopeId, direction, category
func (h *TransactionHandler) ListTransactions(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	filters, fieldErrs := parseTransactionFilters(c)
	if len(fieldErrs) > 0 {
		return NewValidationError(c, "Invalid filters", fieldErrs)
	}

	transactions, err := h.transactionService.ListTransactions(c.Request().Context(), ownerID, filters)
	if err != nil {
		return handleServiceError(c, err, ownerID, "list transactions")
	}

	data := make([]TransactionResponse, len(transactions))
	for i, tx := range transactions {
		data[i] = toTransactionResponse(tx)
	}
	return c.JSON(http.StatusOK, TransactionListResponse{Data: data})
}

// GetTransaction handles GET /api/v1/transactions/:id
func (h *TransactionHandler) GetTransaction(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", nil)
	}

	tx, err := h.transactionService.GetTransaction(c.Request().Context(), ownerID, id)
	if err != nil {
		return handleServiceError(c, err, ownerID, "get transaction")
	}
	return c.JSON(http.StatusOK, toTransactionResponse(tx))
}

// CreateTransaction handles POST /api/v1/transactions
func (h *TransactionHandler) CreateTransaction(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	var req TransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input, fieldErrs := req.toInput()
	if len(fieldErrs) > 0 {
		return NewValidationError(c, "Invalid transaction", fieldErrs)
	}

	tx, err := h.transactionService.CreateTransaction(c.Request().Context(), ownerID, input)
	if err != nil {
		return handleServiceError(c, err, ownerID, "create transaction")
	}

	log.Info().
		Str("owner_id", ownerID).
		Str("transaction_id", tx.ID.String()).
		Str("payment_mode", string(tx.PaymentMode)).
		Msg("Transaction created")

	return c.JSON(http.StatusCreated, toTransactionResponse(tx))
}

// UpdateTransaction handles PUT /api/v1/transactions/:id
func (h *TransactionHandler) UpdateTransaction(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", nil)
	}

	var req TransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input, fieldErrs := req.toInput()
	if len(fieldErrs) > 0 {
		return NewValidationError(c, "Invalid transaction", fieldErrs)
	}

	tx, err := h.transactionService.UpdateTransaction(c.Request().Context(), ownerID, id, input)
	if err != nil {
		return handleServiceError(c, err, ownerID, "update transaction")
	}

	log.Info().Str("owner_id", ownerID).Str("transaction_id", tx.ID.String()).Msg("Transaction updated")

	return c.JSON(http.StatusOK, toTransactionResponse(tx))
}

// DeleteTransaction handles DELETE /api/v1/transactions/:id
func (h *TransactionHandler) DeleteTransaction(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", nil)
	}

	if err := h.transactionService.DeleteTransaction(c.Request().Context(), ownerID, id); err != nil {
		return handleServiceError(c, err, ownerID, "delete transaction")
	}

	log.Info().Str("owner_id", ownerID).Str("transaction_id", id.String()).Msg("Transaction deleted")

	return c.NoContent(http.StatusNoContent)
}

func (r TransactionRequest) toInput() (service.TransactionInput, []ValidationError) {
	var fieldErrs []ValidationError

	amount, amountErr := parseAmount("amount", r.Amount)
	if amountErr != nil {
		fieldErrs = append(fieldErrs, *amountErr)
	}

	input := service.TransactionInput{
		Amount:      amount,
		Direction:   domain.Direction(r.Direction),
		Category:    r.Category,
		Description: r.Description,
		PaymentMode: domain.SettlementMode(r.PaymentMode),
	}

	if r.Date != "" {
		date, dateErr := parseDate("date", r.Date)
		if dateErr != nil {
			fieldErrs = append(fieldErrs, *dateErr)
		}
		input.Date = date
	}

	if r.EnvelopeID != nil && *r.EnvelopeID != "" {
		envelopeID, err := uuid.Parse(*r.EnvelopeID)
		if err != nil {
			fieldErrs = append(fieldErrs, ValidationError{Field: "envelopeId", Message: "Must be a UUID"})
		} else {
			input.EnvelopeID = &envelopeID
		}
	}

	return input, fieldErrs
}

func parseTransactionFilters(c echo.Context) (*domain.TransactionFilters, []ValidationError) {
	filters := &domain.TransactionFilters{}
	var fieldErrs []ValidationError

	if month := c.QueryParam("month"); month != "" {
		start, err := util.ParseMonthKey(month)
		if err != nil {
			fieldErrs = append(fieldErrs, ValidationError{Field: "month", Message: "Must be formatted as YYYY-MM"})
		} else {
			end := util.FirstOfNextMonth(start)
			filters.StartDate = &start
			filters.EndDate = &end
		}
	}

	if raw := c.QueryParam("startDate"); raw != "" {
		start, fieldErr := parseDate("startDate", raw)
		if fieldErr != nil {
			fieldErrs = append(fieldErrs, *fieldErr)
		} else {
			filters.StartDate = &start
		}
	}

	if raw := c.QueryParam("endDate"); raw != "" {
		end, fieldErr := parseDate("endDate", raw)
		if fieldErr != nil {
			fieldErrs = append(fieldErrs, *fieldErr)
		} else {
			filters.EndDate = &end
		}
	}

	if raw := c.QueryParam("envelopeId"); raw != "" {
		envelopeID, err := uuid.Parse(raw)
		if err != nil {
			fieldErrs = append(fieldErrs, ValidationError{Field: "envelopeId", Message: "Must be a UUID"})
		} else {
			filters.EnvelopeID = &envelopeID
		}
	}

	if raw := c.QueryParam("direction"); raw != "" {
		direction := domain.Direction(raw)
		if !direction.IsValid() {
			fieldErrs = append(fieldErrs, ValidationError{Field: "direction", Message: "Must be income or expense"})
		} else {
			filters.Direction = &direction
		}
	}

	if raw := c.QueryParam("category"); raw != "" {
		category := domain.Category(raw)
		if !category.IsValid() {
			fieldErrs = append(fieldErrs, ValidationError{Field: "category", Message: "Unknown category"})
		} else {
			filters.Category = &category
		}
	}

	return filters, fieldErrs
}

func toTransactionResponse(tx *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:           tx.ID.String(),
		Amount:       formatAmount(tx.Amount),
		Direction:    string(tx.Direction),
		Date:         formatDate(tx.Date),
		Category:     string(tx.Category),
		Description:  tx.Description,
		PaymentMode:  string(tx.PaymentMode),
		IsSettlement: tx.IsSettlement,
		Metadata:     tx.Metadata(),
		CreatedAt:    formatTimestamp(tx.CreatedAt),
		UpdatedAt:    formatTimestamp(tx.UpdatedAt),
	}
	if tx.EnvelopeID != nil {
		envelopeID := tx.EnvelopeID.String()
		resp.EnvelopeID = &envelopeID
	}
	return resp
}
