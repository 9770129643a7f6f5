package handler

import (
	"net/http"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/middleware"
	"github.com/dankozobeats/voicetracker-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// EnvelopeHandler handles budget envelope HTTP requests
type EnvelopeHandler struct {
	envelopeService *service.EnvelopeService
}

// NewEnvelopeHandler creates a new EnvelopeHandler
func NewEnvelopeHandler(envelopeService *service.EnvelopeService) *EnvelopeHandler {
	return &EnvelopeHandler{
		envelopeService: envelopeService,
	}
}

// CreateEnvelopeRequest represents the create envelope request body
type CreateEnvelopeRequest struct {
	Name     string  `json:"name"`
	Amount   string  `json:"amount"`
	IsMaster bool    `json:"isMaster"`
	ParentID *string `json:"parentId,omitempty"`
	Category string  `json:"category,omitempty"`
}

// UpdateEnvelopeRequest represents the update envelope request body.
// Omitted fields are left unchanged.
type UpdateEnvelopeRequest struct {
	Name     *string `json:"name,omitempty"`
	Amount   *string `json:"amount,omitempty"`
	Category *string `json:"category,omitempty"`
}

// EnvelopeResponse represents an envelope in API responses
type EnvelopeResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Amount    string  `json:"amount"`
	Remaining string  `json:"remaining"`
	IsMaster  bool    `json:"isMaster"`
	ParentID  *string `json:"parentId,omitempty"`
	Category  *string `json:"category,omitempty"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// EnvelopeListResponse represents the list response
type EnvelopeListResponse struct {
	Data []EnvelopeResponse `json:"data"`
}

// EnvelopeMatchResponse carries the matching child, or null
type EnvelopeMatchResponse struct {
	Envelope *EnvelopeResponse `json:"envelope"`
}

// ListEnvelopes handles GET /api/v1/envelopes
func (h *EnvelopeHandler) ListEnvelopes(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	envelopes, err := h.envelopeService.ListEnvelopes(c.Request().Context(), ownerID)
	if err != nil {
		return handleServiceError(c, err, ownerID, "list envelopes")
	}

	data := make([]EnvelopeResponse, len(envelopes))
	for i, envelope := range envelopes {
		data[i] = toEnvelopeResponse(envelope)
	}
	return c.JSON(http.StatusOK, EnvelopeListResponse{Data: data})
}

// GetEnvelope handles GET /api/v1/envelopes/:id
func (h *EnvelopeHandler) GetEnvelope(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid envelope ID", nil)
	}

	envelope, err := h.envelopeService.GetEnvelope(c.Request().Context(), ownerID, id)
	if err != nil {
		return handleServiceError(c, err, ownerID, "get envelope")
	}
	return c.JSON(http.StatusOK, toEnvelopeResponse(envelope))
}

// MatchEnvelope handles GET /api/v1/envelopes/match?category=
func (h *EnvelopeHandler) MatchEnvelope(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	raw := c.QueryParam("category")
	if raw == "" {
		return NewValidationError(c, "Category is required", []ValidationError{
			{Field: "category", Message: "Required"},
		})
	}
	category, err := domain.ParseCategory(raw)
	if err != nil {
		return NewValidationError(c, "Invalid category", []ValidationError{
			{Field: "category", Message: err.Error()},
		})
	}

	envelope, err := h.envelopeService.MatchForCategory(c.Request().Context(), ownerID, category)
	if err != nil {
		return handleServiceError(c, err, ownerID, "match envelope")
	}

	var resp EnvelopeMatchResponse
	if envelope != nil {
		matched := toEnvelopeResponse(envelope)
		resp.Envelope = &matched
	}
	return c.JSON(http.StatusOK, resp)
}

// CreateEnvelope handles POST /api/v1/envelopes
func (h *EnvelopeHandler) CreateEnvelope(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	var req CreateEnvelopeRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, fieldErr := parseAmount("amount", req.Amount)
	if fieldErr != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{*fieldErr})
	}

	input := service.CreateEnvelopeInput{
		Name:     req.Name,
		Amount:   amount,
		IsMaster: req.IsMaster,
		Category: req.Category,
	}
	if req.ParentID != nil && *req.ParentID != "" {
		parentID, err := uuid.Parse(*req.ParentID)
		if err != nil {
			return NewValidationError(c, "Invalid parent ID", []ValidationError{
				{Field: "parentId", Message: "Must be a UUID"},
			})
		}
		input.ParentID = &parentID
	}

	envelope, err := h.envelopeService.CreateEnvelope(c.Request().Context(), ownerID, input)
	if err != nil {
		return handleServiceError(c, err, ownerID, "create envelope")
	}

	log.Info().Str("owner_id", ownerID).Str("envelope_id", envelope.ID.String()).Bool("is_master", envelope.IsMaster).Msg("Envelope created")

	return c.JSON(http.StatusCreated, toEnvelopeResponse(envelope))
}

// UpdateEnvelope handles PUT /api/v1/envelopes/:id
func (h *EnvelopeHandler) UpdateEnvelope(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid envelope ID", nil)
	}

	var req UpdateEnvelopeRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input := service.UpdateEnvelopeInput{
		Name:     req.Name,
		Category: req.Category,
	}
	if req.Amount != nil {
		amount, fieldErr := parseAmount("amount", *req.Amount)
		if fieldErr != nil {
			return NewValidationError(c, "Invalid amount", []ValidationError{*fieldErr})
		}
		input.Amount = &amount
	}

	envelope, err := h.envelopeService.UpdateEnvelope(c.Request().Context(), ownerID, id, input)
	if err != nil {
		return handleServiceError(c, err, ownerID, "update envelope")
	}

	log.Info().Str("owner_id", ownerID).Str("envelope_id", envelope.ID.String()).Msg("Envelope updated")

	return c.JSON(http.StatusOK, toEnvelopeResponse(envelope))
}

// DeleteEnvelope handles DELETE /api/v1/envelopes/:id
func (h *EnvelopeHandler) DeleteEnvelope(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid envelope ID", nil)
	}

	if err := h.envelopeService.DeleteEnvelope(c.Request().Context(), ownerID, id); err != nil {
		return handleServiceError(c, err, ownerID, "delete envelope")
	}

	log.Info().Str("owner_id", ownerID).Str("envelope_id", id.String()).Msg("Envelope deleted")

	return c.NoContent(http.StatusNoContent)
}

func toEnvelopeResponse(envelope *domain.BudgetEnvelope) EnvelopeResponse {
	resp := EnvelopeResponse{
		ID:        envelope.ID.String(),
		Name:      envelope.Name,
		Amount:    formatAmount(envelope.Amount),
		Remaining: formatAmount(envelope.Remaining),
		IsMaster:  envelope.IsMaster,
		CreatedAt: formatTimestamp(envelope.CreatedAt),
		UpdatedAt: formatTimestamp(envelope.UpdatedAt),
	}
	if envelope.ParentID != nil {
		parentID := envelope.ParentID.String()
		resp.ParentID = &parentID
	}
	if envelope.Category != nil {
		category := string(*envelope.Category)
		resp.Category = &category
	}
	return resp
}
