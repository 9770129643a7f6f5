package handler

import (
	"net/http"

	"github.com/dankozobeats/voicetracker-backend/internal/middleware"
	"github.com/dankozobeats/voicetracker-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// GenerationHandler lets an owner materialize a month on demand
type GenerationHandler struct {
	generationService *service.GenerationService
}

// NewGenerationHandler creates a new GenerationHandler
func NewGenerationHandler(generationService *service.GenerationService) *GenerationHandler {
	return &GenerationHandler{
		generationService: generationService,
	}
}

// GenerationResponse reports the rows written for one owner and month
type GenerationResponse struct {
	Month      string `json:"month"`
	Generated  int    `json:"generated"`
	Skipped    int    `json:"skipped"`
	Carryovers int    `json:"carryovers"`
}

// Generate handles POST /api/v1/generation/:month
// Reruns for the same month are no-ops.
func (h *GenerationHandler) Generate(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	result, err := h.generationService.GenerateOwner(c.Request().Context(), ownerID, c.Param("month"))
	if err != nil {
		return handleServiceError(c, err, ownerID, "generate month")
	}

	return c.JSON(http.StatusOK, GenerationResponse{
		Month:      result.Month,
		Generated:  result.Generated,
		Skipped:    result.Skipped,
		Carryovers: result.Carryovers,
	})
}
