package handler

import (
	"net/http"

	"github.com/dankozobeats/voicetracker-backend/internal/middleware"
	"github.com/dankozobeats/voicetracker-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// SettlementHandler exposes the settlement repair pass
type SettlementHandler struct {
	settlementService *service.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(settlementService *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
	}
}

// ReconcileResponse reports what the repair pass changed
type ReconcileResponse struct {
	Checked  int `json:"checked"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
	Failures int `json:"failures"`
}

// Reconcile handles POST /api/v1/settlements/reconcile
func (h *SettlementHandler) Reconcile(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == "" {
		return NewUnauthorizedError(c, "Owner required")
	}

	result, err := h.settlementService.ReconcileOwner(c.Request().Context(), ownerID)
	if err != nil {
		return handleServiceError(c, err, ownerID, "reconcile settlements")
	}

	log.Info().
		Str("owner_id", ownerID).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int("failures", result.Failures).
		Msg("Settlements reconciled")

	return c.JSON(http.StatusOK, ReconcileResponse{
		Checked:  result.Checked,
		Created:  result.Created,
		Updated:  result.Updated,
		Deleted:  result.Deleted,
		Failures: result.Failures,
	})
}
