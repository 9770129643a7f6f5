package handler

import (
	"net/http"

	"github.com/dankozobeats/voicetracker-backend/internal/middleware"
	"github.com/dankozobeats/voicetracker-backend/internal/websocket"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades authenticated clients onto the event hub
type WebSocketHandler struct {
	hub    *websocket.Hub
	owners middleware.OwnerResolver
	// allowedOrigins is the browser origin allowlist, shared with CORS
	allowedOrigins map[string]bool
	upgrader       ws.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *websocket.Hub, owners middleware.OwnerResolver, allowedOrigins []string) *WebSocketHandler {
	// Index origins for the per-upgrade lookup
	originMap := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originMap[origin] = true
	}

	h := &WebSocketHandler{
		hub:            hub,
		owners:         owners,
		allowedOrigins: originMap,
	}

	// Clients only receive events, so small buffers are enough
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin accepts requests without an Origin header (non-browser clients)
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigins[origin] {
		return true
	}

	log.Warn().
		Str("origin", origin).
		Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// HandleWS handles GET /ws?token=<jwt>. Browsers cannot set headers on the
// upgrade request, so the token travels as a query parameter.
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	// Read the bearer token from the query string
	token := c.QueryParam("token")
	if token == "" {
		log.Debug().Msg("WebSocket connection rejected: missing token")
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	// Same validation as the REST API; the subject becomes the owner
	ownerID, err := h.owners.ResolveOwner(c.Request().Context(), token)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket connection rejected: invalid token")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("WebSocket upgrade failed")
		return err
	}

	// last_seq lets a reconnecting client tell whether it missed events
	client := websocket.NewClient(conn, ownerID)
	log.Info().
		Str("owner_id", ownerID).
		Str("client_id", client.ID()).
		Uint64("last_seq", h.hub.LastSeq(ownerID)).
		Msg("WebSocket client connected")

	// Serve registers with the hub and owns the connection from here on
	go client.Serve(h.hub)
	return nil
}
