package handler

import (
	"github.com/dankozobeats/voicetracker-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Handlers groups the HTTP handlers mounted under /api/v1
type Handlers struct {
	Rules        *RuleHandler
	Forecast     *ForecastHandler
	Envelopes    *EnvelopeHandler
	Transactions *TransactionHandler
	Settlements  *SettlementHandler
	Generation   *GenerationHandler
}

// RegisterRoutes sets up all API routes. authenticate resolves the owner and
// runs ahead of the per-owner rate limiter on every group; routes that
// rewrite a whole month are charged middleware.HeavyRequestCost.
func RegisterRoutes(e *echo.Echo, authenticate echo.MiddlewareFunc, rateLimiter *middleware.RateLimiter, h Handlers) {
	api := e.Group("/api/v1")
	protected := []echo.MiddlewareFunc{authenticate}
	heavy := []echo.MiddlewareFunc{authenticate}
	if rateLimiter != nil {
		protected = append(protected, middleware.RateLimit(rateLimiter, 1))
		heavy = append(heavy, middleware.RateLimit(rateLimiter, middleware.HeavyRequestCost))
	}

	// Recurring rules
	rules := api.Group("/rules", protected...)
	rules.GET("", h.Rules.ListRules)
	rules.POST("", h.Rules.CreateRule)
	rules.GET("/:id", h.Rules.GetRule)
	rules.PUT("/:id", h.Rules.UpdateRule)
	rules.DELETE("/:id", h.Rules.DeleteRule)

	// Forecast
	forecast := api.Group("/forecast", protected...)
	forecast.GET("", h.Forecast.GetForecast)

	// Budget envelopes
	envelopes := api.Group("/envelopes", protected...)
	envelopes.GET("", h.Envelopes.ListEnvelopes)
	envelopes.POST("", h.Envelopes.CreateEnvelope)
	envelopes.GET("/match", h.Envelopes.MatchEnvelope)
	envelopes.GET("/:id", h.Envelopes.GetEnvelope)
	envelopes.PUT("/:id", h.Envelopes.UpdateEnvelope)
	envelopes.DELETE("/:id", h.Envelopes.DeleteEnvelope)

	// Transactions
	transactions := api.Group("/transactions", protected...)
	transactions.GET("", h.Transactions.ListTransactions)
	transactions.POST("", h.Transactions.CreateTransaction)
	transactions.GET("/:id", h.Transactions.GetTransaction)
	transactions.PUT("/:id", h.Transactions.UpdateTransaction)
	transactions.DELETE("/:id", h.Transactions.DeleteTransaction)

	// Settlements
	settlements := api.Group("/settlements", heavy...)
	settlements.POST("/reconcile", h.Settlements.Reconcile)

	// Generation (current owner only)
	generation := api.Group("/generation", heavy...)
	generation.POST("/:month", h.Generation.Generate)
}
