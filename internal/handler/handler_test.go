package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dankozobeats/voicetracker-backend/internal/middleware"
	"github.com/dankozobeats/voicetracker-backend/internal/service"
	"github.com/dankozobeats/voicetracker-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const testOwnerHeader = "X-Test-Owner"

// testApp wires the real services over in-memory repositories
type testApp struct {
	e            *echo.Echo
	rules        *testutil.MockRecurringRuleRepository
	transactions *testutil.MockTransactionRepository
	envelopes    *testutil.MockEnvelopeRepository
	forecast     *ForecastHandler
}

// fakeAuth trusts the owner carried by testOwnerHeader
func fakeAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if owner := c.Request().Header.Get(testOwnerHeader); owner != "" {
			middleware.SetOwnerID(c, owner)
		}
		return next(c)
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	ruleRepo := testutil.NewMockRecurringRuleRepository()
	txRepo := testutil.NewMockTransactionRepository()
	envRepo := testutil.NewMockEnvelopeRepository()
	txManager := testutil.NewMockTxManager()

	envelopes := service.NewEnvelopeService(envRepo, txRepo, txManager)
	settlements := service.NewSettlementService(txRepo, txManager)
	transactions := service.NewTransactionService(txRepo, txManager, envelopes, settlements)
	generation := service.NewGenerationService(ruleRepo, txRepo, testutil.NewMockOwnerRepository(), txManager, envelopes, settlements)

	app := &testApp{
		e:            echo.New(),
		rules:        ruleRepo,
		transactions: txRepo,
		envelopes:    envRepo,
		forecast:     NewForecastHandler(service.NewForecastService(ruleRepo, envelopes)),
	}

	RegisterRoutes(app.e, fakeAuth, nil, Handlers{
		Rules:        NewRuleHandler(service.NewRecurringService(ruleRepo)),
		Forecast:     app.forecast,
		Envelopes:    NewEnvelopeHandler(envelopes),
		Transactions: NewTransactionHandler(transactions),
		Settlements:  NewSettlementHandler(settlements),
		Generation:   NewGenerationHandler(generation),
	})
	return app
}

func (a *testApp) do(method, path, owner, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if owner != "" {
		req.Header.Set(testOwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
