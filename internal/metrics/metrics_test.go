package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUnregister(t *testing.T) {
	require.NoError(t, Register())
	assert.Error(t, Register(), "collectors are registered once")
	assert.True(t, Unregister())
}

func TestGenerationCounters(t *testing.T) {
	before := testutil.ToFloat64(generatedRows.WithLabelValues("recurring"))
	CountGenerated("recurring", 3)
	CountGenerated("recurring", 0)
	assert.Equal(t, before+3, testutil.ToFloat64(generatedRows.WithLabelValues("recurring")))

	okBefore := testutil.ToFloat64(generationRuns.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(generationRuns.WithLabelValues("error"))
	CountOwnerGeneration(nil)
	CountOwnerGeneration(errors.New("boom"))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(generationRuns.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(generationRuns.WithLabelValues("error")))
}

func TestObserveForecastCountsWarnings(t *testing.T) {
	before := testutil.ToFloat64(forecastWarnings)
	ObserveForecast(5*time.Millisecond, 0)
	ObserveForecast(5*time.Millisecond, 2)
	assert.Equal(t, before+2, testutil.ToFloat64(forecastWarnings))
}

func TestMiddlewareLabelsByRoute(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/api/v1/rules/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	before := testutil.ToFloat64(requestCount.WithLabelValues("204", http.MethodGet, "/api/v1/rules/:id"))
	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rules/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(requestCount.WithLabelValues("204", http.MethodGet, "/api/v1/rules/:id")))
}
