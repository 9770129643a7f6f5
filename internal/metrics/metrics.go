package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var collectors = []prometheus.Collector{
	requestCount,
	requestDuration,
	forecastDuration,
	forecastWarnings,
	generationRuns,
	generatedRows,
	generationDuration,
	settlementRepairs,
}

// Register registers all collectors with the default registry.
func Register() error {
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			return fmt.Errorf("could not register %s with Prometheus: %w", c, err)
		}
	}
	return nil
}

// Unregister removes all collectors from the default registry.
//
// This is needed to cleanly exit.
func Unregister() bool {
	for _, c := range collectors {
		if ok := prometheus.Unregister(c); !ok {
			return false
		}
	}
	return true
}

var requestCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "requests_total",
		Help: "How many HTTP requests processed, partitioned by status code, HTTP method and route.",
	},
	[]string{"code", "method", "route"},
)

var requestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "request_duration_seconds",
		Help: "The HTTP request latencies in seconds.",
	},
	[]string{"code", "method", "route"},
)

var forecastDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name: "forecast_duration_seconds",
		Help: "Time spent computing a forecast.",
	},
)

var forecastWarnings = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "forecast_warnings_total",
		Help: "Warnings attached to forecast results, such as ledger drift.",
	},
)

var generationRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_runs_total",
		Help: "Batch generation runs per owner, partitioned by outcome.",
	},
	[]string{"outcome"},
)

var generatedRows = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generated_rows_total",
		Help: "Rows written by the batch generation driver, partitioned by link kind.",
	},
	[]string{"kind"},
)

var generationDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name: "generation_duration_seconds",
		Help: "Wall time of a full batch generation run.",
	},
)

var settlementRepairs = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "settlement_repairs_total",
		Help: "Settlement rows changed by the reconciler, partitioned by action.",
	},
	[]string{"action"},
)

// ObserveForecast records one forecast computation.
func ObserveForecast(elapsed time.Duration, warnings int) {
	forecastDuration.Observe(elapsed.Seconds())
	if warnings > 0 {
		forecastWarnings.Add(float64(warnings))
	}
}

// ObserveGenerationRun records a full batch run.
func ObserveGenerationRun(elapsed time.Duration) {
	generationDuration.Observe(elapsed.Seconds())
}

// CountOwnerGeneration records the outcome of one owner's generation unit.
func CountOwnerGeneration(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	generationRuns.WithLabelValues(outcome).Inc()
}

// CountGenerated adds n rows written for the given link kind.
func CountGenerated(kind string, n int) {
	if n > 0 {
		generatedRows.WithLabelValues(kind).Add(float64(n))
	}
}

// CountSettlementRepair records a settlement row created, updated or deleted.
func CountSettlementRepair(action string) {
	settlementRepairs.WithLabelValues(action).Inc()
}

// Middleware updates the HTTP request collectors. Routes are labelled by
// their registered path to keep cardinality bounded.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start).Seconds()

			requestDuration.WithLabelValues(status, c.Request().Method, route).Observe(elapsed)
			requestCount.WithLabelValues(status, c.Request().Method, route).Inc()
			return nil
		}
	}
}
