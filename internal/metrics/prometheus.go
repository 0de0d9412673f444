package metrics

import (
	"context"
	"errors"

	"github.com/josepht96/scout-mcp/internal/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exports collection run metrics to Prometheus
type PrometheusExporter struct {
	runsTotal             *prometheus.CounterVec
	testsTotal            *prometheus.CounterVec
	collectionDuration    *prometheus.GaugeVec
	collectionLastRun     *prometheus.GaugeVec
	collectionLastSuccess *prometheus.GaugeVec
	telemetryReports      *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter registered on reg
func NewPrometheusExporter(reg prometheus.Registerer) *PrometheusExporter {
	factory := promauto.With(reg)

	return &PrometheusExporter{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_collection_runs_total",
				Help: "Collection runs by outcome (success, fetch_error, engine_error)",
			},
			[]string{"collection", "outcome"},
		),
		testsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_collection_tests_total",
				Help: "Test assertions observed across runs",
			},
			[]string{"collection", "status"},
		),
		collectionDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scout_collection_run_duration_ms",
				Help: "Duration of the last collection run in milliseconds",
			},
			[]string{"collection"},
		),
		collectionLastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scout_collection_last_run_timestamp",
				Help: "Timestamp of the last run for each collection",
			},
			[]string{"collection"},
		),
		collectionLastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scout_collection_last_success_timestamp",
				Help: "Timestamp of the last successful run (all tests passed) for each collection",
			},
			[]string{"collection"},
		),
		telemetryReports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_telemetry_reports_total",
				Help: "Collection run telemetry posts by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveRun updates metrics from a finished run
func (e *PrometheusExporter) ObserveRun(_ context.Context, run runner.CompletedRun) {
	collection := run.Params.CollectionID

	if run.Err != nil {
		e.runsTotal.WithLabelValues(collection, outcome(run.Err)).Inc()
		return
	}
	e.runsTotal.WithLabelValues(collection, "success").Inc()

	result := run.Result
	e.testsTotal.WithLabelValues(collection, "passed").Add(float64(result.TestStats.Passed))
	e.testsTotal.WithLabelValues(collection, "failed").Add(float64(result.TestStats.Failed))
	e.collectionDuration.WithLabelValues(collection).Set(float64(result.DurationMs()))
	e.collectionLastRun.WithLabelValues(collection).Set(float64(result.StartTime.Unix()))

	// Update last success timestamp only if all tests passed
	if result.TestStats.Failed == 0 && result.TestStats.Total > 0 {
		e.collectionLastSuccess.WithLabelValues(collection).Set(float64(result.StartTime.Unix()))
	}
}

// TelemetryReported counts telemetry post outcomes
func (e *PrometheusExporter) TelemetryReported(err error) {
	if err != nil {
		e.telemetryReports.WithLabelValues("error").Inc()
		return
	}
	e.telemetryReports.WithLabelValues("ok").Inc()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, runner.ErrFetchCollection), errors.Is(err, runner.ErrFetchEnvironment):
		return "fetch_error"
	case errors.Is(err, runner.ErrEngine):
		return "engine_error"
	default:
		return "error"
	}
}
