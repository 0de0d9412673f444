package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/josepht96/scout-mcp/internal/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func successfulRun(collection string, stats runner.TestStats) runner.CompletedRun {
	start := time.Unix(1_700_000_000, 0)
	return runner.CompletedRun{
		Params: runner.Params{CollectionID: collection},
		Result: &runner.ExecutionResult{
			TestStats: stats,
			StartTime: start,
			EndTime:   start.Add(750 * time.Millisecond),
			Duration:  750 * time.Millisecond,
		},
	}
}

func TestObserveRunSuccess(t *testing.T) {
	e := NewPrometheusExporter(prometheus.NewRegistry())

	e.ObserveRun(context.Background(), successfulRun("c1", runner.TestStats{Total: 3, Passed: 3}))

	assert.Equal(t, 1.0, testutil.ToFloat64(e.runsTotal.WithLabelValues("c1", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(e.testsTotal.WithLabelValues("c1", "passed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.testsTotal.WithLabelValues("c1", "failed")))
	assert.Equal(t, 750.0, testutil.ToFloat64(e.collectionDuration.WithLabelValues("c1")))
	assert.Equal(t, 1_700_000_000.0, testutil.ToFloat64(e.collectionLastRun.WithLabelValues("c1")))
	assert.Equal(t, 1_700_000_000.0, testutil.ToFloat64(e.collectionLastSuccess.WithLabelValues("c1")))
}

func TestObserveRunWithFailuresKeepsLastSuccess(t *testing.T) {
	e := NewPrometheusExporter(prometheus.NewRegistry())

	e.ObserveRun(context.Background(), successfulRun("c1", runner.TestStats{Total: 2, Passed: 1, Failed: 1}))

	assert.Equal(t, 1.0, testutil.ToFloat64(e.testsTotal.WithLabelValues("c1", "failed")))
	assert.Equal(t, 0, testutil.CollectAndCount(e.collectionLastSuccess))
}

func TestObserveRunOutcomes(t *testing.T) {
	e := NewPrometheusExporter(prometheus.NewRegistry())
	ctx := context.Background()

	e.ObserveRun(ctx, runner.CompletedRun{
		Params: runner.Params{CollectionID: "c1"},
		Err:    &runner.FetchError{Kind: runner.ErrFetchCollection, ID: "c1", Err: errors.New("404")},
	})
	e.ObserveRun(ctx, runner.CompletedRun{
		Params: runner.Params{CollectionID: "c1"},
		Err:    fmt.Errorf("%w: crashed", runner.ErrEngine),
	})
	e.ObserveRun(ctx, runner.CompletedRun{
		Params: runner.Params{CollectionID: "c1"},
		Err:    errors.New("collectionId is required"),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(e.runsTotal.WithLabelValues("c1", "fetch_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.runsTotal.WithLabelValues("c1", "engine_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.runsTotal.WithLabelValues("c1", "error")))
	assert.Equal(t, 0, testutil.CollectAndCount(e.collectionDuration))
}

func TestTelemetryReported(t *testing.T) {
	e := NewPrometheusExporter(prometheus.NewRegistry())

	e.TelemetryReported(nil)
	e.TelemetryReported(nil)
	e.TelemetryReported(errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(e.telemetryReports.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.telemetryReports.WithLabelValues("error")))
}
