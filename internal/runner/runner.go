package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// APIClient is the Postman API capability the runner depends on
type APIClient interface {
	Getter
	Poster
}

// CompletedRun is handed to every RunObserver after a run ends. Err is set when
// the run failed, in which case Result and Telemetry are nil.
type CompletedRun struct {
	Params          Params
	CollectionName  string
	EnvironmentName string
	FolderName      string
	Result          *ExecutionResult
	Telemetry       *TelemetryPayload
	Err             error
}

// RunObserver is notified after each run, e.g. to persist history or update metrics
type RunObserver interface {
	ObserveRun(ctx context.Context, run CompletedRun)
}

// Runner executes stored collections end to end
type Runner struct {
	client       APIClient
	orchestrator *Orchestrator
	builder      *TelemetryBuilder
	reporter     *TelemetryReporter
	observers    []RunObserver
	logger       zerolog.Logger
	wg           sync.WaitGroup
}

// Config contains runner configuration
type Config struct {
	Client           APIClient
	Engine           Engine
	Branch           string
	DisableTelemetry bool
	OnTelemetry      func(error)
	Observers        []RunObserver
	Logger           zerolog.Logger
}

// New creates a new Runner
func New(config Config) *Runner {
	logger := config.Logger.With().Str("component", "runner").Logger()

	r := &Runner{
		client:       config.Client,
		orchestrator: NewOrchestrator(config.Engine, logger),
		builder:      NewTelemetryBuilder(config.Branch),
		observers:    config.Observers,
		logger:       logger,
	}
	if !config.DisableTelemetry {
		r.reporter = NewTelemetryReporter(config.Client, config.Logger, config.OnTelemetry)
	}
	return r
}

// RunCollection fetches the collection and optional environment, runs it and
// returns the text report. Only fetch failures and engine failures are returned
// as errors. Telemetry and observers run in the background and never affect
// the result.
func (r *Runner) RunCollection(ctx context.Context, params Params) (string, error) {
	if params.CollectionID == "" {
		return "", errors.New("collectionId is required")
	}

	completed := CompletedRun{Params: params}
	defer func() { r.notify(ctx, completed) }()

	collection, err := FetchCollection(ctx, r.client, params.CollectionID)
	if err != nil {
		r.logger.Error().Err(err).Str("collection_id", params.CollectionID).Msg("fetch failed")
		completed.Err = err
		return "", err
	}
	completed.CollectionName = collection.Name

	var environment *EnvironmentData
	if params.EnvironmentID != "" {
		environment, err = FetchEnvironment(ctx, r.client, params.EnvironmentID)
		if err != nil {
			r.logger.Error().Err(err).Str("environment_id", params.EnvironmentID).Msg("fetch failed")
			completed.Err = err
			return "", err
		}
		completed.EnvironmentName = environment.Name
	}
	completed.FolderName = ResolveFolderName(params.FolderID, collection.JSON)

	result, err := r.orchestrator.Execute(ctx, ExecutionContext{
		Collection:  collection,
		Environment: environment,
		Params:      params,
	})
	if err != nil {
		completed.Err = err
		return "", err
	}

	payload := r.builder.Build(params.CollectionID, collection.Name, result)
	if r.reporter != nil {
		r.reporter.ReportAsync(payload)
	}

	completed.Result = result
	completed.Telemetry = payload

	r.logger.Info().
		Str("collection_id", params.CollectionID).
		Int("tests", result.TestStats.Total).
		Int("failed", result.TestStats.Failed).
		Dur("duration", result.Duration).
		Msg("collection run completed")

	return FormatUserOutput(result), nil
}

// notify hands the finished run to every observer off the caller's path
func (r *Runner) notify(ctx context.Context, completed CompletedRun) {
	if len(r.observers) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for _, o := range r.observers {
			o.ObserveRun(ctx, completed)
		}
	}()
}

// Wait blocks until background telemetry reports and observers have finished
func (r *Runner) Wait() {
	if r.reporter != nil {
		r.reporter.Wait()
	}
	r.wg.Wait()
}

// FormatUserOutput appends the run duration to the report
func FormatUserOutput(result *ExecutionResult) string {
	return fmt.Sprintf("%s\n⏱️  Duration: %.2fs", result.Output, float64(result.DurationMs())/1000)
}
