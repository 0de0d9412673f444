package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/josepht96/scout-mcp/internal/executor"
	"github.com/rs/zerolog"
)

// Engine runs a collection and streams its lifecycle events. The channel must
// deliver a single EventDone and then be closed.
type Engine interface {
	Start(ctx context.Context, opts executor.Options) (<-chan executor.Event, error)
}

// Orchestrator drives an Engine and turns its events into a report
type Orchestrator struct {
	engine Engine
	logger zerolog.Logger
	now    func() time.Time
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(engine Engine, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		engine: engine,
		logger: logger,
		now:    time.Now,
	}
}

// BuildEngineOptions maps run parameters onto engine options. folderName must
// already be resolved to a display name.
func BuildEngineOptions(params Params, folderName string, collection *CollectionData, environment *EnvironmentData) executor.Options {
	params = params.withDefaults()

	opts := executor.Options{
		Folder:           folderName,
		IterationCount:   params.IterationCount,
		Timeout:          params.RequestTimeout,
		TimeoutRequest:   params.RequestTimeout,
		TimeoutScript:    params.ScriptTimeout,
		IgnoreRedirects:  false,
		Insecure:         false,
		SuppressExitCode: true,
		Reporters:        []string{},
		Color:            "off",
		Verbose:          false,
	}
	if collection != nil {
		opts.Collection = collection.JSON
	}
	if environment != nil {
		opts.Environment = environment.JSON
	}
	if params.StopOnFailure {
		opts.Bail = executor.Bail{"failure"}
	}

	return opts
}

// Execute runs the collection to completion. A done event carrying an error
// aborts the run and is returned wrapped in ErrEngine.
func (o *Orchestrator) Execute(ctx context.Context, ec ExecutionContext) (*ExecutionResult, error) {
	tracker := &TestTracker{}
	output := &OutputBuilder{}

	output.Addf("🚀 Starting collection: %s", ec.Collection.Name)

	folderName := ResolveFolderName(ec.Params.FolderID, ec.Collection.JSON)
	if ec.Params.FolderID != "" {
		output.Addf("📁 Filtering to folder: %s", folderName)
		if folderName != ec.Params.FolderID {
			output.Addf("   (resolved from ID: %s)", ec.Params.FolderID)
		}
	}
	if ec.Environment != nil {
		output.Addf("🌍 Using environment: %s", ec.Environment.Name)
	}
	output.Add("")

	opts := BuildEngineOptions(ec.Params, folderName, ec.Collection, ec.Environment)

	o.logger.Info().
		Str("collection_id", ec.Collection.ID).
		Str("folder", folderName).
		Int("iterations", opts.IterationCount).
		Str("bail", opts.Bail.String()).
		Msg("starting collection run")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	startTime := o.now()

	events, err := o.engine.Start(runCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}

	summary, err := o.consume(ctx, events, tracker, output)
	if err != nil {
		return nil, err
	}

	endTime := o.now()

	return &ExecutionResult{
		Output:    output.Build(),
		TestStats: tracker.TotalStats(),
		Summary:   summary,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
	}, nil
}

// consume handles events until done
func (o *Orchestrator) consume(ctx context.Context, events <-chan executor.Event, tracker *TestTracker, output *OutputBuilder) (*executor.Summary, error) {
	for ev := range events {
		switch ev.Type {
		case executor.EventStart:
			output.Add("🎯 Starting collection run...\n")

		case executor.EventAssertion:
			if ev.Assertion == "" {
				continue
			}
			tracker.AddAssertion(TestResult{
				Passed:    ev.Error == nil,
				Assertion: ev.Assertion,
				Name:      ev.Assertion,
				Error:     ev.Error,
			})

		case executor.EventItem:
			if ev.Item == nil {
				continue
			}
			results := tracker.DisplayCurrentResults()
			if results == "" && ev.RequestError == nil {
				continue
			}
			output.Addf("\n📝 Request: %s", ev.Item.Name)
			if ev.RequestError != nil {
				output.Addf("  ⚠️  Request error: %s", ev.RequestError.Error())
			}
			if results != "" {
				output.Add(results)
			}

		case executor.EventDone:
			if ev.Error != nil {
				output.Add("\n❌ Run error: " + ev.Error.Error())
				o.logger.Error().Str("error", ev.Error.Error()).Msg("collection run failed")
				return nil, fmt.Errorf("%w: %s", ErrEngine, ev.Error.Error())
			}

			output.Add("\n=== ✅ Run completed! ===")
			appendSummary(output, tracker, ev.Summary)
			return ev.Summary, nil

		default:
			o.logger.Debug().Str("type", string(ev.Type)).Msg("ignoring unknown engine event")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngine, err)
	}
	return nil, fmt.Errorf("%w: engine stopped without reporting completion", ErrEngine)
}

// appendSummary writes the tracker totals and, independently, the engine's own counts
func appendSummary(output *OutputBuilder, tracker *TestTracker, summary *executor.Summary) {
	stats := tracker.TotalStats()

	if stats.Total > 0 {
		output.Add("\n📊 Overall Test Statistics:")
		output.Addf("  Total tests: %d", stats.Total)
		output.Addf("  Passed: %d ✅", stats.Passed)
		output.Addf("  Failed: %d ❌", stats.Failed)
		output.Addf("  Success rate: %.1f%%", float64(stats.Passed)/float64(stats.Total)*100)
	}

	if summary == nil || summary.Run == nil || summary.Run.Stats == nil {
		return
	}
	engineStats := summary.Run.Stats
	requests := counterOrZero(engineStats.Requests)
	assertions := counterOrZero(engineStats.Assertions)

	output.Add("\n📈 Request Summary:")
	output.Addf("  Total requests: %d", requests.Total)
	output.Addf("  Failed requests: %d", requests.Failed)
	output.Addf("  Total assertions: %d", assertions.Total)
	output.Addf("  Failed assertions: %d", assertions.Failed)

	if engineStats.Iterations != nil {
		output.Addf("  Total iterations: %d", engineStats.Iterations.Total)
		output.Addf("  Failed iterations: %d", engineStats.Iterations.Failed)
	}
}

func counterOrZero(c *executor.StatCounter) executor.StatCounter {
	if c == nil {
		return executor.StatCounter{}
	}
	return *c
}
