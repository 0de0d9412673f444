package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/josepht96/scout-mcp/internal/config"
	"github.com/josepht96/scout-mcp/internal/runner"
	"github.com/rs/zerolog"
)

// CollectionRunner runs one collection and returns its report
type CollectionRunner interface {
	RunCollection(ctx context.Context, params runner.Params) (string, error)
}

// Scheduler runs configured collections periodically
type Scheduler struct {
	runner      CollectionRunner
	schedules   []config.ScheduleConfig
	logger      zerolog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	lastRunTime time.Time
	totalRuns   int
	failedRuns  int
}

// Stats is a snapshot of scheduler activity
type Stats struct {
	LastRunTime time.Time `json:"last_run_time"`
	TotalRuns   int       `json:"total_runs"`
	FailedRuns  int       `json:"failed_runs"`
	Schedules   int       `json:"schedules"`
}

// Config contains scheduler configuration
type Config struct {
	Runner    CollectionRunner
	Schedules []config.ScheduleConfig
	Logger    zerolog.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:    cfg.Runner,
		schedules: cfg.Schedules,
		logger:    cfg.Logger.With().Str("component", "scheduler").Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches one loop per schedule. Each schedule runs once immediately.
func (s *Scheduler) Start() {
	s.logger.Info().Int("schedules", len(s.schedules)).Msg("starting scheduler")

	for _, sched := range s.schedules {
		s.wg.Add(1)
		go func(sc config.ScheduleConfig) {
			defer s.wg.Done()

			s.runOnce(sc)

			ticker := time.NewTicker(sc.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					s.runOnce(sc)
				case <-s.ctx.Done():
					return
				}
			}
		}(sched)
	}
}

// Stop cancels in-flight runs and waits for every loop to exit
func (s *Scheduler) Stop() {
	s.logger.Info().Msg("stopping scheduler")
	s.cancel()
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// runOnce executes a single scheduled collection
func (s *Scheduler) runOnce(sc config.ScheduleConfig) {
	if s.ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	s.lastRunTime = time.Now()
	s.totalRuns++
	s.mu.Unlock()

	logger := s.logger.With().Str("schedule", sc.Name).Str("collection_id", sc.CollectionID).Logger()
	logger.Info().Msg("executing scheduled collection")

	startTime := time.Now()
	_, err := s.runner.RunCollection(s.ctx, runner.Params{
		CollectionID:  sc.CollectionID,
		EnvironmentID: sc.EnvironmentID,
		FolderID:      sc.FolderID,
	})
	if err != nil {
		logger.Error().Err(err).Msg("scheduled run failed")
		s.incrementFailedRuns()
		return
	}

	logger.Info().Dur("duration", time.Since(startTime)).Msg("scheduled run completed")
}

// incrementFailedRuns increments the failed runs counter
func (s *Scheduler) incrementFailedRuns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedRuns++
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		LastRunTime: s.lastRunTime,
		TotalRuns:   s.totalRuns,
		FailedRuns:  s.failedRuns,
		Schedules:   len(s.schedules),
	}
}
