package storage

import (
	"time"

	"github.com/josepht96/scout-mcp/internal/runner"
)

// RunRecord is one persisted collection run
type RunRecord struct {
	ID             int64             `json:"id"`
	RunID          string            `json:"run_id"`
	CollectionID   string            `json:"collection_id"`
	CollectionName string            `json:"collection_name"`
	EnvironmentID  *string           `json:"environment_id,omitempty"`
	Folder         *string           `json:"folder,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    time.Time         `json:"completed_at"`
	DurationMs     int64             `json:"duration_ms"`
	TotalTests     int               `json:"total_tests"`
	PassedTests    int               `json:"passed_tests"`
	FailedTests    int               `json:"failed_tests"`
	TotalRequests  int               `json:"total_requests"`
	FailedRequests int               `json:"failed_requests"`
	CreatedAt      time.Time         `json:"created_at"`
	Assertions     []AssertionRecord `json:"assertions,omitempty"`
}

// AssertionRecord is a single test assertion within a run
type AssertionRecord struct {
	ID          int64   `json:"id"`
	RunPK       int64   `json:"run_pk"`
	RequestName string  `json:"request_name"`
	Assertion   string  `json:"assertion"`
	Passed      bool    `json:"passed"`
	Error       *string `json:"error,omitempty"`
}

// Succeeded reports whether the run had tests and none of them failed
func (r RunRecord) Succeeded() bool {
	return r.TotalTests > 0 && r.FailedTests == 0
}

// RecordFromRun converts a completed run into a history record. Runs that
// failed before producing a result are not recorded.
func RecordFromRun(run runner.CompletedRun) (RunRecord, bool) {
	if run.Err != nil || run.Result == nil {
		return RunRecord{}, false
	}

	result := run.Result
	record := RunRecord{
		CollectionID:   run.Params.CollectionID,
		CollectionName: run.CollectionName,
		EnvironmentID:  optional(run.Params.EnvironmentID),
		Folder:         optional(run.FolderName),
		StartedAt:      result.StartTime,
		CompletedAt:    result.EndTime,
		DurationMs:     result.DurationMs(),
		TotalTests:     result.TestStats.Total,
		PassedTests:    result.TestStats.Passed,
		FailedTests:    result.TestStats.Failed,
	}

	if run.Telemetry == nil {
		return record, true
	}

	record.RunID = run.Telemetry.CollectionRun.ID
	record.TotalRequests = run.Telemetry.RunOverview.Statistics.Requests.Total
	record.FailedRequests = run.Telemetry.RunOverview.Statistics.Requests.Failed
	for _, iteration := range run.Telemetry.CollectionRun.Iterations {
		for _, exec := range iteration {
			for _, test := range exec.Tests {
				a := AssertionRecord{
					RequestName: exec.Name,
					Assertion:   test.Name,
					Passed:      test.Status == "pass",
				}
				if test.Error != nil {
					a.Error = optional(test.Error.Message)
				}
				record.Assertions = append(record.Assertions, a)
			}
		}
	}
	return record, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
