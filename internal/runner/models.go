package runner

import (
	"encoding/json"
	"time"

	"github.com/josepht96/scout-mcp/internal/executor"
)

const (
	DefaultIterationCount   = 1
	DefaultRequestTimeoutMs = 60000
	DefaultScriptTimeoutMs  = 5000
)

// Params is the caller-supplied run configuration. Only CollectionID is required.
type Params struct {
	CollectionID   string `json:"collectionId"`
	EnvironmentID  string `json:"environmentId,omitempty"`
	FolderID       string `json:"folderId,omitempty"`
	StopOnError    bool   `json:"stopOnError,omitempty"`
	StopOnFailure  bool   `json:"stopOnFailure,omitempty"`
	AbortOnError   bool   `json:"abortOnError,omitempty"`
	AbortOnFailure bool   `json:"abortOnFailure,omitempty"`
	IterationCount int    `json:"iterationCount,omitempty"`
	RequestTimeout int    `json:"requestTimeout,omitempty"`
	ScriptTimeout  int    `json:"scriptTimeout,omitempty"`
}

// withDefaults fills every unset numeric field
func (p Params) withDefaults() Params {
	if p.IterationCount <= 0 {
		p.IterationCount = DefaultIterationCount
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = DefaultRequestTimeoutMs
	}
	if p.ScriptTimeout <= 0 {
		p.ScriptTimeout = DefaultScriptTimeoutMs
	}
	return p
}

// CollectionData is a fetched collection document
type CollectionData struct {
	JSON json.RawMessage
	Name string
	ID   string
}

// EnvironmentData is a fetched environment document
type EnvironmentData struct {
	JSON json.RawMessage
	Name string
	ID   string
}

// ExecutionContext is everything the orchestrator needs for one run
type ExecutionContext struct {
	Collection  *CollectionData
	Environment *EnvironmentData
	Params      Params
}

// TestResult is one observed assertion
type TestResult struct {
	Passed    bool
	Assertion string
	Name      string
	Error     *executor.ErrorInfo
}

func (r TestResult) label() string {
	switch {
	case r.Assertion != "":
		return r.Assertion
	case r.Name != "":
		return r.Name
	default:
		return "Unnamed test"
	}
}

// TestStats are cumulative assertion counters. Total always equals Passed + Failed.
type TestStats struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// ExecutionResult is the outcome of one orchestrated run
type ExecutionResult struct {
	Output    string
	TestStats TestStats
	Summary   *executor.Summary
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// DurationMs returns the run duration in whole milliseconds
func (r *ExecutionResult) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
