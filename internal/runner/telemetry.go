package runner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/josepht96/scout-mcp/internal/executor"
	"github.com/josepht96/scout-mcp/internal/postman"
	"github.com/rs/zerolog"
)

const (
	TelemetryPath    = "/collectionruns"
	TelemetryStatus  = "finished"
	TelemetrySource  = "postman-cli"
	DefaultBranch    = "main"
	telemetryTimeout = 30 * time.Second
)

// TelemetryPayload is the analytics record for one completed run
type TelemetryPayload struct {
	CollectionRun CollectionRunRecord `json:"collectionRun"`
	RunOverview   RunOverview         `json:"runOverview"`
}

type CollectionRunRecord struct {
	ID               string              `json:"id"`
	Collection       string              `json:"collection"`
	Name             string              `json:"name"`
	Status           string              `json:"status"`
	Source           string              `json:"source"`
	Delay            int                 `json:"delay"`
	CurrentIteration int                 `json:"currentIteration"`
	FailedTestCount  int                 `json:"failedTestCount"`
	SkippedTestCount int                 `json:"skippedTestCount"`
	PassedTestCount  int                 `json:"passedTestCount"`
	TotalTestCount   int                 `json:"totalTestCount"`
	Iterations       [][]ExecutionRecord `json:"iterations"`
	TotalTime        int64               `json:"totalTime"`
	TotalRequests    int                 `json:"totalRequests"`
	StartedAt        int64               `json:"startedAt"`
	CreatedAt        int64               `json:"createdAt"`
	BranchSource     string              `json:"branchSource"`
	Branch           string              `json:"branch"`
}

// ExecutionRecord describes one executed request
type ExecutionRecord struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Error    *RecordError     `json:"error"`
	Tests    []TestRecord     `json:"tests"`
	Request  RequestSnapshot  `json:"request"`
	Response ResponseSnapshot `json:"response"`
}

type RecordError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// TestError always carries a stack key, empty when the engine had none
type TestError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

type TestRecord struct {
	Name   string     `json:"name"`
	Status string     `json:"status"`
	Error  *TestError `json:"error"`
}

type RequestSnapshot struct {
	URL     string          `json:"url"`
	Method  string          `json:"method"`
	Headers json.RawMessage `json:"headers"`
	Body    *BodySnapshot   `json:"body,omitempty"`
}

type BodySnapshot struct {
	Mode    string          `json:"mode"`
	Raw     string          `json:"raw"`
	Options json.RawMessage `json:"options,omitempty"`
}

type ResponseSnapshot struct {
	Code    int             `json:"code"`
	Name    string          `json:"name"`
	Time    float64         `json:"time"`
	Size    float64         `json:"size"`
	Headers json.RawMessage `json:"headers"`
	Body    *string         `json:"body,omitempty"`
}

type RunOverview struct {
	CollectionName                   string     `json:"collectionName"`
	RunDurationInMiliseconds         int64      `json:"runDurationInMiliseconds"`
	AverageResponseTimeInMiliseconds int64      `json:"averageResponseTimeInMiliseconds"`
	TotalDataReceivedInBytes         int64      `json:"totalDataReceivedInBytes"`
	Statistics                       Statistics `json:"statistics"`
}

type Statistics struct {
	Iterations        executor.StatCounter `json:"iterations"`
	Items             executor.StatCounter `json:"items"`
	Scripts           executor.StatCounter `json:"scripts"`
	Prerequests       executor.StatCounter `json:"prerequests"`
	Requests          executor.StatCounter `json:"requests"`
	Tests             executor.StatCounter `json:"tests"`
	Assertions        executor.StatCounter `json:"assertions"`
	TestScripts       executor.StatCounter `json:"testScripts"`
	PrerequestScripts executor.StatCounter `json:"prerequestScripts"`
	Responses         ResponseStats        `json:"responses"`
}

type ResponseStats struct {
	Total             int   `json:"total"`
	Pending           int   `json:"pending"`
	Failed            int   `json:"failed"`
	TotalResponseTime int64 `json:"totalResponseTime"`
}

// TelemetryBuilder turns an ExecutionResult into a TelemetryPayload
type TelemetryBuilder struct {
	branch string
	newID  func() string
}

// NewTelemetryBuilder creates a builder reporting the given branch name
func NewTelemetryBuilder(branch string) *TelemetryBuilder {
	if branch == "" {
		branch = DefaultBranch
	}
	return &TelemetryBuilder{
		branch: branch,
		newID:  uuid.NewString,
	}
}

// BuildTelemetryPayload builds a payload with the default branch
func BuildTelemetryPayload(collectionID, collectionName string, result *ExecutionResult) *TelemetryPayload {
	return NewTelemetryBuilder(DefaultBranch).Build(collectionID, collectionName, result)
}

// Build derives the payload. Counters the engine omitted are reported as zero.
func (b *TelemetryBuilder) Build(collectionID, collectionName string, result *ExecutionResult) *TelemetryPayload {
	var (
		stats      executor.Stats
		executions []executor.Execution
	)
	if result.Summary != nil && result.Summary.Run != nil {
		if result.Summary.Run.Stats != nil {
			stats = *result.Summary.Run.Stats
		}
		executions = result.Summary.Run.Executions
	}

	iterations := counterOrZero(stats.Iterations)
	requests := counterOrZero(stats.Requests)

	var totalResponseTime, totalDataReceived float64
	records := make([]ExecutionRecord, 0, len(executions))
	for _, exec := range executions {
		if exec.Response != nil {
			totalResponseTime += finite(exec.Response.ResponseTime)
			totalDataReceived += finite(exec.Response.ResponseSize)
		}
		records = append(records, b.executionRecord(exec))
	}

	averageResponseTime := 0.0
	if len(executions) > 0 {
		averageResponseTime = totalResponseTime / float64(len(executions))
	}

	currentIteration := iterations.Total
	if currentIteration == 0 {
		currentIteration = 1
	}

	iterationData := [][]ExecutionRecord{}
	if len(records) > 0 {
		iterationData = append(iterationData, records)
	}

	durationMs := result.DurationMs()

	return &TelemetryPayload{
		CollectionRun: CollectionRunRecord{
			ID:               b.newID(),
			Collection:       collectionID,
			Name:             collectionName,
			Status:           TelemetryStatus,
			Source:           TelemetrySource,
			Delay:            0,
			CurrentIteration: currentIteration,
			FailedTestCount:  result.TestStats.Failed,
			SkippedTestCount: 0,
			PassedTestCount:  result.TestStats.Passed,
			TotalTestCount:   result.TestStats.Total,
			Iterations:       iterationData,
			TotalTime:        durationMs,
			TotalRequests:    requests.Total,
			StartedAt:        result.StartTime.UnixMilli(),
			CreatedAt:        result.EndTime.UnixMilli(),
			BranchSource:     "local",
			Branch:           b.branch,
		},
		RunOverview: RunOverview{
			CollectionName:                   collectionName,
			RunDurationInMiliseconds:         durationMs,
			AverageResponseTimeInMiliseconds: int64(math.Round(averageResponseTime)),
			TotalDataReceivedInBytes:         int64(math.Round(totalDataReceived)),
			Statistics: Statistics{
				Iterations:        iterations,
				Items:             counterOrZero(stats.Items),
				Scripts:           counterOrZero(stats.Scripts),
				Prerequests:       counterOrZero(stats.Prerequests),
				Requests:          requests,
				Tests:             counterOrZero(stats.Tests),
				Assertions:        counterOrZero(stats.Assertions),
				TestScripts:       counterOrZero(stats.TestScripts),
				PrerequestScripts: counterOrZero(stats.PrerequestScripts),
				Responses: ResponseStats{
					Total:             len(executions),
					Pending:           0,
					Failed:            requests.Failed,
					TotalResponseTime: int64(math.Round(totalResponseTime)),
				},
			},
		},
	}
}

func (b *TelemetryBuilder) executionRecord(exec executor.Execution) ExecutionRecord {
	record := ExecutionRecord{
		ID:    b.newID(),
		Name:  orDefault(exec.Item.Name, "Request"),
		Tests: make([]TestRecord, 0, len(exec.Assertions)),
		Request: RequestSnapshot{
			Method:  "GET",
			Headers: json.RawMessage(`{}`),
		},
		Response: ResponseSnapshot{
			Headers: json.RawMessage(`[]`),
		},
	}

	if exec.RequestError != nil {
		record.Error = &RecordError{
			Name:    orDefault(exec.RequestError.Name, "Error"),
			Message: orDefault(exec.RequestError.Message, "Unknown error"),
		}
	}

	for _, a := range exec.Assertions {
		test := TestRecord{
			Name:   orDefault(a.Assertion, "Unnamed test"),
			Status: "pass",
		}
		if a.Error != nil {
			test.Status = "fail"
			test.Error = &TestError{
				Name:    orDefault(a.Error.Name, "AssertionError"),
				Message: orDefault(a.Error.Message, "Unknown error"),
				Stack:   a.Error.Stack,
			}
		}
		record.Tests = append(record.Tests, test)
	}

	if req := exec.Request; req != nil {
		record.Request.URL = req.URL
		record.Request.Method = orDefault(req.Method, "GET")
		if len(req.Headers) > 0 && string(req.Headers) != "null" {
			record.Request.Headers = req.Headers
		}
		if req.Body != nil {
			record.Request.Body = &BodySnapshot{
				Mode:    orDefault(req.Body.Mode, "raw"),
				Raw:     req.Body.Raw,
				Options: req.Body.Options,
			}
		}
	}

	if resp := exec.Response; resp != nil {
		record.Response.Code = resp.Code
		record.Response.Name = resp.Status
		record.Response.Time = finite(resp.ResponseTime)
		record.Response.Size = finite(resp.ResponseSize)
		if len(resp.Headers) > 0 && string(resp.Headers) != "null" {
			record.Response.Headers = resp.Headers
		}
		if resp.Stream != nil {
			body := decodeStream(*resp.Stream)
			record.Response.Body = &body
		}
	}

	return record
}

// decodeStream decodes a base64 response body, yielding "" when it is not valid
func decodeStream(stream string) string {
	data, err := base64.StdEncoding.DecodeString(stream)
	if err != nil {
		return ""
	}
	return string(data)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Poster is the write side of the Postman API client
type Poster interface {
	Post(ctx context.Context, path string, opts postman.PostOptions) (json.RawMessage, error)
}

// TelemetryReporter posts payloads in the background. Failures are logged and dropped.
type TelemetryReporter struct {
	client   Poster
	logger   zerolog.Logger
	onResult func(error)
	wg       sync.WaitGroup
}

// NewTelemetryReporter creates a reporter. onResult, when set, observes every send outcome.
func NewTelemetryReporter(client Poster, logger zerolog.Logger, onResult func(error)) *TelemetryReporter {
	return &TelemetryReporter{
		client:   client,
		logger:   logger.With().Str("component", "telemetry").Logger(),
		onResult: onResult,
	}
}

// ReportAsync schedules the POST and returns immediately
func (r *TelemetryReporter) ReportAsync(payload *TelemetryPayload) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := r.send(payload)
		if err != nil {
			r.logger.Error().Err(err).Str("run_id", payload.CollectionRun.ID).Msg("failed to post collection run data")
		} else {
			r.logger.Debug().Str("run_id", payload.CollectionRun.ID).Msg("collection run data posted")
		}
		if r.onResult != nil {
			r.onResult(err)
		}
	}()
}

func (r *TelemetryReporter) send(payload *TelemetryPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
	defer cancel()

	_, err = r.client.Post(ctx, TelemetryPath, postman.PostOptions{
		Body:    string(body),
		Headers: map[string]string{"Accept": postman.RunnerAcceptHeader},
	})
	return err
}

// Wait blocks until every scheduled report has finished
func (r *TelemetryReporter) Wait() {
	r.wg.Wait()
}
