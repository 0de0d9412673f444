package executor

import (
	"encoding/json"
	"strings"
)

// EventType names a newman lifecycle event
type EventType string

const (
	EventStart     EventType = "start"
	EventAssertion EventType = "assertion"
	EventItem      EventType = "item"
	EventDone      EventType = "done"
)

// Event is one lifecycle notification emitted by the run engine
type Event struct {
	Type EventType `json:"type"`

	// assertion
	Assertion string     `json:"assertion,omitempty"`
	Skipped   bool       `json:"skipped,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`

	// item
	Item         *Item      `json:"item,omitempty"`
	RequestError *ErrorInfo `json:"requestError,omitempty"`

	// done
	Summary *Summary `json:"summary,omitempty"`
}

// ErrorInfo is an error reported by the engine. It decodes from either a bare
// string or an object with name/message/stack fields.
type ErrorInfo struct {
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func (e *ErrorInfo) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Message = s
		return nil
	}

	type plain ErrorInfo
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = ErrorInfo(p)
	return nil
}

func (e *ErrorInfo) Error() string {
	if e.Message == "" {
		return "Unknown error"
	}
	return e.Message
}

// Item identifies a collection item (request)
type Item struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Summary is the engine's terminal run summary. Every field is optional.
type Summary struct {
	Run *RunSummary `json:"run,omitempty"`
}

// RunSummary holds aggregate stats and the per-request execution list
type RunSummary struct {
	Stats      *Stats      `json:"stats,omitempty"`
	Executions []Execution `json:"executions,omitempty"`
}

// Stats groups the engine's counters. A nil counter means the engine did not report it.
type Stats struct {
	Iterations        *StatCounter `json:"iterations,omitempty"`
	Items             *StatCounter `json:"items,omitempty"`
	Scripts           *StatCounter `json:"scripts,omitempty"`
	Prerequests       *StatCounter `json:"prerequests,omitempty"`
	Requests          *StatCounter `json:"requests,omitempty"`
	Tests             *StatCounter `json:"tests,omitempty"`
	Assertions        *StatCounter `json:"assertions,omitempty"`
	TestScripts       *StatCounter `json:"testScripts,omitempty"`
	PrerequestScripts *StatCounter `json:"prerequestScripts,omitempty"`
}

// StatCounter is a single total/pending/failed triple
type StatCounter struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// Execution is one executed request within a run
type Execution struct {
	Item         Item        `json:"item"`
	Request      *Request    `json:"request,omitempty"`
	Response     *Response   `json:"response,omitempty"`
	Assertions   []Assertion `json:"assertions,omitempty"`
	RequestError *ErrorInfo  `json:"requestError,omitempty"`
}

// Request is the request snapshot as sent by the engine
type Request struct {
	URL     string          `json:"url"`
	Method  string          `json:"method"`
	Headers json.RawMessage `json:"headers,omitempty"`
	Body    *RequestBody    `json:"body,omitempty"`
}

// RequestBody describes a request payload
type RequestBody struct {
	Mode    string          `json:"mode,omitempty"`
	Raw     string          `json:"raw,omitempty"`
	Options json.RawMessage `json:"options,omitempty"`
}

// Response is the response snapshot. Stream holds the base64 encoded body and
// is nil when newman captured no body at all.
type Response struct {
	Code         int             `json:"code"`
	Status       string          `json:"status"`
	ResponseTime float64         `json:"responseTime"`
	ResponseSize float64         `json:"responseSize"`
	Headers      json.RawMessage `json:"headers,omitempty"`
	Stream       *string         `json:"stream,omitempty"`
}

// Assertion is one evaluated test assertion within an execution
type Assertion struct {
	Assertion string     `json:"assertion"`
	Skipped   bool       `json:"skipped,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
}

// Bail is the engine halt policy. It serializes as false when empty.
type Bail []string

func (b Bail) MarshalJSON() ([]byte, error) {
	if len(b) == 0 {
		return []byte("false"), nil
	}
	return json.Marshal([]string(b))
}

func (b Bail) String() string {
	if len(b) == 0 {
		return "false"
	}
	return strings.Join(b, ",")
}

// Options configures a single engine run
type Options struct {
	Collection       json.RawMessage `json:"collection"`
	Environment      json.RawMessage `json:"environment,omitempty"`
	Folder           string          `json:"folder,omitempty"`
	IterationCount   int             `json:"iterationCount"`
	Timeout          int             `json:"timeout"`
	TimeoutRequest   int             `json:"timeoutRequest"`
	TimeoutScript    int             `json:"timeoutScript"`
	IgnoreRedirects  bool            `json:"ignoreRedirects"`
	Insecure         bool            `json:"insecure"`
	Bail             Bail            `json:"bail"`
	SuppressExitCode bool            `json:"suppressExitCode"`
	Reporters        []string        `json:"reporters"`
	Color            string          `json:"color"`
	Verbose          bool            `json:"verbose"`
}
