package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/josepht96/scout-mcp/internal/runner"
	"github.com/josepht96/scout-mcp/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeRunner struct {
	got    runner.Params
	output string
	err    error
}

func (f *fakeRunner) RunCollection(ctx context.Context, params runner.Params) (string, error) {
	f.got = params
	return f.output, f.err
}

type apiCall struct {
	method, path, body string
}

type fakeAPI struct {
	mu       sync.Mutex
	calls    []apiCall
	response string
	err      error
}

func (f *fakeAPI) Do(ctx context.Context, method, path, body string, headers map[string]string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, apiCall{method, path, body})
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

type fakeHistory struct {
	runs  []storage.RunRecord
	limit int
	err   error
}

func (f *fakeHistory) ListRuns(ctx context.Context, collectionID string, limit int) ([]storage.RunRecord, error) {
	f.limit = limit
	return f.runs, f.err
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func listToolNames(t *testing.T, s *Server) []string {
	t.Helper()
	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var names []string
	for _, n := range gjson.GetBytes(data, "result.tools.#.name").Array() {
		names = append(names, n.String())
	}
	return names
}

func TestToolRegistration(t *testing.T) {
	s := NewServer(Config{Runner: &fakeRunner{}, Logger: zerolog.Nop()})
	assert.Equal(t, []string{"runCollection"}, listToolNames(t, s))

	s = NewServer(Config{Runner: &fakeRunner{}, API: &fakeAPI{}, History: &fakeHistory{}, Logger: zerolog.Nop()})
	names := listToolNames(t, s)
	assert.Len(t, names, len(passThroughTools)+2)
	assert.Contains(t, names, "runCollection")
	assert.Contains(t, names, "getRunHistory")
	assert.Contains(t, names, "getCollectionFolder")
	assert.Contains(t, names, "runMonitor")
}

func TestRunCollectionToolSchema(t *testing.T) {
	tool := runCollectionTool()
	assert.Equal(t, []string{"collectionId"}, tool.InputSchema.Required)
	assert.Len(t, tool.InputSchema.Properties, 10)
	assert.Equal(t, "Run Postman Collection", tool.Annotations.Title)
	require.NotNil(t, tool.Annotations.IdempotentHint)
	assert.True(t, *tool.Annotations.IdempotentHint)
	require.NotNil(t, tool.Annotations.ReadOnlyHint)
	assert.False(t, *tool.Annotations.ReadOnlyHint)
}

func TestHandleRunCollection(t *testing.T) {
	fr := &fakeRunner{output: "report\n⏱️  Duration: 1.00s"}
	s := NewServer(Config{Runner: fr, Logger: zerolog.Nop()})

	result, err := s.handleRunCollection(context.Background(), callRequest("runCollection", map[string]interface{}{
		"collectionId":   "123-c1",
		"environmentId":  "e1",
		"folderId":       "Accounts",
		"stopOnFailure":  true,
		"iterationCount": float64(3),
		"requestTimeout": float64(1000),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "report\n⏱️  Duration: 1.00s", resultText(t, result))
	assert.Equal(t, runner.Params{
		CollectionID:   "123-c1",
		EnvironmentID:  "e1",
		FolderID:       "Accounts",
		StopOnFailure:  true,
		IterationCount: 3,
		RequestTimeout: 1000,
	}, fr.got)
}

func TestHandleRunCollectionValidation(t *testing.T) {
	s := NewServer(Config{Runner: &fakeRunner{}, Logger: zerolog.Nop()})

	for name, args := range map[string]map[string]interface{}{
		"missing collection": {},
		"wrong type":         {"collectionId": 42},
		"bad bool":           {"collectionId": "c", "stopOnError": "yes"},
		"bad number":         {"collectionId": "c", "scriptTimeout": "5s"},
	} {
		t.Run(name, func(t *testing.T) {
			result, err := s.handleRunCollection(context.Background(), callRequest("runCollection", args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestHandleRunCollectionPropagatesRunErrors(t *testing.T) {
	runErr := &runner.FetchError{Kind: runner.ErrFetchCollection, ID: "123-c1", Err: errors.New("404")}
	s := NewServer(Config{Runner: &fakeRunner{err: runErr}, Logger: zerolog.Nop()})

	result, err := s.handleRunCollection(context.Background(), callRequest("runCollection", map[string]interface{}{"collectionId": "123-c1"}))
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, runner.ErrFetchCollection))
}

func TestPassThroughEndpoint(t *testing.T) {
	byName := map[string]apiTool{}
	for _, tool := range passThroughTools {
		byName[tool.name] = tool
	}

	path, err := byName["getCollectionRequest"].endpoint(map[string]interface{}{
		"collectionId": "123-c1",
		"requestId":    "r/1",
	})
	require.NoError(t, err)
	assert.Equal(t, "/collections/123-c1/requests/r%2F1", path)

	path, err = byName["getCollections"].endpoint(map[string]interface{}{"workspace": "w1"})
	require.NoError(t, err)
	assert.Equal(t, "/collections?workspace=w1", path)

	path, err = byName["getCollections"].endpoint(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "/collections", path)

	_, err = byName["getMonitor"].endpoint(map[string]interface{}{})
	assert.EqualError(t, err, "monitorId parameter is required")
}

func TestPassThroughHandler(t *testing.T) {
	api := &fakeAPI{response: `{"monitor":{"id":"m1"}}`}
	s := NewServer(Config{Runner: &fakeRunner{}, API: api, Logger: zerolog.Nop()})

	var runMonitor apiTool
	for _, tool := range passThroughTools {
		if tool.name == "runMonitor" {
			runMonitor = tool
		}
	}

	result, err := s.passThroughHandler(runMonitor)(context.Background(), callRequest("runMonitor", map[string]interface{}{"monitorId": "m1"}))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"monitor\": {\n    \"id\": \"m1\"\n  }\n}", resultText(t, result))
	assert.Equal(t, []apiCall{{http.MethodPost, "/monitors/m1/run", "{}"}}, api.calls)
	assert.False(t, runMonitor.readOnly())

	api.err = errors.New("401 unauthorized")
	_, err = s.passThroughHandler(runMonitor)(context.Background(), callRequest("runMonitor", map[string]interface{}{"monitorId": "m1"}))
	assert.Error(t, err)
}

func TestHandleRunHistory(t *testing.T) {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{runs: []storage.RunRecord{
		{CollectionName: "Users API", StartedAt: started, TotalTests: 3, PassedTests: 3, TotalRequests: 2, DurationMs: 1250},
		{CollectionName: "Users API", StartedAt: started.Add(-time.Hour), TotalTests: 2, PassedTests: 1, FailedTests: 1, TotalRequests: 2, DurationMs: 900},
	}}
	s := NewServer(Config{Runner: &fakeRunner{}, History: history, Logger: zerolog.Nop()})

	result, err := s.handleRunHistory(context.Background(), callRequest("getRunHistory", map[string]interface{}{
		"collectionId": "123-c1",
		"limit":        float64(5),
	}))
	require.NoError(t, err)
	assert.Equal(t, 5, history.limit)
	assert.Equal(t,
		"✅ 2025-03-01 12:00:00  Users API  3 tests | ✓ 3 passed | ✗ 0 failed | 2 requests | 1.25s\n"+
			"❌ 2025-03-01 11:00:00  Users API  2 tests | ✓ 1 passed | ✗ 1 failed | 2 requests | 0.90s",
		resultText(t, result))

	history.runs = nil
	result, err = s.handleRunHistory(context.Background(), callRequest("getRunHistory", map[string]interface{}{"collectionId": "x"}))
	require.NoError(t, err)
	assert.Equal(t, "No recorded runs for collection x", resultText(t, result))

	history.err = errors.New("db down")
	result, err = s.handleRunHistory(context.Background(), callRequest("getRunHistory", map[string]interface{}{"collectionId": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
