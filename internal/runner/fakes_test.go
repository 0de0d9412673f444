package runner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/josepht96/scout-mcp/internal/executor"
	"github.com/josepht96/scout-mcp/internal/postman"
)

// scriptedEngine replays a fixed event sequence. With hold set it stays open
// after the last event until the run context is cancelled.
type scriptedEngine struct {
	events   []executor.Event
	startErr error
	hold     bool
	drained  chan struct{}

	mu      sync.Mutex
	started int
	opts    executor.Options
}

func (e *scriptedEngine) Start(ctx context.Context, opts executor.Options) (<-chan executor.Event, error) {
	e.mu.Lock()
	e.started++
	e.opts = opts
	e.mu.Unlock()

	if e.startErr != nil {
		return nil, e.startErr
	}

	ch := make(chan executor.Event)
	go func() {
		defer close(ch)
		for _, ev := range e.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if e.drained != nil {
			close(e.drained)
		}
		if e.hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (e *scriptedEngine) lastOptions() executor.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

type postCall struct {
	path string
	opts postman.PostOptions
}

// fakeClient serves canned documents keyed by path
type fakeClient struct {
	docs    map[string]string
	getErr  error
	postErr error

	mu    sync.Mutex
	gets  []string
	posts []postCall
}

func (c *fakeClient) Get(ctx context.Context, path string) (json.RawMessage, error) {
	c.mu.Lock()
	c.gets = append(c.gets, path)
	c.mu.Unlock()

	if c.getErr != nil {
		return nil, c.getErr
	}
	doc, ok := c.docs[path]
	if !ok {
		return nil, &postman.APIError{Method: "GET", Path: path, StatusCode: 404, Body: "not found"}
	}
	return json.RawMessage(doc), nil
}

func (c *fakeClient) Post(ctx context.Context, path string, opts postman.PostOptions) (json.RawMessage, error) {
	c.mu.Lock()
	c.posts = append(c.posts, postCall{path: path, opts: opts})
	c.mu.Unlock()

	if c.postErr != nil {
		return nil, c.postErr
	}
	return json.RawMessage(`{}`), nil
}

func (c *fakeClient) postCalls() []postCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]postCall(nil), c.posts...)
}

var errNetwork = errors.New("dial tcp: connection refused")

func passing(name string) executor.Event {
	return executor.Event{Type: executor.EventAssertion, Assertion: name}
}

func failing(name, msg string) executor.Event {
	return executor.Event{Type: executor.EventAssertion, Assertion: name, Error: &executor.ErrorInfo{Name: "AssertionError", Message: msg}}
}

func item(name string) executor.Event {
	return executor.Event{Type: executor.EventItem, Item: &executor.Item{ID: strings.ToLower(name), Name: name}}
}

func done(summary *executor.Summary) executor.Event {
	return executor.Event{Type: executor.EventDone, Summary: summary}
}

const sampleCollection = `{
  "collection": {
    "info": {"name": "Users API", "_postman_id": "c1"},
    "item": [
      {"id": "f1", "uid": "123-f1", "name": "Accounts", "item": [
        {"id": "r1", "uid": "123-r1", "name": "List accounts", "request": {}},
        {"id": "f2", "uid": "123-f2", "name": "Admin", "item": [
          {"id": "r2", "name": "Delete account", "request": {}}
        ]}
      ]},
      {"id": "r3", "uid": "123-r3", "name": "Health", "request": {}}
    ]
  }
}`
