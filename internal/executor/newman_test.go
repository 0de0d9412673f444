package executor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates a shell script that stands in for the node runner script.
func writeScript(t *testing.T, body string) *NewmanExecutor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runner.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))

	e := NewNewmanExecutor(path, zerolog.Nop())
	e.SetNodeExecutable("/bin/sh")
	return e
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestNewmanExecutorStreamsEvents(t *testing.T) {
	e := writeScript(t, `cat > /dev/null
echo '{"type":"start"}'
echo 'newman: some log line'
echo '{"type":"assertion","assertion":"Status code is 200"}'
echo '{"type":"assertion","assertion":"Has body","error":"expected body"}'
echo '{"type":"item","item":{"id":"r1","name":"Get users"}}'
echo '{"type":"done","summary":{"run":{"stats":{"requests":{"total":1,"pending":0,"failed":0}}}}}'
exit 1
`)

	ch, err := e.Start(context.Background(), Options{Collection: json.RawMessage(`{}`)})
	require.NoError(t, err)

	events := collect(t, ch)
	require.Len(t, events, 5)
	assert.Equal(t, EventStart, events[0].Type)
	assert.Equal(t, "Status code is 200", events[1].Assertion)
	assert.Nil(t, events[1].Error)
	require.NotNil(t, events[2].Error)
	assert.Equal(t, "expected body", events[2].Error.Message)
	assert.Equal(t, "Get users", events[3].Item.Name)
	assert.Equal(t, EventDone, events[4].Type)
	assert.Nil(t, events[4].Error)
	require.NotNil(t, events[4].Summary)
	assert.Equal(t, 1, events[4].Summary.Run.Stats.Requests.Total)
}

func TestNewmanExecutorMissingDoneIsError(t *testing.T) {
	e := writeScript(t, `cat > /dev/null
echo '{"type":"start"}'
echo 'cannot find module newman' >&2
exit 3
`)

	ch, err := e.Start(context.Background(), Options{})
	require.NoError(t, err)

	events := collect(t, ch)
	require.Len(t, events, 2)
	last := events[1]
	assert.Equal(t, EventDone, last.Type)
	require.NotNil(t, last.Error)
	assert.Contains(t, last.Error.Message, "exited without completing")
	assert.Contains(t, last.Error.Message, "cannot find module newman")
}

func TestNewmanExecutorOversizeLineFailsRun(t *testing.T) {
	// The oversized line is larger than a pipe buffer, and more output follows
	// it, so the script cannot exit on its own once reading stops.
	e := writeScript(t, `cat > /dev/null
echo '{"type":"start"}'
printf '{"type":"done","stream":"'
head -c 262144 /dev/zero | tr '\0' 'a'
echo '"}'
head -c 262144 /dev/zero | tr '\0' 'b'
echo
`)
	e.SetMaxEventSize(4096)

	ch, err := e.Start(context.Background(), Options{})
	require.NoError(t, err)

	events := collect(t, ch)
	require.Len(t, events, 2)
	assert.Equal(t, EventStart, events[0].Type)
	last := events[1]
	assert.Equal(t, EventDone, last.Type)
	require.NotNil(t, last.Error)
	assert.Contains(t, last.Error.Message, "exceeded 4096 bytes")
	assert.Contains(t, last.Error.Message, "token too long")
}

func TestNewmanExecutorCancelClosesChannel(t *testing.T) {
	e := writeScript(t, `cat > /dev/null
echo '{"type":"start"}'
exec sleep 30
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := e.Start(ctx, Options{})
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, EventStart, ev.Type)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for start event")
	}

	started := time.Now()
	cancel()

	events := collect(t, ch)
	for _, ev := range events {
		assert.NotEqual(t, EventDone, ev.Type)
	}
	assert.Less(t, time.Since(started), 10*time.Second)
}

func TestOptionsEncoding(t *testing.T) {
	data, err := json.Marshal(Options{Collection: json.RawMessage(`{"item":[]}`), IterationCount: 1})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["bail"])
	_, hasEnv := decoded["environment"]
	assert.False(t, hasEnv)

	data, err = json.Marshal(Options{Bail: Bail{"failure"}})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []interface{}{"failure"}, decoded["bail"])
}

func TestErrorInfoDecodesStringOrObject(t *testing.T) {
	var fromString ErrorInfo
	require.NoError(t, json.Unmarshal([]byte(`"boom"`), &fromString))
	assert.Equal(t, "boom", fromString.Message)

	var fromObject ErrorInfo
	require.NoError(t, json.Unmarshal([]byte(`{"name":"AssertionError","message":"expected 200"}`), &fromObject))
	assert.Equal(t, "AssertionError", fromObject.Name)
	assert.Equal(t, "expected 200", fromObject.Error())
}
