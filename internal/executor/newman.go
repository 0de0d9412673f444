package executor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// maxEventSize bounds a single NDJSON line; the done summary carries response bodies
	maxEventSize = 64 * 1024 * 1024

	// waitDelay bounds how long Wait blocks on output pipes held open by
	// grandchildren after the node process has exited or been killed
	waitDelay = 5 * time.Second
)

// NewmanExecutor executes Postman collections by driving newman through a node script
type NewmanExecutor struct {
	nodeExecutable string
	scriptPath     string
	maxEventSize   int
	logger         zerolog.Logger
}

// NewNewmanExecutor creates a new Newman executor
func NewNewmanExecutor(scriptPath string, logger zerolog.Logger) *NewmanExecutor {
	return &NewmanExecutor{
		nodeExecutable: "node",
		scriptPath:     scriptPath,
		maxEventSize:   maxEventSize,
		logger:         logger.With().Str("component", "newman").Logger(),
	}
}

// Start launches a run and streams its lifecycle events. The returned channel
// always delivers exactly one EventDone before it is closed, unless ctx is cancelled.
func (e *NewmanExecutor) Start(ctx context.Context, opts Options) (<-chan Event, error) {
	scriptPath, err := filepath.Abs(e.scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve script path: %w", err)
	}

	input, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode newman options: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.nodeExecutable, scriptPath)
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = waitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open newman stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start newman: %w", err)
	}

	e.logger.Debug().Str("script", scriptPath).Str("folder", opts.Folder).Msg("newman started")

	events := make(chan Event)
	go func() {
		defer close(events)

		sawDone := false
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), e.maxEventSize)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil || ev.Type == "" {
				e.logger.Debug().Str("line", truncate(string(line), 200)).Msg("ignoring non-event output")
				continue
			}
			if sawDone {
				continue
			}
			if ev.Type == EventDone {
				sawDone = true
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				_ = cmd.Wait()
				return
			}
		}
		scanErr := scanner.Err()
		if scanErr != nil {
			// Nothing reads stdout past this point, so the child would block on a
			// full pipe and Wait would never return. Wait closes stdout, which
			// ends the drain.
			e.logger.Error().Err(scanErr).Int("limit", e.maxEventSize).Msg("stopped reading newman output")
			_ = cmd.Process.Kill()
			go func() { _, _ = io.Copy(io.Discard, stdout) }()
		}

		// Newman may return non-zero exit code if tests fail, so only the missing
		// done event is treated as a failure.
		waitErr := cmd.Wait()
		if sawDone || ctx.Err() != nil {
			return
		}

		var msg string
		switch {
		case errors.Is(scanErr, bufio.ErrTooLong):
			msg = fmt.Sprintf("newman event exceeded %d bytes: %v", e.maxEventSize, scanErr)
		case scanErr != nil:
			msg = fmt.Sprintf("failed to read newman output: %v", scanErr)
		case waitErr != nil:
			msg = fmt.Sprintf("newman exited without completing the run: %v", waitErr)
		default:
			msg = "newman exited without completing the run"
		}
		if s := strings.TrimSpace(stderr.String()); s != "" {
			msg = fmt.Sprintf("%s\nStderr: %s", msg, truncate(s, 2000))
		}

		select {
		case events <- Event{Type: EventDone, Error: &ErrorInfo{Name: "RunnerError", Message: msg}}:
		case <-ctx.Done():
		}
	}()

	return events, nil
}

// SetMaxEventSize overrides the largest accepted output line in bytes
func (e *NewmanExecutor) SetMaxEventSize(n int) {
	if n > 0 {
		e.maxEventSize = n
	}
}

// SetNodeExecutable allows customizing the node executable path
func (e *NewmanExecutor) SetNodeExecutable(path string) {
	e.nodeExecutable = path
}

// IsAvailable checks if Node.js is available
func (e *NewmanExecutor) IsAvailable() bool {
	cmd := exec.Command(e.nodeExecutable, "--version")
	return cmd.Run() == nil
}

// Version returns the Node.js version
func (e *NewmanExecutor) Version() (string, error) {
	cmd := exec.Command(e.nodeExecutable, "--version")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(output)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
