package runner

import (
	"fmt"
	"strings"
)

// OutputBuilder collects report lines in order
type OutputBuilder struct {
	lines []string
}

func (b *OutputBuilder) Add(line string) {
	b.lines = append(b.lines, line)
}

func (b *OutputBuilder) Addf(format string, args ...interface{}) {
	b.Add(fmt.Sprintf(format, args...))
}

// Build joins all lines with newlines
func (b *OutputBuilder) Build() string {
	return strings.Join(b.lines, "\n")
}

// TestTracker counts assertions across a run and buffers the ones observed
// since the last rendered item.
type TestTracker struct {
	pending []TestResult
	stats   TestStats
}

func (t *TestTracker) AddAssertion(result TestResult) {
	t.pending = append(t.pending, result)
	t.stats.Total++
	if result.Passed {
		t.stats.Passed++
	} else {
		t.stats.Failed++
	}
}

// DisplayCurrentResults renders the buffered assertions as a checklist and
// clears the buffer. It returns "" when nothing was buffered.
func (t *TestTracker) DisplayCurrentResults() string {
	if len(t.pending) == 0 {
		return ""
	}

	lines := []string{"  📊 Test Results:"}
	passed, failed := 0, 0

	for _, result := range t.pending {
		status := "✓"
		if result.Passed {
			passed++
		} else {
			status = "✗"
			failed++
		}
		lines = append(lines, fmt.Sprintf("    %s %s", status, result.label()))

		if !result.Passed && result.Error != nil {
			lines = append(lines, fmt.Sprintf("       └─ Error: %s", result.Error.Error()))
		}
	}

	lines = append(lines, "    ────────────────────────────────────────")
	lines = append(lines, fmt.Sprintf("    %d tests | ✓ %d passed | ✗ %d failed\n", len(t.pending), passed, failed))

	t.pending = t.pending[:0]
	return strings.Join(lines, "\n")
}

// TotalStats returns the cumulative counters
func (t *TestTracker) TotalStats() TestStats {
	return t.stats
}

func (t *TestTracker) Reset() {
	t.pending = nil
	t.stats = TestStats{}
}
