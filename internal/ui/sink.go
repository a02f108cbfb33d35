package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dshills/taskstorm/internal/runner"
)

// timeRound trims completion durations to a readable precision.
const timeRound = 10 * time.Millisecond

// StreamSink writes command output to a pair of writers as it arrives.
// Stdout lines go to Out, stderr lines to Err.
type StreamSink struct {
	Out io.Writer
	Err io.Writer

	mu sync.Mutex
}

// Start announces a new execution, replacing whatever came before it on the
// stream.
func (s *StreamSink) Start(cmd []string, dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.Out, "$ %s\n", strings.Join(cmd, " "))
}

// Line writes one output line to the matching writer.
func (s *StreamSink) Line(line runner.Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line.Stream == runner.StreamStderr {
		fmt.Fprintln(s.Err, line.Content)
		return
	}
	fmt.Fprintln(s.Out, line.Content)
}

// Complete reports the final status.
func (s *StreamSink) Complete(result runner.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.ExitCode == 0 {
		fmt.Fprintf(s.Out, "[done in %s]\n", result.Duration.Round(timeRound))
		return
	}
	fmt.Fprintf(s.Err, "[exit %d]\n", result.ExitCode)
}

// Canceled marks the current output stale.
func (s *StreamSink) Canceled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.Err, "[canceled]")
}
