package dispatch

import (
	"sync"

	"github.com/dshills/taskstorm/internal/runner"
)

// Collector is a Sink that buffers output in memory instead of rendering
// it. Starting a new execution replaces the buffered content, matching the
// one-live-execution model of the terminal sink.
type Collector struct {
	mu       sync.Mutex
	cmd      []string
	dir      string
	lines    []runner.Line
	result   *runner.Result
	canceled bool
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Start resets the buffer for a new execution.
func (c *Collector) Start(cmd []string, dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmd = append([]string(nil), cmd...)
	c.dir = dir
	c.lines = nil
	c.result = nil
	c.canceled = false
}

// Line appends one output line.
func (c *Collector) Line(line runner.Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

// Complete records the final result.
func (c *Collector) Complete(result runner.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = &result
}

// Canceled marks the buffered content stale.
func (c *Collector) Canceled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canceled = true
}

// Command returns the command of the current execution.
func (c *Collector) Command() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.cmd...)
}

// Dir returns the working directory of the current execution.
func (c *Collector) Dir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir
}

// Lines returns a copy of the buffered output lines.
func (c *Collector) Lines() []runner.Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]runner.Line(nil), c.lines...)
}

// Result returns the final result, or nil while the execution is live.
func (c *Collector) Result() *runner.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil
	}
	r := *c.result
	return &r
}

// IsCanceled reports whether the buffered content was marked stale.
func (c *Collector) IsCanceled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceled
}
