// Package runner executes external commands for the dispatcher, streaming
// their output line by line.
//
// At most one execution is live per Runner. Starting a new run replaces the
// current one: the old process group is killed and its handle marked stale,
// so output that arrives after replacement or cancellation is discarded
// instead of delivered.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/taskstorm/internal/log"
)

// Stream identifies the source stream of an output line.
type Stream int

const (
	// StreamStdout is standard output.
	StreamStdout Stream = iota
	// StreamStderr is standard error.
	StreamStderr
)

// String returns the stream name.
func (s Stream) String() string {
	switch s {
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Line is a single line of command output.
type Line struct {
	// Content is the line content without the trailing newline.
	Content string

	// Stream identifies the source.
	Stream Stream

	// Timestamp is when the line was received.
	Timestamp time.Time
}

// Request describes one command execution.
type Request struct {
	// Args is the argv, program first. Must be non-empty.
	Args []string

	// Dir is the working directory.
	Dir string

	// Env are environment overrides layered on the process environment.
	Env map[string]string

	// BufferSize is the per-stream scanner buffer size. Zero uses 64KB.
	BufferSize int
}

// Result is the outcome of a completed execution.
type Result struct {
	// ExitCode is the process exit code; -1 when the process never ran.
	ExitCode int

	// Err is the failure, if any. Canceled executions carry
	// context.Canceled.
	Err error

	// Canceled is true when the execution was canceled or replaced.
	Canceled bool

	// Duration is the wall time from start to completion.
	Duration time.Duration
}

// Handle tracks one execution.
type Handle struct {
	// ID uniquely identifies the execution.
	ID string

	cmd    *osexec.Cmd
	cancel context.CancelFunc
	stale  atomic.Bool
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	result Result
}

// Done returns a channel closed when the execution completes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the outcome. Valid after Done is closed.
func (h *Handle) Result() Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Cancel terminates the execution's process group and marks the handle
// stale so late-arriving output is discarded.
func (h *Handle) Cancel() {
	h.stale.Store(true)
	h.cancel()
	h.mu.Lock()
	cmd := h.cmd
	h.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// Stale reports whether the handle has been canceled or replaced.
func (h *Handle) Stale() bool {
	return h.stale.Load()
}

func (h *Handle) finish(result Result) {
	h.once.Do(func() {
		h.mu.Lock()
		h.result = result
		h.mu.Unlock()
		close(h.done)
	})
}

// Runner runs at most one command at a time.
type Runner struct {
	mu      sync.Mutex
	current *Handle
	logger  *log.Logger
}

// New creates a runner. A nil logger disables logging.
func New(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Null
	}
	return &Runner{logger: logger}
}

// Current returns the live execution handle, or nil.
func (r *Runner) Current() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Cancel cancels the live execution, if any. It reports whether there was
// one to cancel.
func (r *Runner) Cancel() bool {
	r.mu.Lock()
	h := r.current
	r.mu.Unlock()

	if h == nil {
		return false
	}
	select {
	case <-h.Done():
		return false
	default:
	}
	h.Cancel()
	return true
}

// Start launches a command. Any still-running execution is replaced: its
// process group is killed and its output silenced. onLine is called for
// each output line in stream order; onDone once with the final result.
// Both callbacks may be nil.
func (r *Runner) Start(ctx context.Context, req Request, onLine func(Line), onDone func(Result)) (*Handle, error) {
	if len(req.Args) == 0 || req.Args[0] == "" {
		return nil, errors.New("empty command")
	}

	execCtx, cancel := context.WithCancel(ctx)
	handle := &Handle{
		ID:     uuid.New().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	if prev := r.current; prev != nil {
		select {
		case <-prev.Done():
		default:
			r.logger.Debug("replacing live execution %s", prev.ID)
			prev.Cancel()
		}
	}
	r.current = handle
	r.mu.Unlock()

	cmd := osexec.CommandContext(execCtx, req.Args[0], req.Args[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = buildEnv(req.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	handle.mu.Lock()
	handle.cmd = cmd
	handle.mu.Unlock()

	start := time.Now()
	if err := cmd.Start(); err != nil {
		cancel()
		handle.finish(Result{ExitCode: -1, Err: err})
		return nil, fmt.Errorf("start %s: %w", req.Args[0], err)
	}

	bufSize := req.BufferSize
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanStream(handle, stdout, StreamStdout, bufSize, onLine)
	}()
	go func() {
		defer wg.Done()
		scanStream(handle, stderr, StreamStderr, bufSize, onLine)
	}()

	go func() {
		wg.Wait()
		err := cmd.Wait()

		result := Result{ExitCode: 0, Duration: time.Since(start)}
		switch {
		case handle.Stale() || execCtx.Err() != nil:
			result.Canceled = true
			result.ExitCode = -1
			result.Err = context.Canceled
		case err != nil:
			result.Err = err
			result.ExitCode = -1
			var exitErr *osexec.ExitError
			if errors.As(err, &exitErr) {
				result.ExitCode = exitErr.ExitCode()
			}
		}

		handle.finish(result)
		if onDone != nil && !handle.Stale() {
			onDone(result)
		}
	}()

	return handle, nil
}

// scanStream delivers lines until EOF, dropping them once the handle goes
// stale. Ordering within one stream is preserved; interleaving between the
// two streams is whatever the process produced.
func scanStream(h *Handle, r io.Reader, stream Stream, bufSize int, onLine func(Line)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, bufSize), bufSize)

	for scanner.Scan() {
		if h.Stale() || onLine == nil {
			continue
		}
		onLine(Line{
			Content:   scanner.Text(),
			Stream:    stream,
			Timestamp: time.Now(),
		})
	}
}

// buildEnv layers overrides on the process environment with deterministic
// ordering.
func buildEnv(overrides map[string]string) []string {
	envMap := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.Index(kv, "="); idx > 0 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}
	for k, v := range overrides {
		envMap[k] = v
	}

	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+envMap[k])
	}
	return env
}
