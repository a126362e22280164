// Package runner executes subordinate tools (git, probes) with a hard
// timeout and reports one of four outcomes. Callers treat anything but
// StatusOK as "no contribution".
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/dgerlanc/hookgate/internal/logger"
)

// Sentinel errors carried in Result.Err.
var (
	ErrUnavailable = errors.New("command not available")
	ErrTimedOut    = errors.New("command timed out")
	ErrFailed      = errors.New("command failed")
)

// DefaultMaxOutput caps captured stdout and stderr each.
const DefaultMaxOutput = 4 << 20

// Status is the outcome of a run.
type Status int

const (
	StatusOK Status = iota
	StatusUnavailable
	StatusTimedOut
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnavailable:
		return "unavailable"
	case StatusTimedOut:
		return "timed out"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result holds the captured output of a command.
type Result struct {
	Status   Status
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	// Err wraps one of the sentinel errors when Status is not StatusOK.
	Err error
}

// OK reports whether the command ran and exited zero.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Runner runs a command in dir, killing it after timeout.
type Runner interface {
	Run(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) Result
}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) Result

// Run calls f.
func (f Func) Run(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) Result {
	return f(ctx, dir, timeout, name, args...)
}

// Exec runs real processes via os/exec.
type Exec struct {
	// MaxOutput caps each captured stream; 0 means DefaultMaxOutput.
	MaxOutput int64
}

// New returns an Exec runner with default limits.
func New() *Exec {
	return &Exec{}
}

// Run executes name with args. The child gets no stdin.
func (e *Exec) Run(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) Result {
	start := time.Now()

	path, err := exec.LookPath(name)
	if err != nil {
		logger.Debug("command not found", "command", name, "error", err)
		return Result{
			Status:   StatusUnavailable,
			ExitCode: -1,
			Err:      fmt.Errorf("%w: %s", ErrUnavailable, name),
		}
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	limit := e.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}
	stdout := &limitedBuffer{limit: limit}
	stderr := &limitedBuffer{limit: limit}

	cmd := exec.CommandContext(runCtx, path, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err = cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Status = StatusTimedOut
		res.ExitCode = -1
		res.Err = fmt.Errorf("%w: %s after %s", ErrTimedOut, name, timeout)
	case err != nil:
		res.Status = StatusFailed
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		res.Err = fmt.Errorf("%w: %s: %v", ErrFailed, name, err)
	default:
		res.Status = StatusOK
	}

	logger.Debug("command finished",
		"command", name,
		"args", args,
		"status", res.Status.String(),
		"exit_code", res.ExitCode,
		"duration_ms", res.Duration.Milliseconds())
	return res
}

// limitedBuffer discards writes past limit while reporting success, so a
// chatty child never blocks on a full pipe.
type limitedBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	limit    int64
	exceeded bool
}

func (lb *limitedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	n := len(p)
	if lb.exceeded {
		return n, nil
	}
	remaining := lb.limit - int64(lb.buf.Len())
	if int64(len(p)) > remaining {
		p = p[:remaining]
		lb.exceeded = true
	}
	lb.buf.Write(p)
	return n, nil
}

func (lb *limitedBuffer) Bytes() []byte {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Bytes()
}
