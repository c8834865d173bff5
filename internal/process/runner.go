package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Sentinel errors for command execution.
var (
	// ErrTimeout is returned when a command outlives its timeout and is killed.
	ErrTimeout = errors.New("process: timed out")

	// ErrExecFailed is returned when the binary cannot be started at all.
	ErrExecFailed = errors.New("process: exec failed")

	// ErrNonZeroExit is returned when the command exits with a non-zero status.
	ErrNonZeroExit = errors.New("process: non-zero exit")
)

// defaultMaxOutput caps captured stdout and stderr independently.
const defaultMaxOutput = 1 << 20

// Config holds configuration for a one-shot command runner.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable, resolved through PATH when relative.
	Binary string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// Timeout bounds each invocation. The whole process group is killed on expiry.
	Timeout time.Duration

	// WaitDelay bounds how long Run waits for output pipes after the kill.
	WaitDelay time.Duration

	// Serialize allows at most one invocation at a time.
	Serialize bool

	// MaxOutput caps captured stdout and stderr (bytes each). Excess is discarded.
	MaxOutput int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(name, binary string) Config {
	return Config{
		Name:      name,
		Binary:    binary,
		Timeout:   30 * time.Second,
		WaitDelay: 2 * time.Second,
		Serialize: true,
		MaxOutput: defaultMaxOutput,
	}
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Result is the captured outcome of one invocation.
type Result struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Success reports whether the command exited with status zero.
func (r Result) Success() bool { return r.ExitCode == 0 }

// ExitError reports a non-zero exit. It wraps ErrNonZeroExit.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExitError) Unwrap() error { return ErrNonZeroExit }

// Runner executes short-lived commands with bounded lifetime.
type Runner struct {
	config Config
	logger Logger

	// slot is a one-element semaphore when Serialize is set.
	slot chan struct{}

	mu       sync.Mutex
	inflight int
}

// NewRunner creates a runner, filling zero-valued limits with defaults.
func NewRunner(cfg Config) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 2 * time.Second
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = defaultMaxOutput
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}

	r := &Runner{config: cfg, logger: noopLogger{}}
	if cfg.Serialize {
		r.slot = make(chan struct{}, 1)
	}
	return r
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// InFlight returns the number of invocations currently executing.
func (r *Runner) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight
}

// Run executes the configured binary with args and waits for it.
//
// The Result is populated whenever the process was started, including on
// ErrTimeout and ErrNonZeroExit, so callers can surface stdout and stderr.
func (r *Runner) Run(ctx context.Context, args ...string) (Result, error) {
	res := Result{Args: args, ExitCode: -1}

	if r.slot != nil {
		select {
		case r.slot <- struct{}{}:
			defer func() { <-r.slot }()
		case <-ctx.Done():
			return res, fmt.Errorf("waiting to run %s: %w", r.config.Name, ctx.Err())
		}
	}

	r.mu.Lock()
	r.inflight++
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.inflight--
		r.mu.Unlock()
	}()

	runCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.config.Binary, args...) //nolint:gosec // binary comes from configuration, args are never passed to a shell

	// Own process group so a timeout also kills anything the tool spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = r.config.WaitDelay

	if r.config.Env != nil {
		cmd.Env = append(os.Environ(), r.config.Env...)
	}

	stdout := &cappedBuffer{limit: r.config.MaxOutput}
	stderr := &cappedBuffer{limit: r.config.MaxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Debug("running command", "name", r.config.Name, "args", args)

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case err == nil:
		return res, nil
	case cmd.ProcessState == nil && runCtx.Err() == nil:
		r.logger.Warn("command failed to start", "name", r.config.Name, "error", err)
		return res, fmt.Errorf("%w: %s: %v", ErrExecFailed, r.config.Name, err)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		r.logger.Warn("command timed out", "name", r.config.Name, "args", args, "timeout", r.config.Timeout)
		return res, fmt.Errorf("%w: %s after %s", ErrTimeout, r.config.Name, r.config.Timeout)
	case ctx.Err() != nil:
		return res, fmt.Errorf("running %s: %w", r.config.Name, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.logger.Debug("command exited non-zero", "name", r.config.Name, "args", args, "code", res.ExitCode)
		return res, &ExitError{Name: r.config.Name, Code: res.ExitCode, Stderr: res.Stderr}
	}
	return res, fmt.Errorf("running %s: %w", r.config.Name, err)
}

// cappedBuffer keeps the first limit bytes written to it and discards the rest.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}
