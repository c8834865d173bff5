package process

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func shRunner(t *testing.T, mutate func(*Config)) *Runner {
	t.Helper()
	cfg := DefaultConfig("sh", "/bin/sh")
	cfg.Timeout = 5 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRunner(cfg)
}

func TestNewRunner_Defaults(t *testing.T) {
	r := NewRunner(Config{Binary: "/usr/bin/test"})

	if r.config.Name != "/usr/bin/test" {
		t.Errorf("Name = %q, want binary path", r.config.Name)
	}
	if r.config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", r.config.Timeout)
	}
	if r.config.WaitDelay != 2*time.Second {
		t.Errorf("WaitDelay = %v, want 2s", r.config.WaitDelay)
	}
	if r.config.MaxOutput != defaultMaxOutput {
		t.Errorf("MaxOutput = %d, want %d", r.config.MaxOutput, defaultMaxOutput)
	}
	if r.slot != nil {
		t.Error("unserialized runner has a semaphore")
	}
}

func TestRun_CapturesOutput(t *testing.T) {
	r := shRunner(t, nil)

	res, err := r.Run(context.Background(), "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success() || res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "out\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out\n")
	}
	if res.Stderr != "err\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err\n")
	}
}

func TestRun_ArgumentsAreNotShellExpanded(t *testing.T) {
	r := NewRunner(DefaultConfig("echo", "/bin/echo"))

	res, err := r.Run(context.Background(), "$HOME", "a;b")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stdout != "$HOME a;b\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r := shRunner(t, nil)

	res, err := r.Run(context.Background(), "-c", "echo partial; echo broken >&2; exit 3")
	if !errors.Is(err, ErrNonZeroExit) {
		t.Fatalf("Run() error = %v, want ErrNonZeroExit", err)
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 3 {
		t.Fatalf("error = %#v, want ExitError code 3", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error %q does not carry stderr", err)
	}
	if res.Stdout != "partial\n" || res.ExitCode != 3 || res.Success() {
		t.Errorf("Result = %+v", res)
	}
}

func TestRun_MissingBinary(t *testing.T) {
	r := NewRunner(DefaultConfig("missing", "/nonexistent/aprontest"))

	_, err := r.Run(context.Background(), "-l")
	if !errors.Is(err, ErrExecFailed) {
		t.Errorf("Run() error = %v, want ErrExecFailed", err)
	}
}

func TestRun_TimeoutKillsProcessGroup(t *testing.T) {
	r := shRunner(t, func(c *Config) {
		c.Timeout = 200 * time.Millisecond
		c.WaitDelay = 500 * time.Millisecond
	})

	start := time.Now()
	// The backgrounded sleep keeps stdout open; only a group kill ends it promptly.
	_, err := r.Run(context.Background(), "-c", "sleep 30 & sleep 30")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("Run() took %v after timeout", elapsed)
	}
}

func TestRun_ParentCancellation(t *testing.T) {
	r := shRunner(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, "-c", "sleep 30")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("parent cancellation reported as timeout")
	}
}

func TestRun_Serialized(t *testing.T) {
	r := shRunner(t, func(c *Config) { c.Serialize = true })

	var peak atomic.Int32
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			if f := int32(r.InFlight()); f > peak.Load() {
				peak.Store(f)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Run(context.Background(), "-c", "sleep 0.1"); err != nil {
				t.Errorf("Run() error = %v", err)
			}
		}()
	}
	wg.Wait()
	close(done)

	if peak.Load() > 1 {
		t.Errorf("observed %d concurrent invocations, want at most 1", peak.Load())
	}
}

func TestRun_SerializedWaitHonoursContext(t *testing.T) {
	r := shRunner(t, func(c *Config) { c.Serialize = true })

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = r.Run(context.Background(), "-c", "sleep 0.5")
	}()
	<-started
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := r.Run(ctx, "-c", "true"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 4}
	n, err := b.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if _, err := b.Write([]byte("gh")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := b.String(); got != "abcd\n[output truncated]" {
		t.Errorf("String() = %q", got)
	}
}
