package apron

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/parser"
	"github.com/nerrad567/wink-bridge/internal/process"
)

// stubRunner returns canned output and records every argument list.
type stubRunner struct {
	mu     sync.Mutex
	calls  [][]string
	stdout string
	err    error
}

func (s *stubRunner) Run(_ context.Context, args ...string) (process.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, args)
	return process.Result{Args: args, Stdout: s.stdout}, s.err
}

func (s *stubRunner) lastCall() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

type recordingObserver struct {
	ops  []string
	errs []error
}

func (o *recordingObserver) ObserveCommand(op string, _ time.Duration, err error) {
	o.ops = append(o.ops, op)
	o.errs = append(o.errs, err)
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "parser", "testdata", name))
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	return string(data)
}

func newTestController(t *testing.T, r Runner, obs Observer) *Aprontest {
	t.Helper()
	c, err := New(Options{Runner: r, Radios: []string{"zwave", "zigbee"}, Observer: obs})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_RequiresRunner(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoRunner) {
		t.Errorf("New() error = %v, want ErrNoRunner", err)
	}
}

func TestList(t *testing.T) {
	r := &stubRunner{stdout: fixture(t, "list.txt")}
	obs := &recordingObserver{}
	c := newTestController(t, r, obs)

	got, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "Bedroom Fan" || got[1].ID != 4 {
		t.Errorf("List() = %+v", got)
	}
	if !reflect.DeepEqual(r.lastCall(), []string{"-l"}) {
		t.Errorf("args = %v, want [-l]", r.lastCall())
	}
	if !reflect.DeepEqual(obs.ops, []string{OpList}) {
		t.Errorf("observed ops = %v", obs.ops)
	}
}

func TestList_Errors(t *testing.T) {
	t.Run("runner failure", func(t *testing.T) {
		r := &stubRunner{err: process.ErrTimeout}
		obs := &recordingObserver{}
		c := newTestController(t, r, obs)
		if _, err := c.List(context.Background()); !errors.Is(err, process.ErrTimeout) {
			t.Errorf("List() error = %v, want ErrTimeout", err)
		}
		if len(obs.errs) != 1 || !errors.Is(obs.errs[0], process.ErrTimeout) {
			t.Errorf("observer errs = %v", obs.errs)
		}
	})

	t.Run("unparseable output", func(t *testing.T) {
		c := newTestController(t, &stubRunner{stdout: "segfault"}, nil)
		if _, err := c.List(context.Background()); !errors.Is(err, parser.ErrNoListing) {
			t.Errorf("List() error = %v, want ErrNoListing", err)
		}
	})
}

func TestDescribe(t *testing.T) {
	r := &stubRunner{stdout: fixture(t, "describe_zwave_fan.txt")}
	c := newTestController(t, r, nil)

	d, err := c.Describe(context.Background(), 2)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if d.ID != 2 || d.Name != "Bedroom Fan" || len(d.Attributes) != 4 {
		t.Errorf("Describe() = %+v", d)
	}
	if !reflect.DeepEqual(r.lastCall(), []string{"-l", "-m", "2"}) {
		t.Errorf("args = %v", r.lastCall())
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		name  string
		value device.Value
		want  []string
	}{
		{name: "bool", value: device.BoolValue(true), want: []string{"-u", "-m", "4", "-t", "1", "-v", "TRUE"}},
		{name: "uint8", value: device.UInt8Value(0), want: []string{"-u", "-m", "4", "-t", "1", "-v", "0"}},
		{name: "string", value: device.StringValue("ON"), want: []string{"-u", "-m", "4", "-t", "1", "-v", "ON"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRunner{}
			c := newTestController(t, r, nil)
			if err := c.Set(context.Background(), 4, 1, tt.value); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if !reflect.DeepEqual(r.lastCall(), tt.want) {
				t.Errorf("args = %v, want %v", r.lastCall(), tt.want)
			}
		})
	}
}

func TestSet_NoValue(t *testing.T) {
	r := &stubRunner{}
	c := newTestController(t, r, nil)
	if err := c.Set(context.Background(), 4, 1, device.NoValue()); !errors.Is(err, device.ErrNoValue) {
		t.Errorf("Set() error = %v, want ErrNoValue", err)
	}
	if len(r.calls) != 0 {
		t.Errorf("runner called %d times, want 0", len(r.calls))
	}
}

func TestStartDiscovery(t *testing.T) {
	r := &stubRunner{stdout: "ok"}
	c := newTestController(t, r, nil)

	res, err := c.StartDiscovery(context.Background(), "zigbee")
	if err != nil {
		t.Fatalf("StartDiscovery() error = %v", err)
	}
	if res.Stdout != "ok" || !reflect.DeepEqual(r.lastCall(), []string{"-a", "-r", "zigbee"}) {
		t.Errorf("result = %+v, args = %v", res, r.lastCall())
	}

	if _, err := c.StartDiscovery(context.Background(), "zwave; reboot"); !errors.Is(err, ErrInvalidRadio) {
		t.Errorf("StartDiscovery() error = %v, want ErrInvalidRadio", err)
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		binary  string
		want    []string
		wantErr bool
	}{
		{name: "plain args", command: "-l -m 2", binary: "aprontest", want: []string{"-l", "-m", "2"}},
		{name: "leading tool name", command: "aprontest -l", binary: "aprontest", want: []string{"-l"}},
		{name: "leading base name", command: "aprontest -l", binary: "/usr/sbin/aprontest", want: []string{"-l"}},
		{name: "extra whitespace", command: "  -u\t-m 4  ", binary: "aprontest", want: []string{"-u", "-m", "4"}},
		{name: "shell metacharacters stay literal", command: "-l; rm -rf /", binary: "aprontest", want: []string{"-l;", "rm", "-rf", "/"}},
		{name: "only tool name", command: "aprontest", binary: "aprontest", wantErr: true},
		{name: "blank", command: "   ", binary: "aprontest", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitCommand(tt.command, tt.binary)
			if tt.wantErr {
				if !errors.Is(err, ErrEmptyCommand) {
					t.Errorf("SplitCommand() error = %v, want ErrEmptyCommand", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitCommand() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRaw(t *testing.T) {
	r := &stubRunner{stdout: "raw output"}
	c := newTestController(t, r, nil)

	res, err := c.Raw(context.Background(), "aprontest -l -m 4")
	if err != nil {
		t.Fatalf("Raw() error = %v", err)
	}
	if res.Stdout != "raw output" || !reflect.DeepEqual(r.lastCall(), []string{"-l", "-m", "4"}) {
		t.Errorf("result = %+v, args = %v", res, r.lastCall())
	}
}

func TestFake(t *testing.T) {
	ctx := context.Background()
	f := NewFake([]string{"zwave"})

	entries, err := f.List(ctx)
	if err != nil || len(entries) != 2 {
		t.Fatalf("List() = %v, %v", entries, err)
	}

	light, err := f.Describe(ctx, 4)
	if err != nil {
		t.Fatalf("Describe(4) error = %v", err)
	}
	if a, _ := light.Attribute(1); a.Current != device.BoolValue(false) {
		t.Errorf("initial On_Off = %v, want false", a.Current)
	}

	if err := f.Set(ctx, 4, 1, device.BoolValue(true)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	light, _ = f.Describe(ctx, 4)
	if a, _ := light.Attribute(1); a.Current != device.BoolValue(true) || a.Setting != device.BoolValue(true) {
		t.Errorf("On_Off after set = %v/%v", a.Current, a.Setting)
	}

	fan, _ := f.Describe(ctx, 2)
	if fan.Meta().Product != "Fan Control Switch" {
		t.Errorf("fan Meta() = %+v", fan.Meta())
	}

	if _, err := f.Describe(ctx, 9); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Describe(9) error = %v", err)
	}
	if err := f.Set(ctx, 4, 9, device.BoolValue(true)); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Set(4, 9) error = %v", err)
	}
	if err := f.Set(ctx, 4, 1, device.NoValue()); !errors.Is(err, device.ErrNoValue) {
		t.Errorf("Set(NoValue) error = %v", err)
	}
	if got := f.Sets(); len(got) != 1 || got[0].DeviceID != 4 {
		t.Errorf("Sets() = %+v", got)
	}

	if _, err := f.StartDiscovery(ctx, "lutron"); !errors.Is(err, ErrInvalidRadio) {
		t.Errorf("StartDiscovery(lutron) error = %v", err)
	}
	res, err := f.Raw(ctx, "aprontest -l")
	if err != nil || res.Stdout != "fake aprontest -l\n" {
		t.Errorf("Raw() = %+v, %v", res, err)
	}
}
