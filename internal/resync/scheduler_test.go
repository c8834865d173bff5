package resync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/parser"
)

var errHub = errors.New("hub unavailable")

// stubSource serves devices from a map and fails on request.
type stubSource struct {
	mu          sync.Mutex
	devices     map[uint32]device.Device
	order       []uint32
	listErr     error
	describeErr map[uint32]error
	describes   []uint32
}

func newStubSource(devs ...device.Device) *stubSource {
	s := &stubSource{devices: map[uint32]device.Device{}, describeErr: map[uint32]error{}}
	for _, d := range devs {
		s.devices[d.ID] = d
		s.order = append(s.order, d.ID)
	}
	return s
}

func (s *stubSource) List(context.Context) ([]parser.ListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]parser.ListEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, parser.ListEntry{ID: id, Interconnect: "ZWAVE", Name: s.devices[id].Name})
	}
	return out, nil
}

func (s *stubSource) Describe(_ context.Context, id uint32) (device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.describes = append(s.describes, id)
	if err := s.describeErr[id]; err != nil {
		return device.Device{}, err
	}
	d, ok := s.devices[id]
	if !ok {
		return device.Device{}, fmt.Errorf("no device %d", id)
	}
	return d.DeepCopy(), nil
}

func (s *stubSource) set(d device.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = d
}

func (s *stubSource) describeCalls() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint32(nil), s.describes...)
}

func light(id uint32, on bool) device.Device {
	return device.Device{
		ID:     id,
		Name:   fmt.Sprintf("Light %d", id),
		Status: "ONLINE",
		Attributes: []device.Attribute{
			{ID: 1, Description: "On_Off", Type: device.TypeBool, SupportsRead: true, SupportsWrite: true, Current: device.BoolValue(on)},
		},
	}
}

type countingObserver struct {
	mu    sync.Mutex
	calls map[string]int
	errs  int
}

func (o *countingObserver) ObserveResync(scope string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = map[string]int{}
	}
	o.calls[scope]++
	if err != nil {
		o.errs++
	}
}

func newScheduler(t *testing.T, src Source, reg *device.Registry, obs Observer) *Scheduler {
	t.Helper()
	s, err := New(Options{Source: src, Registry: reg, Interval: time.Hour, QueueSize: 4, Observer: obs})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{Registry: device.NewRegistry()}); !errors.Is(err, ErrNoSource) {
		t.Errorf("New() error = %v, want ErrNoSource", err)
	}
	if _, err := New(Options{Source: newStubSource()}); !errors.Is(err, ErrNoRegistry) {
		t.Errorf("New() error = %v, want ErrNoRegistry", err)
	}

	s, err := New(Options{Source: newStubSource(), Registry: device.NewRegistry()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.interval != defaultInterval || cap(s.triggers) != defaultQueueSize {
		t.Errorf("defaults = %v/%d", s.interval, cap(s.triggers))
	}
}

func TestSyncAll(t *testing.T) {
	src := newStubSource(light(1, false), light(2, true))
	reg := device.NewRegistry()
	obs := &countingObserver{}
	s := newScheduler(t, src, reg, obs)

	diff, err := s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if len(diff.Updated()) != 2 {
		t.Errorf("Updated() = %v, want 2 devices", diff.Updated())
	}
	d, err := reg.Device(2)
	if err != nil {
		t.Fatalf("Device(2) error = %v", err)
	}
	if d.Interconnect != "ZWAVE" {
		t.Errorf("Interconnect = %q, want ZWAVE from the listing", d.Interconnect)
	}

	// Nothing changed on the hub: the next resync reports nothing.
	diff, err = s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if !diff.Empty() {
		t.Errorf("second SyncAll() diff = %+v, want empty", diff)
	}
	if obs.calls[ScopeAll] != 2 || obs.errs != 0 {
		t.Errorf("observer = %+v", obs)
	}
}

func TestSyncAll_ListFailureKeepsSnapshot(t *testing.T) {
	src := newStubSource(light(1, true))
	reg := device.NewRegistry()
	obs := &countingObserver{}
	s := newScheduler(t, src, reg, obs)

	if _, err := s.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	before := reg.Snapshot()

	src.listErr = errHub
	if _, err := s.SyncAll(context.Background()); !errors.Is(err, errHub) {
		t.Fatalf("SyncAll() error = %v, want errHub", err)
	}
	if reg.Snapshot() != before {
		t.Error("snapshot replaced after a failed listing")
	}
	if obs.errs != 1 {
		t.Errorf("observed errors = %d, want 1", obs.errs)
	}
}

func TestSyncAll_DescribeFailureKeepsPreviousRecord(t *testing.T) {
	src := newStubSource(light(1, true), light(2, false))
	reg := device.NewRegistry()
	s := newScheduler(t, src, reg, nil)

	if _, err := s.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}

	src.describeErr[1] = errHub
	src.set(light(2, true))
	diff, err := s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}

	if reg.Snapshot().Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Snapshot().Len())
	}
	if dd, ok := diff.Device(1); ok && dd.Kind != device.Unchanged {
		t.Errorf("device 1 kind = %v, want unchanged", dd.Kind)
	}
	if dd, ok := diff.Device(2); !ok || dd.Kind != device.Changed {
		t.Errorf("device 2 diff = %+v, want changed", dd)
	}
}

func TestSyncAll_DescribeFailureForNewDeviceSkipsIt(t *testing.T) {
	src := newStubSource(light(1, true), light(2, false))
	src.describeErr[2] = errHub
	reg := device.NewRegistry()
	s := newScheduler(t, src, reg, nil)

	if _, err := s.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if _, err := reg.Device(2); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("Device(2) error = %v, want ErrDeviceNotFound", err)
	}
	if _, err := reg.Device(1); err != nil {
		t.Errorf("Device(1) error = %v", err)
	}
}

func TestSyncDevice(t *testing.T) {
	src := newStubSource(light(1, false), light(2, false))
	reg := device.NewRegistry()
	obs := &countingObserver{}
	s := newScheduler(t, src, reg, obs)

	if _, err := s.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}

	src.set(light(1, true))
	src.set(light(2, true))
	diff, err := s.SyncDevice(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncDevice() error = %v", err)
	}
	if got := diff.Updated(); len(got) != 1 || got[0] != 1 {
		t.Errorf("Updated() = %v, want [1]", got)
	}

	d2, _ := reg.Device(2)
	if v, _ := d2.Attributes[0].Current.Bool(); v {
		t.Error("device 2 refreshed by a per-device resync of device 1")
	}
	d1, _ := reg.Device(1)
	if d1.Interconnect != "ZWAVE" {
		t.Errorf("Interconnect = %q, want carried over", d1.Interconnect)
	}

	src.describeErr[1] = errHub
	if _, err := s.SyncDevice(context.Background(), 1); !errors.Is(err, errHub) {
		t.Errorf("SyncDevice() error = %v, want errHub", err)
	}
	if obs.calls[ScopeDevice] != 2 || obs.errs != 1 {
		t.Errorf("observer = %+v", obs)
	}
}

func TestTrigger_NonBlockingWhenFull(t *testing.T) {
	s := newScheduler(t, newStubSource(), device.NewRegistry(), nil)

	for i := 0; i < cap(s.triggers); i++ {
		if !s.Trigger(uint32(i + 1)) {
			t.Fatalf("Trigger(%d) = false before queue is full", i+1)
		}
	}
	if s.Trigger(99) {
		t.Error("Trigger() = true on a full queue")
	}
}

func TestRunTriggers_Coalesces(t *testing.T) {
	src := newStubSource(light(1, false), light(2, false))
	reg := device.NewRegistry()
	s := newScheduler(t, src, reg, nil)

	s.Trigger(1)
	s.Trigger(2)
	s.Trigger(1)
	s.runTriggers(context.Background(), <-s.triggers)

	if got := src.describeCalls(); len(got) != 2 {
		t.Errorf("describe calls = %v, want one per distinct device", got)
	}
}

func TestRunTriggers_FullResyncSubsumesDevices(t *testing.T) {
	src := newStubSource(light(1, false), light(2, false), light(3, false))
	reg := device.NewRegistry()
	s := newScheduler(t, src, reg, nil)

	s.Trigger(1)
	s.Trigger(AllDevices)
	s.Trigger(2)
	s.runTriggers(context.Background(), <-s.triggers)

	if got := src.describeCalls(); len(got) != 3 {
		t.Errorf("describe calls = %v, want one full pass", got)
	}
	if reg.Snapshot().Len() != 3 {
		t.Errorf("Len() = %d, want 3", reg.Snapshot().Len())
	}
}

func TestStartStop(t *testing.T) {
	src := newStubSource(light(1, false))
	reg := device.NewRegistry()
	s := newScheduler(t, src, reg, nil)

	replaced := make(chan device.DiffSet, 8)
	reg.OnReplace(func(diff device.DiffSet, _ *device.Snapshot) {
		replaced <- diff
	})

	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-replaced:
	case <-time.After(2 * time.Second):
		t.Fatal("initial resync did not run")
	}

	src.set(light(1, true))
	s.Trigger(1)

	select {
	case diff := <-replaced:
		if got := diff.Updated(); len(got) != 1 || got[0] != 1 {
			t.Errorf("Updated() = %v, want [1]", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("triggered resync did not run")
	}

	s.Stop()
	s.Stop()
}

func TestStart_ContextCancelStopsLoop(t *testing.T) {
	s := newScheduler(t, newStubSource(), device.NewRegistry(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	stopped := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("loop still running after cancel")
	}
}
