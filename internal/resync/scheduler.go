package resync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/parser"
)

// AllDevices is the trigger id that requests a full resync.
const AllDevices uint32 = 0

const (
	defaultInterval  = 10 * time.Second
	defaultQueueSize = 10
)

// Scope labels reported to the Observer.
const (
	ScopeAll    = "all"
	ScopeDevice = "device"
)

var (
	// ErrNoSource is returned when Options.Source is nil.
	ErrNoSource = errors.New("resync: source is required")

	// ErrNoRegistry is returned when Options.Registry is nil.
	ErrNoRegistry = errors.New("resync: registry is required")
)

// Source reads devices from the hub. apron.Controller satisfies it.
type Source interface {
	List(ctx context.Context) ([]parser.ListEntry, error)
	Describe(ctx context.Context, id uint32) (device.Device, error)
}

// Observer receives the duration and outcome of every resync.
type Observer interface {
	ObserveResync(scope string, d time.Duration, err error)
}

// Logger defines the logging interface for the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopObserver struct{}

func (noopObserver) ObserveResync(string, time.Duration, error) {}

// Options configures a Scheduler.
type Options struct {
	// Source lists and describes devices. Required.
	Source Source

	// Registry receives every resync result. Required.
	Registry *device.Registry

	// Interval between full resyncs. Default: 10 seconds.
	Interval time.Duration

	// QueueSize bounds pending triggers. Default: 10.
	QueueSize int

	Logger   Logger
	Observer Observer
}

// Scheduler runs periodic and on-demand resyncs on a single goroutine, so
// registry replacements happen in trigger order.
type Scheduler struct {
	source   Source
	registry *device.Registry
	interval time.Duration
	logger   Logger
	observer Observer

	triggers chan uint32

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a scheduler. Call Start to begin resyncing.
func New(opts Options) (*Scheduler, error) {
	if opts.Source == nil {
		return nil, ErrNoSource
	}
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}

	return &Scheduler{
		source:   opts.Source,
		registry: opts.Registry,
		interval: opts.Interval,
		logger:   opts.Logger,
		observer: opts.Observer,
		triggers: make(chan uint32, opts.QueueSize),
		done:     make(chan struct{}),
	}, nil
}

// Start runs an initial full resync and then the resync loop until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop ends the loop and waits for an in-flight resync to finish.
// Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

// Trigger requests a resync of one device, or of every device when id is
// AllDevices. It never blocks: when the queue is full the request is dropped
// and false is returned. Requests already pending are coalesced.
func (s *Scheduler) Trigger(id uint32) bool {
	select {
	case s.triggers <- id:
		return true
	default:
		s.logger.Warn("resync queue full, trigger dropped", "device_id", id)
		return false
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.logger.Info("resync scheduler starting", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	//nolint:errcheck // failures are logged and observed inside SyncAll
	s.SyncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			//nolint:errcheck // logged inside
			s.SyncAll(ctx)
		case id := <-s.triggers:
			s.runTriggers(ctx, id)
		}
	}
}

// runTriggers drains every pending trigger and runs each distinct request
// once. A pending full resync subsumes the per-device ones.
func (s *Scheduler) runTriggers(ctx context.Context, first uint32) {
	pending := []uint32{first}
	seen := map[uint32]bool{first: true}
drain:
	for {
		select {
		case id := <-s.triggers:
			if !seen[id] {
				seen[id] = true
				pending = append(pending, id)
			}
		default:
			break drain
		}
	}

	if seen[AllDevices] {
		//nolint:errcheck // logged inside
		s.SyncAll(ctx)
		return
	}
	for _, id := range pending {
		//nolint:errcheck // logged inside
		s.SyncDevice(ctx, id)
	}
}

// SyncAll lists every device, describes each one and replaces the registry
// snapshot. A listing failure leaves the registry untouched.
func (s *Scheduler) SyncAll(ctx context.Context) (device.DiffSet, error) {
	start := time.Now()

	entries, err := s.source.List(ctx)
	if err != nil {
		s.observer.ObserveResync(ScopeAll, time.Since(start), err)
		s.logger.Error("resync skipped, device listing failed", "error", err)
		return device.DiffSet{}, err
	}

	prev := s.registry.Snapshot()
	devs := make([]device.Device, 0, len(entries))
	for _, e := range entries {
		d, err := s.describe(ctx, e)
		if err != nil {
			if old, ok := prev.Device(e.ID); ok {
				s.logger.Warn("describe failed, keeping previous record", "device_id", e.ID, "error", err)
				devs = append(devs, old)
			} else {
				s.logger.Warn("describe failed, device skipped", "device_id", e.ID, "error", err)
			}
			continue
		}
		devs = append(devs, d)
	}

	diff := s.registry.Replace(devs)
	s.observer.ObserveResync(ScopeAll, time.Since(start), nil)
	s.logger.Debug("resync complete",
		"devices", len(devs),
		"updated", len(diff.Updated()),
		"removed", len(diff.Removed()),
		"duration", time.Since(start),
	)
	return diff, nil
}

// SyncDevice describes one device and replaces only its record. A device
// the registry has never seen is added. AllDevices runs SyncAll.
func (s *Scheduler) SyncDevice(ctx context.Context, id uint32) (device.DiffSet, error) {
	if id == AllDevices {
		return s.SyncAll(ctx)
	}

	start := time.Now()
	entry := parser.ListEntry{ID: id}
	if old, ok := s.registry.Snapshot().Device(id); ok {
		entry.Interconnect = old.Interconnect
		entry.Name = old.Name
	}

	d, err := s.describe(ctx, entry)
	s.observer.ObserveResync(ScopeDevice, time.Since(start), err)
	if err != nil {
		s.logger.Error("device resync failed", "device_id", id, "error", err)
		return device.DiffSet{}, err
	}
	return s.registry.ReplaceDevice(d), nil
}

// describe fills the fields only the listing knows.
func (s *Scheduler) describe(ctx context.Context, e parser.ListEntry) (device.Device, error) {
	d, err := s.source.Describe(ctx, e.ID)
	if err != nil {
		return device.Device{}, err
	}
	if d.Interconnect == "" {
		d.Interconnect = e.Interconnect
	}
	if d.Name == "" {
		d.Name = e.Name
	}
	return d, nil
}
