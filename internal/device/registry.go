package device

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Logger defines the logging interface used by the Registry.
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

// Snapshot is one immutable, internally consistent view of every device.
// Accessors return deep copies.
type Snapshot struct {
	list    []Device
	index   map[uint32]int
	takenAt time.Time
}

// newSnapshot takes ownership of devs. Later duplicates of an id are dropped.
func newSnapshot(devs []Device, at time.Time) *Snapshot {
	s := &Snapshot{
		list:    make([]Device, 0, len(devs)),
		index:   make(map[uint32]int, len(devs)),
		takenAt: at,
	}
	for _, d := range devs {
		if _, dup := s.index[d.ID]; dup {
			continue
		}
		s.index[d.ID] = len(s.list)
		s.list = append(s.list, d)
	}
	return s
}

// Devices returns every device in snapshot order.
func (s *Snapshot) Devices() []Device {
	if s == nil {
		return []Device{}
	}
	out := make([]Device, len(s.list))
	for i := range s.list {
		out[i] = s.list[i].DeepCopy()
	}
	return out
}

// Device returns one device.
func (s *Snapshot) Device(id uint32) (Device, bool) {
	d, ok := s.lookup(id)
	if !ok {
		return Device{}, false
	}
	return d.DeepCopy(), true
}

// Len returns the number of devices.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.list)
}

// TakenAt returns when the snapshot was installed.
func (s *Snapshot) TakenAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.takenAt
}

func (s *Snapshot) lookup(id uint32) (*Device, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return &s.list[i], true
}

func (s *Snapshot) devices() []*Device {
	if s == nil {
		return nil
	}
	out := make([]*Device, len(s.list))
	for i := range s.list {
		out[i] = &s.list[i]
	}
	return out
}

// Listener is called after every snapshot replacement, in replacement order.
// Listeners run on a writer's goroutine after the write lock is released, so
// a slow listener delays later notifications but never other writers.
type Listener func(diff DiffSet, snap *Snapshot)

type replacement struct {
	diff DiffSet
	snap *Snapshot
}

// Registry holds the current and previous snapshots.
//
// Readers load the current snapshot with a single atomic pointer read and
// never observe a partially installed one. Writers (Replace, ReplaceDevice,
// RecordOptimisticSet) are serialized and install a fresh snapshot each time.
type Registry struct {
	current  atomic.Pointer[Snapshot]
	previous atomic.Pointer[Snapshot]

	writeMu   sync.Mutex
	listeners []Listener
	pending   []replacement

	// notifyMu orders listener calls across writers.
	notifyMu sync.Mutex

	logger Logger
	now    func() time.Time
}

// NewRegistry creates a registry holding an empty snapshot.
func NewRegistry() *Registry {
	r := &Registry{
		logger: noopLogger{},
		now:    time.Now,
	}
	r.current.Store(newSnapshot(nil, time.Time{}))
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// OnReplace registers a listener for snapshot replacements.
func (r *Registry) OnReplace(fn Listener) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Snapshot returns the current snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Previous returns the snapshot replaced by the last Replace, or nil.
func (r *Registry) Previous() *Snapshot {
	return r.previous.Load()
}

// Device returns one device from the current snapshot.
func (r *Registry) Device(id uint32) (Device, error) {
	d, ok := r.Snapshot().Device(id)
	if !ok {
		return Device{}, fmt.Errorf("%w: %d", ErrDeviceNotFound, id)
	}
	return d, nil
}

// Replace installs a new snapshot built from devs and returns the changes
// relative to the snapshot it replaced.
//
// A setting value absent from devs is carried over from the replaced
// snapshot so that optimistic writes survive until the tool reports a setting.
func (r *Registry) Replace(devs []Device) DiffSet {
	r.writeMu.Lock()
	old := r.current.Load()
	next := make([]Device, len(devs))
	for i := range devs {
		next[i] = devs[i].DeepCopy()
		carrySettings(old, &next[i])
	}
	diff := r.install(old, newSnapshot(next, r.now()))
	r.writeMu.Unlock()

	r.notify()
	return diff
}

// ReplaceDevice installs a new snapshot in which only d differs from the
// current one. An unknown device is appended.
func (r *Registry) ReplaceDevice(d Device) DiffSet {
	r.writeMu.Lock()
	old := r.current.Load()
	updated := d.DeepCopy()
	carrySettings(old, &updated)

	next := make([]Device, 0, old.Len()+1)
	replaced := false
	for _, cur := range old.devices() {
		if cur.ID == d.ID {
			next = append(next, updated)
			replaced = true
			continue
		}
		next = append(next, cur.DeepCopy())
	}
	if !replaced {
		next = append(next, updated)
	}
	diff := r.install(old, newSnapshot(next, r.now()))
	r.writeMu.Unlock()

	r.notify()
	return diff
}

// RecordOptimisticSet stores v as the setting value of one attribute without
// touching its current value. The change is not reported to listeners.
func (r *Registry) RecordOptimisticSet(deviceID, attributeID uint32, v Value) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load()
	d, ok := old.lookup(deviceID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrDeviceNotFound, deviceID)
	}
	a, ok := d.Attribute(attributeID)
	if !ok {
		return fmt.Errorf("%w: device %d attribute %d", ErrAttributeNotFound, deviceID, attributeID)
	}
	if v.Present() && v.Type() != a.Type {
		return fmt.Errorf("%w: %s value for %s attribute %s", ErrTypeMismatch, v.Type(), a.Type, a.Description)
	}

	next := make([]Device, 0, old.Len())
	for _, cur := range old.devices() {
		cp := cur.DeepCopy()
		if cp.ID == deviceID {
			for i := range cp.Attributes {
				if cp.Attributes[i].ID == attributeID {
					cp.Attributes[i].Setting = v
				}
			}
		}
		next = append(next, cp)
	}

	r.current.Store(newSnapshot(next, old.TakenAt()))
	r.logger.Debug("optimistic set recorded",
		"device_id", deviceID,
		"attribute_id", attributeID,
		"value", v.String(),
	)
	return nil
}

// install swaps in next and queues the change for listeners. Callers hold writeMu.
func (r *Registry) install(old, next *Snapshot) DiffSet {
	diff := Diff(old, next)
	r.previous.Store(old)
	r.current.Store(next)

	r.logger.Debug("snapshot replaced",
		"devices", next.Len(),
		"updated", len(diff.Updated()),
		"removed", len(diff.Removed()),
	)

	r.pending = append(r.pending, replacement{diff: diff, snap: next})
	return diff
}

// notify delivers queued replacements to the listeners in order. A writer
// returns only after its own replacement was delivered, possibly by another
// writer that got to notifyMu first.
func (r *Registry) notify() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	for {
		r.writeMu.Lock()
		batch := r.pending
		r.pending = nil
		listeners := r.listeners
		r.writeMu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, ev := range batch {
			for _, fn := range listeners {
				fn(ev.diff, ev.snap)
			}
		}
	}
}

// carrySettings fills absent setting values of d from the same attribute in old.
func carrySettings(old *Snapshot, d *Device) {
	prev, ok := old.lookup(d.ID)
	if !ok {
		return
	}
	for i := range d.Attributes {
		a := &d.Attributes[i]
		if a.Setting.Present() {
			continue
		}
		if p, ok := prev.Attribute(a.ID); ok && p.Type == a.Type {
			a.Setting = p.Setting
		}
	}
}
