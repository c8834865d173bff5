package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/nerrad567/wink-bridge/internal/audit"
	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/process"
)

// Controller is the part of the control tool the Service drives.
type Controller interface {
	Describe(ctx context.Context, id uint32) (device.Device, error)
	Set(ctx context.Context, id, attributeID uint32, value device.Value) error
	StartDiscovery(ctx context.Context, radio string) (process.Result, error)
	Raw(ctx context.Context, command string) (process.Result, error)
}

// Trigger requests an on-demand resync of one device (0 for all).
type Trigger interface {
	Trigger(id uint32) bool
}

// Recorder stores command log entries.
type Recorder interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// Logger is the logging interface used by the Service.
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

type noopTrigger struct{}

func (noopTrigger) Trigger(uint32) bool { return false }

// Options configures a Service.
type Options struct {
	Controller Controller
	Registry   *device.Registry

	// Trigger is optional; without it writes are only picked up by the next periodic resync.
	Trigger Trigger

	// Recorder is optional; nil disables the command log.
	Recorder Recorder

	Logger Logger
}

// Service applies client writes to the hub.
type Service struct {
	ctrl     Controller
	registry *device.Registry
	trigger  Trigger
	recorder Recorder
	logger   Logger
	now      func() time.Time
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Controller == nil {
		return nil, ErrNoController
	}
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}
	s := &Service{
		ctrl:     opts.Controller,
		registry: opts.Registry,
		trigger:  opts.Trigger,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if s.trigger == nil {
		s.trigger = noopTrigger{}
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	return s, nil
}

// SetTrigger replaces the resync trigger. It must be called before the
// Service handles its first request.
func (s *Service) SetTrigger(t Trigger) {
	if t == nil {
		t = noopTrigger{}
	}
	s.trigger = t
}

// SetAttribute writes one attribute from client text (an HTTP value_text or
// a raw MQTT payload) and returns the decoded value.
func (s *Service) SetAttribute(ctx context.Context, source string, deviceID, attributeID uint32, text string) (device.Value, error) {
	d, err := s.resolve(ctx, deviceID)
	if err != nil {
		s.record(ctx, source, deviceID, attributeID, "", text, 0, err)
		return device.Value{}, err
	}

	attr, err := d.WritableAttribute(attributeID)
	if err != nil {
		s.record(ctx, source, deviceID, attributeID, "", text, 0, err)
		return device.Value{}, err
	}

	v, err := attr.Type.Parse(text)
	if err != nil {
		err = fmt.Errorf("attribute %s: %w", attr.Description, err)
		s.record(ctx, source, deviceID, attributeID, attr.Description, text, 0, err)
		return device.Value{}, err
	}

	if err := s.apply(ctx, source, deviceID, attr, v); err != nil {
		return device.Value{}, err
	}
	s.trigger.Trigger(deviceID)
	return v, nil
}

// SetReport describes the outcome of a JSON set.
type SetReport struct {
	Applied []string          `json:"applied"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

// SetJSON writes every key of a JSON object mapping attribute descriptions
// to values. Keys are handled independently: an unknown, read-only or
// undecodable key is skipped and reported, the rest are applied.
//
// The returned error joins every failed tool invocation. ErrNothingApplied
// is returned when the payload named no usable attribute.
func (s *Service) SetJSON(ctx context.Context, source string, deviceID uint32, payload []byte) (SetReport, error) {
	var report SetReport

	fields, err := decodeObject(payload)
	if err != nil {
		s.record(ctx, source, deviceID, 0, "", string(payload), 0, err)
		return report, err
	}

	d, err := s.resolve(ctx, deviceID)
	if err != nil {
		s.record(ctx, source, deviceID, 0, "", string(payload), 0, err)
		return report, err
	}

	skip := func(key string, err error) {
		if report.Skipped == nil {
			report.Skipped = make(map[string]string)
		}
		report.Skipped[key] = err.Error()
		s.logger.Warn("set key skipped", "device_id", deviceID, "attribute", key, "error", err)
	}

	var failures []error
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		attr, ok := d.AttributeByDescription(key)
		if !ok {
			skip(key, fmt.Errorf("%w: %s", device.ErrAttributeNotFound, key))
			continue
		}
		attr, err := d.WritableAttribute(attr.ID)
		if err != nil {
			skip(key, err)
			continue
		}
		v, err := attr.Type.ParseJSON(fields[key])
		if err != nil {
			skip(key, err)
			continue
		}
		if err := s.apply(ctx, source, deviceID, attr, v); err != nil {
			skip(key, err)
			failures = append(failures, err)
			continue
		}
		report.Applied = append(report.Applied, key)
	}

	if len(report.Applied) > 0 {
		s.trigger.Trigger(deviceID)
	}
	if len(failures) > 0 {
		return report, errors.Join(failures...)
	}
	if len(report.Applied) == 0 {
		return report, ErrNothingApplied
	}
	return report, nil
}

// StartDiscovery starts a radio discovery scan.
func (s *Service) StartDiscovery(ctx context.Context, source, radio string) (process.Result, error) {
	start := s.now()
	res, err := s.ctrl.StartDiscovery(ctx, radio)
	s.recordEntry(ctx, &audit.Entry{
		Source:     source,
		Operation:  audit.OpDiscovery,
		Argument:   radio,
		Success:    err == nil,
		Error:      audit.ErrorText(err),
		DurationMS: s.now().Sub(start).Milliseconds(),
	})
	if err == nil {
		s.logger.Info("discovery scan started", "radio", radio, "source", source)
	}
	return res, err
}

// Raw runs an arbitrary control tool command.
func (s *Service) Raw(ctx context.Context, source, command string) (process.Result, error) {
	start := s.now()
	res, err := s.ctrl.Raw(ctx, command)
	s.recordEntry(ctx, &audit.Entry{
		Source:     source,
		Operation:  audit.OpRaw,
		Argument:   command,
		Success:    err == nil,
		Error:      audit.ErrorText(err),
		DurationMS: s.now().Sub(start).Milliseconds(),
	})
	return res, err
}

// resolve returns the device from the registry, describing it when the
// registry does not know it yet.
func (s *Service) resolve(ctx context.Context, id uint32) (device.Device, error) {
	d, err := s.registry.Device(id)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, device.ErrDeviceNotFound) {
		return device.Device{}, err
	}

	s.logger.Debug("device not in registry, describing", "device_id", id)
	d, err = s.ctrl.Describe(ctx, id)
	if err != nil {
		return device.Device{}, fmt.Errorf("describing device %d: %w", id, err)
	}
	return d, nil
}

// apply runs one set and records the optimistic setting.
func (s *Service) apply(ctx context.Context, source string, deviceID uint32, attr device.Attribute, v device.Value) error {
	start := s.now()
	err := s.ctrl.Set(ctx, deviceID, attr.ID, v)
	elapsed := s.now().Sub(start)
	s.record(ctx, source, deviceID, attr.ID, attr.Description, v.String(), elapsed, err)
	if err != nil {
		s.logger.Error("set failed",
			"device_id", deviceID,
			"attribute", attr.Description,
			"value", v.String(),
			"error", err,
		)
		return fmt.Errorf("setting device %d %s: %w", deviceID, attr.Description, err)
	}

	s.logger.Info("attribute set",
		"device_id", deviceID,
		"attribute", attr.Description,
		"value", v.String(),
		"source", source,
	)

	// The device may not be in the registry yet (described on demand).
	if err := s.registry.RecordOptimisticSet(deviceID, attr.ID, v); err != nil {
		s.logger.Debug("optimistic set not recorded", "device_id", deviceID, "error", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, source string, deviceID, attributeID uint32, attr, arg string, d time.Duration, err error) {
	e := &audit.Entry{
		Source:     source,
		Operation:  audit.OpSet,
		DeviceID:   &deviceID,
		Attribute:  attr,
		Argument:   arg,
		Success:    err == nil,
		Error:      audit.ErrorText(err),
		DurationMS: d.Milliseconds(),
	}
	if attributeID != 0 {
		e.AttributeID = &attributeID
	}
	s.recordEntry(ctx, e)
}

func (s *Service) recordEntry(ctx context.Context, e *audit.Entry) {
	if s.recorder == nil {
		return
	}
	// The command already ran; a cancelled request must not lose its log entry.
	if err := s.recorder.Create(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("command log write failed", "operation", e.Operation, "error", err)
	}
}

func decodeObject(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if fields == nil {
		return nil, ErrInvalidPayload
	}
	return fields, nil
}
