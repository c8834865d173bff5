package wink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/wink-bridge/internal/audit"
	"github.com/nerrad567/wink-bridge/internal/commands"
	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/discovery"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/mqtt"
)

// Bridge defaults.
const (
	defaultQueueSize      = 64
	defaultQoS            = 1
	defaultEnqueueTimeout = 5 * time.Second
	changeQueueSize       = 16
)

// Message kinds, used in logs and metrics.
const (
	KindStatus    = "status"
	KindDiscovery = "discovery"
)

// MQTTClient is the interface for MQTT operations.
// It is satisfied by *mqtt.Client and mocked in tests.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern. The subscription
	// must survive reconnects.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool

	// SetOnConnect sets a callback run after every (re)connection.
	SetOnConnect(callback func())
}

// Commands applies inbound writes. It is satisfied by *commands.Service.
type Commands interface {
	SetAttribute(ctx context.Context, source string, deviceID, attributeID uint32, text string) (device.Value, error)
	SetJSON(ctx context.Context, source string, deviceID uint32, payload []byte) (commands.SetReport, error)
}

// Trigger requests an on-demand resync (0 for every device).
type Trigger interface {
	Trigger(id uint32) bool
}

// Observer receives bridge events for metrics.
type Observer interface {
	ObservePublish(kind string, err error)
	ObserveQueueDepth(depth int)
	ObserveQueueDrop(kind string)
	ObserveInbound(kind string, err error)
}

// Logger is the logging interface used by the bridge.
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

func (noopObserver) ObservePublish(string, error) {}
func (noopObserver) ObserveQueueDepth(int)        {}
func (noopObserver) ObserveQueueDrop(string)      {}
func (noopObserver) ObserveInbound(string, error) {}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// MQTTClient is the broker connection.
	MQTTClient MQTTClient

	// Topics is the topic scheme. Discovery is announced only when
	// Topics.DiscoveryPrefix is set.
	Topics mqtt.Topics

	// Registry is the source of device state.
	Registry *device.Registry

	// Commands handles inbound set messages.
	Commands Commands

	// Trigger is optional; when set a full resync is requested after every connect.
	Trigger Trigger

	// QoS for status and discovery publishes. Default: 1.
	QoS byte

	// QueueSize bounds the outbound queue. Default: 64.
	QueueSize int

	// Overflow is config.OverflowExit (default) or config.OverflowDrop.
	Overflow string

	// EnqueueTimeout is how long a publish waits for queue space before the
	// overflow policy applies. Default: 5s.
	EnqueueTimeout time.Duration

	// SuppressUnchanged publishes status only for devices whose values changed.
	SuppressUnchanged bool

	// Exit terminates the process on queue overflow. Default: os.Exit.
	Exit func(code int)

	Logger   Logger
	Observer Observer
}

// Bridge publishes registry state to MQTT and routes MQTT commands to the hub.
type Bridge struct {
	mqtt     MQTTClient
	topics   mqtt.Topics
	registry *device.Registry
	commands Commands
	trigger  Trigger
	builder  *discovery.Builder

	qos            byte
	suppress       bool
	overflow       string
	enqueueTimeout time.Duration
	exit           func(code int)

	outbox chan outboundMessage

	// changes carries registry replacements to the status worker so that
	// the registry never waits on the broker.
	changes   chan replaceEvent
	republish atomic.Bool

	subMu      sync.Mutex
	subscribed bool

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	observer Observer
}

type replaceEvent struct {
	diff device.DiffSet
	snap *device.Snapshot
}

type outboundMessage struct {
	kind     string
	topic    string
	payload  []byte
	retained bool
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, ErrNoMQTTClient
	}
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}
	if opts.Commands == nil {
		return nil, ErrNoCommands
	}

	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	overflow := opts.Overflow
	if overflow == "" {
		overflow = config.OverflowExit
	}
	if overflow != config.OverflowExit && overflow != config.OverflowDrop {
		return nil, fmt.Errorf("wink: unknown overflow policy %q", overflow)
	}

	// Bridge-level context, cancelled on Stop to abort in-flight commands.
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		mqtt:           opts.MQTTClient,
		topics:         opts.Topics,
		registry:       opts.Registry,
		commands:       opts.Commands,
		trigger:        opts.Trigger,
		builder:        discovery.NewBuilder(opts.Topics),
		qos:            opts.QoS,
		suppress:       opts.SuppressUnchanged,
		overflow:       overflow,
		enqueueTimeout: opts.EnqueueTimeout,
		exit:           opts.Exit,
		outbox:         make(chan outboundMessage, queueSize),
		changes:        make(chan replaceEvent, changeQueueSize),
		done:           make(chan struct{}),
		ctx:            ctx,
		ctxCancel:      ctxCancel,
		logger:         opts.Logger,
		observer:       opts.Observer,
	}
	if b.qos > 2 {
		b.qos = defaultQoS
	}
	if b.enqueueTimeout <= 0 {
		b.enqueueTimeout = defaultEnqueueTimeout
	}
	if b.exit == nil {
		b.exit = os.Exit
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	if b.observer == nil {
		b.observer = noopObserver{}
	}
	return b, nil
}

// Start subscribes to the command topics, starts the publish worker and
// announces the current state. Registry changes are published from then on.
func (b *Bridge) Start(ctx context.Context) error {
	var err error
	b.startOnce.Do(func() {
		err = b.start(ctx)
	})
	return err
}

func (b *Bridge) start(ctx context.Context) error {
	// Without a broker yet, subscriptions wait for the first connect.
	if b.mqtt.IsConnected() {
		if err := b.subscribe(); err != nil {
			return err
		}
	}

	b.wg.Add(2)
	go b.runOutbox()
	go b.runChanges()

	b.registry.OnReplace(b.handleReplace)
	b.mqtt.SetOnConnect(b.handleConnect)

	// The client connected before the callback was installed.
	if b.mqtt.IsConnected() {
		b.handleConnect()
	}

	go func() {
		select {
		case <-ctx.Done():
			b.Stop()
		case <-b.done:
		}
	}()

	b.logger.Info("bridge started",
		"prefix", b.topics.Prefix,
		"discovery", b.topics.DiscoveryEnabled(),
		"queue_size", cap(b.outbox),
		"overflow", b.overflow,
	)
	return nil
}

// subscribe registers the command topics. The MQTT client restores them
// after every later reconnect.
func (b *Bridge) subscribe() error {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if b.subscribed {
		return nil
	}
	for _, topic := range b.topics.Subscriptions() {
		if err := b.mqtt.Subscribe(topic, b.qos, b.handleMessage); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		b.logger.Info("subscribed", "topic", topic)
	}
	b.subscribed = true
	return nil
}

// Stop gracefully shuts down the bridge. Messages still queued are
// published on a best-effort basis.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

// handleConnect runs after every (re)connection.
func (b *Bridge) handleConnect() {
	select {
	case <-b.done:
		return
	default:
	}

	if err := b.subscribe(); err != nil {
		b.logger.Error("command subscriptions failed", "error", err)
	}

	announced := b.BroadcastDiscovery()
	published := b.PublishAll()
	b.logger.Info("bridge state announced", "discovery", announced, "status", published)

	if b.trigger != nil {
		b.trigger.Trigger(0)
	}
}

// handleReplace hands a registry replacement to the status worker. When the
// worker is too far behind, the replacement is folded into a full republish.
func (b *Bridge) handleReplace(diff device.DiffSet, snap *device.Snapshot) {
	select {
	case b.changes <- replaceEvent{diff: diff, snap: snap}:
	default:
		if !b.republish.Swap(true) {
			b.logger.Warn("status worker behind, full republish scheduled")
		}
	}
}

func (b *Bridge) runChanges() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.changes:
			b.publishChanges(ev.diff, ev.snap)
			// Republish only once the backlog is gone, so older queued
			// replacements cannot overwrite it.
			if len(b.changes) == 0 && b.republish.Swap(false) && b.mqtt.IsConnected() {
				b.BroadcastDiscovery()
				b.PublishAll()
			}
		}
	}
}

// publishChanges publishes the status of changed devices after a resync.
func (b *Bridge) publishChanges(diff device.DiffSet, snap *device.Snapshot) {
	if !b.mqtt.IsConnected() {
		b.logger.Debug("broker disconnected, status publish deferred to reconnect")
		return
	}

	var ids []uint32
	if b.suppress {
		ids = diff.Updated()
	} else {
		for _, d := range snap.Devices() {
			ids = append(ids, d.ID)
		}
	}

	for _, id := range ids {
		d, ok := snap.Device(id)
		if !ok {
			continue
		}
		if err := b.publishStatus(&d); err != nil {
			b.logger.Warn("status publish failed", "device_id", id, "error", err)
		}
		if dd, ok := diff.Device(id); ok && dd.Kind == device.New {
			if _, err := b.publishDiscovery(&d); err != nil {
				b.logger.Warn("discovery publish failed", "device_id", id, "error", err)
			}
		}
	}

	for _, id := range diff.Removed() {
		b.logger.Info("device removed", "device_id", id)
	}
}

// PublishAll queues the status of every device and returns how many were queued.
func (b *Bridge) PublishAll() int {
	n := 0
	for _, d := range b.registry.Snapshot().Devices() {
		if err := b.publishStatus(&d); err != nil {
			b.logger.Warn("status publish failed", "device_id", d.ID, "error", err)
			continue
		}
		n++
	}
	return n
}

// BroadcastDiscovery queues a discovery payload for every device that maps
// to a light or switch and returns how many were queued. A device that
// cannot be announced is logged and skipped.
func (b *Bridge) BroadcastDiscovery() int {
	if !b.topics.DiscoveryEnabled() {
		return 0
	}
	n := 0
	for _, d := range b.registry.Snapshot().Devices() {
		announced, err := b.publishDiscovery(&d)
		if err != nil {
			b.logger.Warn("discovery publish failed", "device_id", d.ID, "name", d.Name, "error", err)
			continue
		}
		if announced {
			n++
		}
	}
	return n
}

func (b *Bridge) publishStatus(d *device.Device) error {
	payload, err := json.Marshal(d.StatusPayload())
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	return b.enqueue(outboundMessage{
		kind:     KindStatus,
		topic:    b.topics.Status(d.ID),
		payload:  payload,
		retained: true,
	})
}

// publishDiscovery queues the discovery payload of d. It reports false
// without error for devices that are neither lights nor switches.
func (b *Bridge) publishDiscovery(d *device.Device) (bool, error) {
	if !b.topics.DiscoveryEnabled() {
		return false, nil
	}
	p, err := b.builder.Build(d)
	if errors.Is(err, discovery.ErrUnsupportedDevice) {
		b.logger.Debug("device not announced", "device_id", d.ID, "name", d.Name)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	payload, err := p.JSON()
	if err != nil {
		return false, fmt.Errorf("encoding discovery: %w", err)
	}
	b.logger.Debug("announcing device", "device_id", d.ID, "component", p.Component)
	err = b.enqueue(outboundMessage{
		kind:     KindDiscovery,
		topic:    b.builder.Topic(p),
		payload:  payload,
		retained: true,
	})
	return err == nil, err
}

// enqueue waits up to enqueueTimeout for queue space. A queue that stays
// full either exits the process or drops the message, depending on the
// overflow policy.
func (b *Bridge) enqueue(msg outboundMessage) error {
	select {
	case <-b.done:
		return ErrStopped
	default:
	}

	select {
	case b.outbox <- msg:
		b.observer.ObserveQueueDepth(len(b.outbox))
		return nil
	default:
	}

	timer := time.NewTimer(b.enqueueTimeout)
	defer timer.Stop()
	select {
	case b.outbox <- msg:
		b.observer.ObserveQueueDepth(len(b.outbox))
		return nil
	case <-b.done:
		return ErrStopped
	case <-timer.C:
	}

	b.dropped.Add(1)
	b.observer.ObserveQueueDrop(msg.kind)

	if b.overflow == config.OverflowExit {
		b.logger.Error("publish queue full, broker is not accepting messages; exiting",
			"topic", msg.topic,
			"queue_size", cap(b.outbox),
		)
		b.exit(1)
		return ErrQueueFull
	}

	b.logger.Warn("publish queue full, message dropped", "topic", msg.topic, "kind", msg.kind)
	return ErrQueueFull
}

func (b *Bridge) runOutbox() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			b.drain()
			return
		case msg := <-b.outbox:
			b.send(msg)
		}
	}
}

// drain publishes what is already queued without waiting for more.
func (b *Bridge) drain() {
	for {
		select {
		case msg := <-b.outbox:
			if !b.mqtt.IsConnected() {
				return
			}
			b.send(msg)
		default:
			return
		}
	}
}

func (b *Bridge) send(msg outboundMessage) {
	b.observer.ObserveQueueDepth(len(b.outbox))
	err := b.mqtt.Publish(msg.topic, msg.payload, b.qos, msg.retained)
	b.observer.ObservePublish(msg.kind, err)
	if err != nil {
		b.failed.Add(1)
		b.logger.Warn("publish failed", "topic", msg.topic, "kind", msg.kind, "error", err)
		return
	}
	b.published.Add(1)
}

// handleMessage routes one inbound MQTT message. Errors are logged by the
// MQTT client.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	t, err := b.topics.Parse(topic)
	if errors.Is(err, mqtt.ErrNotInterestingTopic) {
		b.logger.Debug("ignoring topic", "topic", topic)
		return nil
	}
	if err != nil {
		b.observer.ObserveInbound("invalid", err)
		return err
	}

	switch t.Kind {
	case mqtt.TopicSetJSON:
		var report commands.SetReport
		report, err = b.commands.SetJSON(b.ctx, audit.SourceMQTT, t.DeviceID, payload)
		if len(report.Skipped) > 0 {
			b.logger.Warn("set message partially applied",
				"device_id", t.DeviceID,
				"applied", report.Applied,
				"skipped", report.Skipped,
			)
		}
	case mqtt.TopicSetAttribute:
		_, err = b.commands.SetAttribute(b.ctx, audit.SourceMQTT, t.DeviceID, t.AttributeID, string(payload))
	case mqtt.TopicDiscoveryListen:
		n := b.BroadcastDiscovery()
		b.logger.Info("discovery re-announced", "trigger", string(payload), "devices", n)
	default:
		b.logger.Warn("unexpected topic seen", "topic", topic, "kind", t.Kind.String())
	}

	b.observer.ObserveInbound(t.Kind.String(), err)
	if err != nil {
		return fmt.Errorf("%s on %s: %w", t.Kind, topic, err)
	}
	return nil
}

// Metrics is a point-in-time view of the bridge for the health endpoint.
type Metrics struct {
	Connected     bool   `json:"connected"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Published     uint64 `json:"published"`
	Failed        uint64 `json:"failed"`
	Dropped       uint64 `json:"dropped"`
}

// GetMetrics returns current bridge metrics.
func (b *Bridge) GetMetrics() Metrics {
	return Metrics{
		Connected:     b.mqtt.IsConnected(),
		QueueDepth:    len(b.outbox),
		QueueCapacity: cap(b.outbox),
		Published:     b.published.Load(),
		Failed:        b.failed.Load(),
		Dropped:       b.dropped.Load(),
	}
}
