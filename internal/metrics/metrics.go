// Package metrics exposes bridge activity as Prometheus metrics.
//
// A single Metrics value implements the observer interfaces of the control
// tool, the resync scheduler and the MQTT bridge, and tracks the device
// count through a registry listener.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/wink-bridge/internal/device"
)

const namespace = "winkbridge"

// Result label values.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics holds the bridge collectors.
type Metrics struct {
	registry *prometheus.Registry

	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec

	resyncTotal    *prometheus.CounterVec
	resyncDuration *prometheus.HistogramVec
	lastResync     prometheus.Gauge

	devices        prometheus.Gauge
	changesTotal   *prometheus.CounterVec
	publishesTotal *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	queueDrops     *prometheus.CounterVec
	inboundTotal   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apron",
			Name:      "commands_total",
			Help:      "Control tool invocations by operation and result",
		}, []string{"op", "result"}),

		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "apron",
			Name:      "command_duration_seconds",
			Help:      "Control tool invocation latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),

		resyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resync",
			Name:      "runs_total",
			Help:      "Resync runs by scope and result",
		}, []string{"scope", "result"}),

		resyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resync",
			Name:      "duration_seconds",
			Help:      "Resync run latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"scope"}),

		lastResync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful resync",
		}),

		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "devices",
			Help:      "Devices in the current snapshot",
		}),

		changesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "device_changes_total",
			Help:      "Device changes detected by resync, by kind",
		}, []string{"kind"}),

		publishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "publishes_total",
			Help:      "MQTT publishes by kind and result",
		}, []string{"kind", "result"}),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "queue_depth",
			Help:      "Messages waiting in the outbound queue",
		}),

		queueDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "queue_overflows_total",
			Help:      "Messages rejected by a full outbound queue",
		}, []string{"kind"}),

		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "inbound_total",
			Help:      "Inbound MQTT messages by topic kind and result",
		}, []string{"kind", "result"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.commandsTotal,
		m.commandDuration,
		m.resyncTotal,
		m.resyncDuration,
		m.lastResync,
		m.devices,
		m.changesTotal,
		m.publishesTotal,
		m.queueDepth,
		m.queueDrops,
		m.inboundTotal,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}

// ObserveCommand records one control tool invocation.
func (m *Metrics) ObserveCommand(op string, d time.Duration, err error) {
	m.commandsTotal.WithLabelValues(op, result(err)).Inc()
	m.commandDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveResync records one resync run.
func (m *Metrics) ObserveResync(scope string, d time.Duration, err error) {
	m.resyncTotal.WithLabelValues(scope, result(err)).Inc()
	m.resyncDuration.WithLabelValues(scope).Observe(d.Seconds())
	if err == nil {
		m.lastResync.SetToCurrentTime()
	}
}

// ObserveReplace is a device.Listener tracking the snapshot size and changes.
func (m *Metrics) ObserveReplace(diff device.DiffSet, snap *device.Snapshot) {
	m.devices.Set(float64(snap.Len()))
	for _, id := range diff.Updated() {
		if dd, ok := diff.Device(id); ok {
			m.changesTotal.WithLabelValues(dd.Kind.String()).Inc()
		}
	}
	if n := len(diff.Removed()); n > 0 {
		m.changesTotal.WithLabelValues(device.Removed.String()).Add(float64(n))
	}
}

// ObservePublish records one MQTT publish.
func (m *Metrics) ObservePublish(kind string, err error) {
	m.publishesTotal.WithLabelValues(kind, result(err)).Inc()
}

// ObserveQueueDepth records the outbound queue length.
func (m *Metrics) ObserveQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

// ObserveQueueDrop records a message rejected by a full queue.
func (m *Metrics) ObserveQueueDrop(kind string) {
	m.queueDrops.WithLabelValues(kind).Inc()
}

// ObserveInbound records one inbound MQTT message.
func (m *Metrics) ObserveInbound(kind string, err error) {
	m.inboundTotal.WithLabelValues(kind, result(err)).Inc()
}

// ObserveHTTP records one HTTP request. route is the matched route
// pattern, never the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
