package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/wink-bridge/internal/bridges/wink"
)

// SystemMetrics represents the GET /api/system response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          *wink.Metrics  `json:"mqtt,omitempty"`
	Devices       DeviceMetrics  `json:"devices"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// DeviceMetrics summarises the current snapshot.
type DeviceMetrics struct {
	Total          int            `json:"total"`
	ByInterconnect map[string]int `json:"by_interconnect"`
	ByStatus       map[string]int `json:"by_status"`
	SnapshotAt     *time.Time     `json:"snapshot_at,omitempty"`
}

// handleSystem returns process, bridge and snapshot statistics as JSON.
// Prometheus scrapers use /metrics instead.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
	}

	if s.bridge != nil {
		m := s.bridge.GetMetrics()
		metrics.MQTT = &m
	}

	snap := s.registry.Snapshot()
	metrics.Devices = DeviceMetrics{
		Total:          snap.Len(),
		ByInterconnect: make(map[string]int),
		ByStatus:       make(map[string]int),
	}
	for _, d := range snap.Devices() {
		metrics.Devices.ByInterconnect[orUnknown(d.Interconnect)]++
		metrics.Devices.ByStatus[orUnknown(d.Status)]++
	}
	if at := snap.TakenAt(); !at.IsZero() {
		at = at.UTC()
		metrics.Devices.SnapshotAt = &at
	}

	writeJSON(w, http.StatusOK, metrics)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
