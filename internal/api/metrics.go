package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/influxdb"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          *MQTTMetrics    `json:"mqtt,omitempty"`
	InfluxDB      *influxdb.Stats `json:"influxdb,omitempty"`
	Entries       EntryMetrics    `json:"entries"`
	Entities      EntityMetrics   `json:"entities"`
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

	// DroppedEvents were discarded before reaching the hub.
	DroppedEvents uint64 `json:"dropped_events"`

	// SlowClientDrops were discarded for clients with a full buffer.
	SlowClientDrops uint64 `json:"slow_client_drops"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// EntryMetrics counts config entries.
type EntryMetrics struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

// EntityMetrics counts entities.
type EntityMetrics struct {
	Total    int            `json:"total"`
	ByDomain map[string]int `json:"by_domain"`
}

// handleMetrics returns runtime and bridge statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
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
		Entries:  EntryMetrics{ByState: make(map[string]int)},
		Entities: EntityMetrics{ByDomain: make(map[string]int)},
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
		metrics.WebSocket.SlowClientDrops = s.hub.Dropped()
	}
	if s.relay != nil {
		metrics.WebSocket.DroppedEvents = s.relay.Dropped()
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}
	if s.influx != nil {
		stats := s.influx.Stats()
		metrics.InfluxDB = &stats
	}

	for _, e := range s.entries.Entries() {
		metrics.Entries.Total++
		metrics.Entries.ByState[string(e.State)]++
	}
	for _, e := range s.entities.List() {
		metrics.Entities.Total++
		metrics.Entities.ByDomain[host.Domain(e.EntityID())]++
	}

	writeJSON(w, http.StatusOK, metrics)
}
