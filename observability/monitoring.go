package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats aggregates every metric exposed on /debug/stats.
type MonitoringStats struct {
	// --- PRESENCE ---
	OnlineUsers     int `json:"online_users"`
	Connections     int `json:"connections"`
	ActiveChannels  int `json:"active_channels"`
	ConnectionsSeen int `json:"connections_seen"`

	// --- PIPELINE ---
	MessagesSent    uint64  `json:"messages_sent"`
	MessagesPerSec  float64 `json:"messages_per_sec"`
	EventsDelivered uint64  `json:"events_delivered"`
	EventsDropped   uint64  `json:"events_dropped"`
	SlowConsumers   uint64  `json:"slow_consumers"`
	Rejected        uint64  `json:"rejected_handshakes"`
	ActionErrors    uint64  `json:"action_errors"`
	OfflineQueued   uint64  `json:"offline_queued"`
	Indexed         uint64  `json:"indexed"`
	WorkerRestarts  uint64  `json:"worker_restarts"`

	// --- SYSTEM ---
	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	RSSMb      uint64  `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`

	Queues map[string]QueueStats `json:"queues,omitempty"`
}

// QueueStats is the last sampled depth of an internal bus.
type QueueStats struct {
	Length   int `json:"length"`
	Capacity int `json:"capacity"`
}

// PresenceSnapshot is what the telemetry worker reads from the runtime tables.
type PresenceSnapshot struct {
	OnlineUsers    int
	Connections    int
	ActiveChannels int
}

// ProcessSnapshot is what the telemetry worker reads from the OS.
type ProcessSnapshot struct {
	RSSBytes   uint64
	CPUPercent float64
}

// MonitoringManager keeps live counters, safe for concurrent use.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats
	queues      map[string]QueueStats

	MessagesSent      uint64
	EventsDelivered   uint64
	EventsDropped     uint64
	SlowConsumers     uint64
	Rejected          uint64
	ActionErrors      uint64
	OfflineQueued     uint64
	Indexed           uint64
	WorkerRestarts    uint64
	ConnectionsOpened uint64
	lastMessages      uint64
	LastCheck         time.Time
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, LastCheck: time.Now(), queues: make(map[string]QueueStats)}
}

func (mm *MonitoringManager) IncrMessagesSent()      { atomic.AddUint64(&mm.MessagesSent, 1) }
func (mm *MonitoringManager) IncrEventsDelivered()   { atomic.AddUint64(&mm.EventsDelivered, 1) }
func (mm *MonitoringManager) IncrEventsDropped()     { atomic.AddUint64(&mm.EventsDropped, 1) }
func (mm *MonitoringManager) IncrSlowConsumers()     { atomic.AddUint64(&mm.SlowConsumers, 1) }
func (mm *MonitoringManager) IncrRejected()          { atomic.AddUint64(&mm.Rejected, 1) }
func (mm *MonitoringManager) IncrActionErrors()      { atomic.AddUint64(&mm.ActionErrors, 1) }
func (mm *MonitoringManager) IncrOfflineQueued()     { atomic.AddUint64(&mm.OfflineQueued, 1) }
func (mm *MonitoringManager) IncrIndexed()           { atomic.AddUint64(&mm.Indexed, 1) }
func (mm *MonitoringManager) IncrConnectionsOpened() { atomic.AddUint64(&mm.ConnectionsOpened, 1) }
func (mm *MonitoringManager) IncrWorkerRestarts()    { atomic.AddUint64(&mm.WorkerRestarts, 1) }

// Refresh recomputes the snapshot served by GetLatest.
func (mm *MonitoringManager) Refresh(presence PresenceSnapshot, process ProcessSnapshot) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	sent := atomic.LoadUint64(&mm.MessagesSent)
	if duration := now.Sub(mm.LastCheck).Seconds(); duration > 0 {
		mm.latestStats.MessagesPerSec = float64(sent-mm.lastMessages) / duration
	}
	mm.lastMessages = sent
	mm.LastCheck = now

	mm.latestStats.OnlineUsers = presence.OnlineUsers
	mm.latestStats.Connections = presence.Connections
	mm.latestStats.ActiveChannels = presence.ActiveChannels
	mm.latestStats.ConnectionsSeen = int(atomic.LoadUint64(&mm.ConnectionsOpened))

	mm.latestStats.MessagesSent = sent
	mm.latestStats.EventsDelivered = atomic.LoadUint64(&mm.EventsDelivered)
	mm.latestStats.EventsDropped = atomic.LoadUint64(&mm.EventsDropped)
	mm.latestStats.SlowConsumers = atomic.LoadUint64(&mm.SlowConsumers)
	mm.latestStats.Rejected = atomic.LoadUint64(&mm.Rejected)
	mm.latestStats.ActionErrors = atomic.LoadUint64(&mm.ActionErrors)
	mm.latestStats.OfflineQueued = atomic.LoadUint64(&mm.OfflineQueued)
	mm.latestStats.Indexed = atomic.LoadUint64(&mm.Indexed)
	mm.latestStats.WorkerRestarts = atomic.LoadUint64(&mm.WorkerRestarts)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC
	mm.latestStats.Goroutines = runtime.NumGoroutine()
	mm.latestStats.RSSMb = process.RSSBytes / 1024 / 1024
	mm.latestStats.CPUPercent = process.CPUPercent

	mm.log.Debug("Stats updated",
		"online_users", presence.OnlineUsers,
		"connections", presence.Connections,
		"messages_per_sec", mm.latestStats.MessagesPerSec,
		"mem_mb", mm.latestStats.AllocMemMb,
	)
}

func (mm *MonitoringManager) RecordQueue(name string, length, capacity int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.queues[name] = QueueStats{Length: length, Capacity: capacity}
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	stats := mm.latestStats
	stats.Queues = make(map[string]QueueStats, len(mm.queues))
	for name, q := range mm.queues {
		stats.Queues[name] = q
	}
	return stats
}
