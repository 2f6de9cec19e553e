// Package observability aggregates engine telemetry for logs and the debug
// endpoint. Counters are atomic; the fan-out path never takes a lock here.
package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats is the periodic snapshot exposed by the debug server.
type MonitoringStats struct {
	ConnectionsOpen   int64   `json:"connections_open"`
	ConnectionsOpened uint64  `json:"connections_opened"`
	FramesRead        uint64  `json:"frames_read"`
	FramesDropped     uint64  `json:"frames_dropped"`
	FrameRate         float64 `json:"frame_rate"` // frames/s since last tick
	AllocMemMb        uint64  `json:"alloc_mem_mb"`
	NumGC             uint32  `json:"num_gc"`
	Goroutines        int     `json:"goroutines"`
}

// MonitoringManager collects counters from the transport and refreshes a
// snapshot once per second while listening.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats

	connectionsOpen   int64
	connectionsOpened uint64
	framesRead        uint64
	framesDropped     uint64
	frameWindow       uint64
	lastCheck         time.Time
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, lastCheck: time.Now()}
}

func (mm *MonitoringManager) ConnectionOpened() {
	atomic.AddInt64(&mm.connectionsOpen, 1)
	atomic.AddUint64(&mm.connectionsOpened, 1)
}

func (mm *MonitoringManager) ConnectionClosed() {
	atomic.AddInt64(&mm.connectionsOpen, -1)
}

func (mm *MonitoringManager) FrameRead() {
	atomic.AddUint64(&mm.framesRead, 1)
	atomic.AddUint64(&mm.frameWindow, 1)
}

func (mm *MonitoringManager) FrameDropped() {
	atomic.AddUint64(&mm.framesDropped, 1)
}

// Run refreshes the snapshot every second until the context ends.
func (mm *MonitoringManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mm.log.Debug("Monitoring stopped")
			return nil
		case <-ticker.C:
			mm.updateStats()
		}
	}
}

func (mm *MonitoringManager) updateStats() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	duration := now.Sub(mm.lastCheck).Seconds()
	if duration > 0 {
		window := atomic.SwapUint64(&mm.frameWindow, 0)
		mm.latestStats.FrameRate = float64(window) / duration
	}
	mm.lastCheck = now

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	mm.latestStats.ConnectionsOpen = atomic.LoadInt64(&mm.connectionsOpen)
	mm.latestStats.ConnectionsOpened = atomic.LoadUint64(&mm.connectionsOpened)
	mm.latestStats.FramesRead = atomic.LoadUint64(&mm.framesRead)
	mm.latestStats.FramesDropped = atomic.LoadUint64(&mm.framesDropped)
	mm.latestStats.AllocMemMb = mem.Alloc / 1024 / 1024
	mm.latestStats.NumGC = mem.NumGC
	mm.latestStats.Goroutines = runtime.NumGoroutine()
}

// Snapshot returns the latest computed stats.
func (mm *MonitoringManager) Snapshot() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
