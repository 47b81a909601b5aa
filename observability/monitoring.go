package observability

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"salon-chat/domain/event"
)

// UploadStats aggregates the attachment API counters.
type UploadStats struct {
	UploadsAccepted uint64                     `json:"uploads_accepted"`
	UploadsRejected map[event.ErrorType]uint64 `json:"uploads_rejected"`
	BytesStored     uint64                     `json:"bytes_stored"`
	Cleanups        uint64                     `json:"cleanups"`
	UploadSpeed     float64                    `json:"upload_speed"` // MB/s since the previous snapshot
	AllocMemMb      uint64                     `json:"alloc_mem_mb"`
	NumGC           uint32                     `json:"num_gc"`
}

// Monitor counts uploads as they happen and rejections through the listener registry.
type Monitor struct {
	uploads     atomic.Uint64
	bytesStored atomic.Uint64
	window      atomic.Uint64
	cleanups    atomic.Uint64

	mu        sync.Mutex
	rejected  map[event.ErrorType]uint64
	lastCheck time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{rejected: make(map[event.ErrorType]uint64), lastCheck: time.Now()}
}

func (m *Monitor) RecordUpload(size int64) {
	m.uploads.Add(1)
	if size > 0 {
		m.bytesStored.Add(uint64(size))
		m.window.Add(uint64(size))
	}
}

func (m *Monitor) RecordCleanup() { m.cleanups.Add(1) }

// OnEvent counts error events by type.
func (m *Monitor) OnEvent(evt event.Event) error {
	if evt.Class != event.ErrorClass || evt.Error == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[evt.Error.Type]++
	return nil
}

// Snapshot computes the upload speed over the time elapsed since the previous snapshot.
func (m *Monitor) Snapshot() UploadStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	stats := UploadStats{
		UploadsAccepted: m.uploads.Load(),
		BytesStored:     m.bytesStored.Load(),
		Cleanups:        m.cleanups.Load(),
		UploadsRejected: make(map[event.ErrorType]uint64, len(m.rejected)),
	}
	if elapsed := now.Sub(m.lastCheck).Seconds(); elapsed > 0 {
		stats.UploadSpeed = (float64(m.window.Swap(0)) / 1024 / 1024) / elapsed
	}
	m.lastCheck = now
	for errorType, count := range m.rejected {
		stats.UploadsRejected[errorType] = count
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.AllocMemMb = mem.Alloc / 1024 / 1024
	stats.NumGC = mem.NumGC
	return stats
}
