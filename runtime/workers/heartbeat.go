package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"salon-chat/observability"

	"github.com/shirou/gopsutil/process"
)

const defaultHeartbeatInterval = 30 * time.Second

// HeartbeatWorker logs the health of the process and the attachment counters at a fixed interval.
type HeartbeatWorker struct {
	log          *slog.Logger
	monitor      *observability.Monitor
	interval     time.Duration
	collectStats func() (rss uint64, cpu float64, status string, err error)
}

func NewHeartbeatWorker(log *slog.Logger, monitor *observability.Monitor, interval time.Duration) *HeartbeatWorker {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &HeartbeatWorker{log: log, monitor: monitor, interval: interval}
}

// Run returns nil once ctx is done.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	collect := w.collectStats
	if collect == nil {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return err
		}
		collect = func() (uint64, float64, string, error) { return getSelfStats(p) }
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.beat(collect)
		}
	}
}

func (w *HeartbeatWorker) beat(collect func() (uint64, float64, string, error)) {
	stats := w.monitor.Snapshot()
	rss, cpu, status, err := collect()
	if err != nil {
		w.log.Error("Failed to collect self stats", "error", err)
	}
	w.log.Info("Heartbeat",
		"pid", os.Getpid(),
		"status", status,
		"cpu_percent", cpu,
		"rss_bytes", rss,
		"alloc_mem_mb", stats.AllocMemMb,
		"uploads_accepted", stats.UploadsAccepted,
		"uploads_rejected", stats.UploadsRejected,
		"bytes_stored", stats.BytesStored,
		"upload_speed_mbs", stats.UploadSpeed,
		"cleanups", stats.Cleanups)
}

// getSelfStats retrieves memory, CPU and OS status of the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
