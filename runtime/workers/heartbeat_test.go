package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"salon-chat/observability"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatWorker_Beats_Until_Cancelled(t *testing.T) {
	req := require.New(t)
	beats := make(chan struct{}, 8)
	worker := NewHeartbeatWorker(logs.GetLoggerFromLevel(slog.LevelDebug), observability.NewMonitor(), 10*time.Millisecond)
	worker.collectStats = func() (uint64, float64, string, error) {
		beats <- struct{}{}
		return 1024, 1.5, "R", nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// When the worker runs
	go func() { done <- worker.Run(ctx) }()

	// Then it collects stats on every tick
	for range 2 {
		select {
		case <-beats:
		case <-time.After(time.Second):
			req.FailNow("no heartbeat")
		}
	}

	// And returns cleanly on cancellation
	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.FailNow("worker did not stop")
	}
}
