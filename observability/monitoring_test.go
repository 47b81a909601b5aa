package observability

import (
	"testing"

	"salon-chat/domain/event"

	"github.com/stretchr/testify/require"
)

func TestMonitor_Snapshot(t *testing.T) {
	req := require.New(t)
	monitor := NewMonitor()

	// Given two uploads, one cleanup and two rejections
	monitor.RecordUpload(1024)
	monitor.RecordUpload(2048)
	monitor.RecordCleanup()
	req.NoError(monitor.OnEvent(event.NewError("", event.FileTooLargeType, "too big", nil)))
	req.NoError(monitor.OnEvent(event.NewError("", event.FileTooLargeType, "too big", nil)))
	req.NoError(monitor.OnEvent(event.Event{Class: event.MessageClass}))

	// When taking a snapshot
	stats := monitor.Snapshot()

	// Then the counters are reported
	req.Equal(uint64(2), stats.UploadsAccepted)
	req.Equal(uint64(3072), stats.BytesStored)
	req.Equal(uint64(1), stats.Cleanups)
	req.Equal(map[event.ErrorType]uint64{event.FileTooLargeType: 2}, stats.UploadsRejected)

	// And the speed window restarts
	req.Zero(monitor.Snapshot().UploadSpeed)
}
