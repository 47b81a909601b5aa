package workers

import (
	"context"
	"log/slog"

	"salon-chat/domain"
)

// DispatchWorker drains the frames of one subscription in delivery order.
// Frames of one destination are never handled concurrently.
type DispatchWorker struct {
	log         *slog.Logger
	Destination string
	frames      <-chan domain.InboundFrame
	route       func(frame domain.InboundFrame)
}

func NewDispatchWorker(log *slog.Logger, destination string, frames <-chan domain.InboundFrame, route func(frame domain.InboundFrame)) DispatchWorker {
	return DispatchWorker{log: log, Destination: destination, frames: frames, route: route}
}

// Run returns nil when the subscription channel is closed or the context is done,
// so the supervisor does not restart it. A panic in route restarts the worker on the same channel.
func (w DispatchWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping dispatch", "destination", w.Destination)
			return nil
		case frame, ok := <-w.frames:
			if !ok {
				w.log.Debug("Subscription closed", "destination", w.Destination)
				return nil
			}
			if frame.Destination == "" {
				frame.Destination = w.Destination
			}
			w.route(frame)
		}
	}
}
