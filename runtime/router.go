package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"salon-chat/contract"
	"salon-chat/domain"
	"salon-chat/domain/event"
	"salon-chat/errors"
	"salon-chat/runtime/workers"
)

// Router subscribes the destinations of a connected session and turns
// every inbound frame into a Message or Error event for the registered listeners.
type Router struct {
	log       *slog.Logger
	listeners *Listeners
}

func NewRouter(log *slog.Logger, listeners *Listeners) *Router {
	return &Router{log: log, listeners: listeners}
}

func (r *Router) Listeners() *Listeners { return r.listeners }

func (r *Router) Emit(evt event.Event) { r.listeners.Notify(evt) }

// Subscribe subscribes the private queue of userID and the shared error topic,
// and starts one supervised dispatch worker per destination.
// Frames are dropped instead of dispatched once active reports false.
func (r *Router) Subscribe(ctx context.Context, sup contract.ISupervisor, conn contract.Connection, userID domain.UserID, active func() bool) ([]string, error) {
	destinations := []string{domain.PrivateDestination(userID), domain.ErrorDestination}
	for _, destination := range destinations {
		frames, err := conn.Subscribe(destination)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", destination, err)
		}
		worker := workers.NewDispatchWorker(r.log, destination, frames, func(frame domain.InboundFrame) {
			if !active() {
				r.log.Debug("Dropping frame of inactive session", "user_id", userID, "destination", frame.Destination)
				return
			}
			r.Route(userID, frame)
		})
		sup.Start(ctx, worker)
	}
	r.log.Debug("Subscribed", "user_id", userID, "destinations", strings.Join(destinations, ","))
	return destinations, nil
}

// Route classifies one frame and notifies the matching listeners.
func (r *Router) Route(userID domain.UserID, frame domain.InboundFrame) event.Event {
	evt := Classify(userID, frame)
	if evt.Class == event.ErrorClass {
		r.log.Warn("Error event received",
			"user_id", userID,
			"destination", frame.Destination,
			"type", evt.Error.Type,
			"error", evt.Error)
	}
	r.listeners.Notify(evt)
	return evt
}

// Classify never fails: a transport fault becomes STOMP_PROTOCOL_ERROR, an unreadable body
// becomes PARSE_ERROR, and a payload with an error field is an Error event whatever its destination.
func Classify(userID domain.UserID, frame domain.InboundFrame) event.Event {
	if frame.Err != nil {
		evt := event.NewError(userID, event.StompProtocolErrorType, frame.Err.Error(),
			fmt.Errorf("%w: %w", errors.ErrStompProtocol, frame.Err))
		evt.Destination = frame.Destination
		return evt
	}

	var payload domain.InboundPayload
	if err := json.Unmarshal(frame.Body, &payload); err != nil {
		evt := event.NewError(userID, event.ParseErrorType, errors.ErrParse.Error(),
			fmt.Errorf("%w: %w", errors.ErrParse, err))
		evt.Destination = frame.Destination
		return evt
	}

	if payload.Error != "" {
		message := payload.Body
		if message == "" {
			message = payload.Error
		}
		evt := event.NewError(userID, event.ClassifyErrorType(payload.Error), message, nil)
		evt.Destination = frame.Destination
		return evt
	}

	return event.NewMessage(userID, frame.Destination, payload.ChatMessage)
}
