package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"salon-chat/domain/event"

	"github.com/samber/lo"
)

type ListenerID uint64

type registration struct {
	id       ListenerID
	listener event.Listener
}

// Listeners is the observer registry shared by every session of a Router.
// Each class keeps its registrations in registration order. Add and Remove
// replace the slice instead of mutating it, so Notify iterates a stable snapshot
// and callbacks may add or remove listeners while a notification is in progress.
type Listeners struct {
	mu      sync.RWMutex
	log     *slog.Logger
	nextID  ListenerID
	byClass map[event.Class][]registration
}

func NewListeners(log *slog.Logger) *Listeners {
	return &Listeners{log: log, byClass: make(map[event.Class][]registration)}
}

// Add registers listener for class and returns the handle used to remove it.
func (l *Listeners) Add(class event.Class, listener event.Listener) ListenerID {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	current := l.byClass[class]
	next := make([]registration, len(current), len(current)+1)
	copy(next, current)
	l.byClass[class] = append(next, registration{id: l.nextID, listener: listener})
	return l.nextID
}

// Remove unregisters one listener. Unknown ids and classes are ignored.
func (l *Listeners) Remove(class event.Class, id ListenerID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.byClass[class]
	if !ok {
		return
	}
	next := lo.Filter(current, func(r registration, _ int) bool { return r.id != id })
	if len(next) == 0 {
		delete(l.byClass, class)
		return
	}
	l.byClass[class] = next
}

// Count returns how many listeners are registered for class.
func (l *Listeners) Count(class event.Class) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byClass[class])
}

// Notify calls every listener of the event class in registration order.
// A listener returning an error or panicking is logged and the others still run.
func (l *Listeners) Notify(evt event.Event) {
	l.mu.RLock()
	snapshot := l.byClass[evt.Class]
	l.mu.RUnlock()

	for _, r := range snapshot {
		if err := l.call(r.listener, evt); err != nil {
			l.log.Error("Listener failed",
				"listener_id", r.id,
				"class", evt.Class.String(),
				"user_id", evt.UserID,
				"error", err)
		}
	}
}

// Emit makes Listeners usable as a contract.EventEmitter.
func (l *Listeners) Emit(evt event.Event) { l.Notify(evt) }

func (l *Listeners) call(listener event.Listener, evt event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return listener.OnEvent(evt)
}
