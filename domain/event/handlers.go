package event

// Listener is notified synchronously from the dispatch loop.
// Slow work must be handed off, a long listener stalls the next frame of its destination.
type Listener interface {
	OnEvent(evt Event) error
}

type ListenerFunc func(evt Event) error

func (f ListenerFunc) OnEvent(evt Event) error { return f(evt) }
