package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"salon-chat/contract"
	"salon-chat/domain"
	"salon-chat/domain/event"

	"github.com/mama165/sdk-go/logs"
)

type sentFrame struct {
	Destination string
	ContentType string
	Body        []byte
}

type fakeConn struct {
	mu          sync.Mutex
	subs        map[string]chan domain.InboundFrame
	sent        []sentFrame
	reason      domain.CloseReason
	closed      chan struct{}
	closeOnce   sync.Once
	disconnects atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{subs: make(map[string]chan domain.InboundFrame), closed: make(chan struct{})}
}

func (c *fakeConn) Subscribe(destination string) (<-chan domain.InboundFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan domain.InboundFrame, 16)
	c.subs[destination] = ch
	return ch, nil
}

func (c *fakeConn) Send(destination, contentType string, body []byte) error {
	select {
	case <-c.closed:
		return fmt.Errorf("connection closed")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentFrame{Destination: destination, ContentType: contentType, Body: body})
	return nil
}

func (c *fakeConn) Closed() <-chan struct{} { return c.closed }

func (c *fakeConn) CloseReason() domain.CloseReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func (c *fakeConn) Disconnect() error {
	c.disconnects.Add(1)
	c.drop(domain.CloseReason{Code: 1000})
	return nil
}

// drop ends the connection as if the server or the network closed it.
func (c *fakeConn) drop(reason domain.CloseReason) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		for _, ch := range c.subs {
			close(ch)
		}
		c.mu.Unlock()
		close(c.closed)
	})
}

func (c *fakeConn) push(destination, body string) {
	c.mu.Lock()
	ch := c.subs[destination]
	c.mu.Unlock()
	ch <- domain.InboundFrame{Destination: destination, Body: []byte(body)}
}

func (c *fakeConn) sentFrames() []sentFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentFrame(nil), c.sent...)
}

type fakeTransport struct {
	mu        sync.Mutex
	errs      []error
	attempts  int
	lastOpts  domain.ConnectOptions
	connected chan *fakeConn
}

func newFakeTransport(errs ...error) *fakeTransport {
	return &fakeTransport{errs: errs, connected: make(chan *fakeConn, 16)}
}

func (t *fakeTransport) Connect(_ context.Context, opts domain.ConnectOptions) (contract.Connection, error) {
	t.mu.Lock()
	t.attempts++
	t.lastOpts = opts
	if len(t.errs) > 0 {
		err := t.errs[0]
		t.errs = t.errs[1:]
		t.mu.Unlock()
		return nil, err
	}
	t.mu.Unlock()
	conn := newFakeConn()
	t.connected <- conn
	return conn, nil
}

func (t *fakeTransport) attemptCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func (t *fakeTransport) nextConn(tb testing.TB) *fakeConn {
	tb.Helper()
	select {
	case conn := <-t.connected:
		return conn
	case <-time.After(time.Second):
		tb.Fatal("no connection was established")
		return nil
	}
}

type collector struct {
	events chan event.Event
}

func newCollector() *collector {
	return &collector{events: make(chan event.Event, 64)}
}

func (c *collector) OnEvent(evt event.Event) error {
	c.events <- evt
	return nil
}

func (c *collector) next(tb testing.TB) event.Event {
	tb.Helper()
	select {
	case evt := <-c.events:
		return evt
	case <-time.After(time.Second):
		tb.Fatal("no event was dispatched")
		return event.Event{}
	}
}

func (c *collector) none(tb testing.TB, wait time.Duration) {
	tb.Helper()
	select {
	case evt := <-c.events:
		tb.Fatalf("unexpected event %+v", evt)
	case <-time.After(wait):
	}
}

func waitDone(tb testing.TB, session *Session) {
	tb.Helper()
	select {
	case <-session.Done():
	case <-time.After(time.Second):
		tb.Fatal("session did not stop")
	}
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}
