package stomp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"salon-chat/contract"
	"salon-chat/domain"
	"salon-chat/errors"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"
)

const (
	// Subprotocol is the STOMP 1.2 websocket subprotocol.
	Subprotocol = "v12.stomp"

	readLimit         = 1 << 20
	frameBuffer       = 64
	disconnectTimeout = 2 * time.Second
	// how long a pump keeps waiting for messages the client still hands over after the stream ended
	drainGrace = 200 * time.Millisecond
)

// Transport dials the push endpoint over websocket and speaks STOMP on top of it.
type Transport struct {
	log        *slog.Logger
	httpClient *http.Client
}

func NewTransport(log *slog.Logger, httpClient *http.Client) *Transport {
	return &Transport{log: log, httpClient: httpClient}
}

// Connect returns once the server answered CONNECTED, or ctx is done.
func (t *Transport) Connect(ctx context.Context, opts domain.ConnectOptions) (contract.Connection, error) {
	ws, _, err := websocket.Dial(ctx, opts.Endpoint, &websocket.DialOptions{
		HTTPClient:   t.httpClient,
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.Endpoint, err)
	}
	ws.SetReadLimit(readLimit)
	stream := newWSStream(ws)

	connOpts := []func(*stomp.Conn) error{
		stomp.ConnOpt.HeartBeat(opts.Heartbeat, opts.Heartbeat),
	}
	if opts.Host != "" {
		connOpts = append(connOpts, stomp.ConnOpt.Host(opts.Host))
	}
	for key, value := range opts.Headers {
		connOpts = append(connOpts, stomp.ConnOpt.Header(key, value))
	}

	type result struct {
		conn *stomp.Conn
		err  error
	}
	handshake := make(chan result, 1)
	go func() {
		conn, err := stomp.Connect(stream, connOpts...)
		handshake <- result{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = stream.Close()
		return nil, fmt.Errorf("stomp handshake: %w", ctx.Err())
	case r := <-handshake:
		if r.err != nil {
			_ = stream.Close()
			return nil, fmt.Errorf("stomp handshake: %w", r.err)
		}
		t.log.Debug("STOMP connected", "endpoint", opts.Endpoint, "user_id", opts.UserID)
		c := &connection{log: t.log, stream: stream, conn: r.conn, closed: make(chan struct{})}
		go c.watch()
		return c, nil
	}
}

type connection struct {
	log    *slog.Logger
	stream *wsStream
	conn   *stomp.Conn
	closed chan struct{}
	once   sync.Once

	// mu orders pump registration against the end of the stream
	mu            sync.Mutex
	ending        bool
	pumps         sync.WaitGroup
	disconnecting atomic.Bool
	faultOnce     sync.Once
}

// Subscribe fails once the stream has ended, so no frame channel outlives Closed.
func (c *connection) Subscribe(destination string) (<-chan domain.InboundFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ending || c.stream.Failed() {
		return nil, fmt.Errorf("subscribe %s: %w", destination, errors.ErrConnection)
	}
	sub, err := c.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, err
	}
	out := make(chan domain.InboundFrame, frameBuffer)
	c.pumps.Add(1)
	go c.pump(destination, sub, out)
	return out, nil
}

func (c *connection) Send(destination, contentType string, body []byte) error {
	return c.conn.Send(destination, contentType, body)
}

// Closed is closed after every frame channel has been closed.
func (c *connection) Closed() <-chan struct{} { return c.closed }

func (c *connection) CloseReason() domain.CloseReason { return c.stream.Reason() }

// Disconnect sends DISCONNECT and waits a short while for the receipt before closing the socket.
func (c *connection) Disconnect() error {
	c.disconnecting.Store(true)
	done := make(chan error, 1)
	go func() { done <- c.conn.Disconnect() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(disconnectTimeout):
		err = fmt.Errorf("disconnect receipt not received within %s", disconnectTimeout)
	}
	_ = c.stream.Close()
	<-c.closed
	return err
}

func (c *connection) watch() {
	<-c.stream.Done()
	c.mu.Lock()
	c.ending = true
	c.mu.Unlock()
	c.pumps.Wait()
	c.once.Do(func() { close(c.closed) })
}

// pump forwards the messages of one subscription in order, draining what is still being handed over once the stream ends.
func (c *connection) pump(destination string, sub *stomp.Subscription, out chan<- domain.InboundFrame) {
	defer c.pumps.Done()
	defer close(out)
	for {
		var msg *stomp.Message
		var ok bool
		select {
		case msg, ok = <-sub.C:
		case <-c.stream.Done():
			select {
			case msg, ok = <-sub.C:
			case <-time.After(drainGrace):
				return
			}
		}
		if !ok {
			return
		}

		frame := domain.InboundFrame{Destination: destination, Body: msg.Body}
		if msg.Err != nil {
			if !c.reportFault(msg) {
				continue
			}
			frame.Err = msg.Err
		}
		select {
		case out <- frame:
		default:
			select {
			case out <- frame:
			case <-c.stream.Done():
				return
			}
		}
	}
}

// reportFault keeps the first server fault of the connection.
// The client copies one ERROR frame to every subscription, and raises errors of its own
// when the socket drops or is disconnected; those only mean the connection is gone.
func (c *connection) reportFault(msg *stomp.Message) bool {
	if msg.Header == nil || c.disconnecting.Load() {
		return false
	}
	// raised by the client itself: a lone message header and no body
	synthetic := msg.Header.Len() == 1 && len(msg.Body) == 0
	if synthetic && c.stream.Failed() && !c.stream.ClosedLocally() {
		return false
	}
	first := false
	c.faultOnce.Do(func() { first = true })
	return first
}
