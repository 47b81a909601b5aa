package stomp

import (
	"context"
	"io"
	"sync"

	"salon-chat/domain"
	"salon-chat/errors"

	"github.com/coder/websocket"
)

// wsStream adapts a websocket.Conn to the byte stream the STOMP client reads and writes.
// One websocket message carries one or more STOMP frames, or a heart-beat.
// The close status of the peer is kept so the session can tell a deletion from a drop.
type wsStream struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	reader io.Reader

	once   sync.Once
	mu     sync.Mutex
	reason domain.CloseReason
	local  bool
	done   chan struct{}
}

func newWSStream(conn *websocket.Conn) *wsStream {
	// The connection outlives the dial context, so it gets its own.
	ctx, cancel := context.WithCancel(context.Background())
	return &wsStream{conn: conn, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			_, r, err := s.conn.Reader(s.ctx)
			if err != nil {
				s.fail(err)
				return 0, err
			}
			s.reader = r
		}
		n, err := s.reader.Read(p)
		if errors.Is(err, io.EOF) {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			s.fail(err)
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.conn.Write(s.ctx, websocket.MessageText, p); err != nil {
		s.fail(err)
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal closure. It is safe to call more than once.
func (s *wsStream) Close() error {
	s.finish(domain.CloseReason{Code: int(websocket.StatusNormalClosure)}, true)
	err := s.conn.Close(websocket.StatusNormalClosure, "")
	s.cancel()
	return err
}

func (s *wsStream) Done() <-chan struct{} { return s.done }

func (s *wsStream) Failed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// ClosedLocally reports whether the stream ended through Close rather than a peer close or a read failure.
func (s *wsStream) ClosedLocally() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

func (s *wsStream) Reason() domain.CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *wsStream) fail(err error) {
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) {
		s.finish(domain.CloseReason{Code: int(closeErr.Code), Reason: closeErr.Reason}, false)
		return
	}
	s.finish(domain.CloseReason{Code: int(websocket.StatusAbnormalClosure), Reason: err.Error()}, false)
}

// finish keeps the first reason only.
func (s *wsStream) finish(reason domain.CloseReason, local bool) {
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.local = local
		s.mu.Unlock()
		close(s.done)
	})
}
