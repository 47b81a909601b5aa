package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"salon-chat/contract"
	"salon-chat/domain"
	"salon-chat/domain/event"
	"salon-chat/errors"
	"salon-chat/runtime/workers"

	"github.com/google/uuid"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("STATE(%d)", int32(s))
	}
}

const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultHeartbeat      = 4 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

type SessionConfig struct {
	Endpoint       string
	Host           string
	ReconnectDelay time.Duration
	Heartbeat      time.Duration
	ConnectTimeout time.Duration
	Headers        map[string]string
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = DefaultHeartbeat
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

// Session owns the push-channel connection of one user.
// The connection is replaced on every reconnect and always torn down before the next one is dialed.
type Session struct {
	ID        uuid.UUID
	userID    domain.UserID
	log       *slog.Logger
	cfg       SessionConfig
	transport contract.Transport
	router    *Router
	sup       *workers.Supervisor

	state atomic.Int32

	mu            sync.Mutex
	conn          contract.Connection
	subscriptions []string

	firstConnect chan error
	firstOnce    sync.Once
	started      atomic.Bool
	closeOnce    sync.Once
	done         chan struct{}
	onTerminate  func(*Session)
}

func newSession(log *slog.Logger, userID domain.UserID, cfg SessionConfig, transport contract.Transport, router *Router) *Session {
	id := uuid.New()
	cfg = cfg.withDefaults()
	log = log.With("user_id", userID, "session_id", id.String())
	return &Session{
		ID:           id,
		userID:       userID,
		log:          log,
		cfg:          cfg,
		transport:    transport,
		router:       router,
		sup:          workers.NewSupervisor(log, cfg.ReconnectDelay),
		firstConnect: make(chan error, 1),
		done:         make(chan struct{}),
	}
}

func (s *Session) UserID() domain.UserID {
	if s == nil {
		return ""
	}
	return s.userID
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) IsConnected() bool { return s != nil && s.State() == StateConnected }

// Done is closed once the session loop and its dispatch workers have returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Subscriptions returns the destinations of the current connection.
func (s *Session) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscriptions...)
}

// Publish sends one frame without waiting for any server acknowledgement.
func (s *Session) Publish(destination, contentType string, body []byte) error {
	if !s.IsConnected() {
		return errors.ErrConnection
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.ErrConnection
	}
	if err := conn.Send(destination, contentType, body); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrConnection, err)
	}
	return nil
}

func (s *Session) start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.state.Store(int32(StateConnecting))
	s.sup.Add(sessionLoop{session: s})
	go func() {
		s.sup.Run(context.Background())
		close(s.done)
	}()
}

// close is terminal and idempotent. Frames still in flight are dropped and the
// loop disconnects the transport gracefully before returning.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.sup.Stop()
		if s.started.CompareAndSwap(false, true) {
			close(s.done)
		}
	})
}

func (s *Session) terminate() {
	s.close()
	if s.onTerminate != nil {
		s.onTerminate(s)
	}
}

func (s *Session) active() bool { return s.State() != StateClosed }

// transition never leaves the Closed state.
func (s *Session) transition(to State) bool {
	for {
		current := s.state.Load()
		if State(current) == StateClosed {
			return false
		}
		if s.state.CompareAndSwap(current, int32(to)) {
			return true
		}
	}
}

// reportFirst publishes the outcome of the first connection attempt to Open.
// It returns true when this call reported a failed first attempt.
func (s *Session) reportFirst(err error) bool {
	first := false
	s.firstOnce.Do(func() {
		first = true
		s.firstConnect <- err
	})
	return first && err != nil
}

func (s *Session) connect(ctx context.Context) (contract.Connection, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	return s.transport.Connect(attemptCtx, domain.ConnectOptions{
		UserID:    s.userID,
		Endpoint:  s.cfg.Endpoint,
		Host:      s.cfg.Host,
		Heartbeat: s.cfg.Heartbeat,
		Headers:   s.cfg.Headers,
	})
}

// serve runs one connection until it ends. It returns true when the session must not reconnect.
func (s *Session) serve(ctx context.Context, conn contract.Connection) bool {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.subscriptions = nil
		s.mu.Unlock()
	}()

	subscriptions, err := s.router.Subscribe(ctx, s.sup, conn, s.userID, s.active)
	if err != nil {
		s.log.Error("Subscription failed", "error", err)
		_ = conn.Disconnect()
		return s.reportFirst(err)
	}
	s.mu.Lock()
	s.subscriptions = subscriptions
	s.mu.Unlock()

	if !s.transition(StateConnected) {
		_ = conn.Disconnect()
		return true
	}
	s.reportFirst(nil)
	s.log.Info("Session connected", "endpoint", s.cfg.Endpoint)

	select {
	case <-ctx.Done():
		if err := conn.Disconnect(); err != nil {
			s.log.Warn("Graceful disconnect failed", "error", err)
		}
		return true
	case <-conn.Closed():
		reason := conn.CloseReason()
		if reason.RoomDeleted() {
			s.log.Warn("Connection closed because the chat room was deleted", "code", reason.Code, "reason", reason.Reason)
			s.router.Emit(event.NewError(s.userID, event.ChatRoomDeletedType, reason.Reason, errors.ErrChatRoomDeleted))
			s.terminate()
			return true
		}
		s.log.Warn("Connection lost", "code", reason.Code, "reason", reason.Reason)
		return false
	}
}

func (s *Session) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.cfg.ReconnectDelay):
		return true
	}
}

// sessionLoop drives Connecting -> Connected -> Reconnecting until the session is closed.
type sessionLoop struct {
	session *Session
}

func (l sessionLoop) Run(ctx context.Context) error {
	s := l.session
	for ctx.Err() == nil {
		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if s.reportFirst(err) {
				return nil
			}
			s.log.Warn("Reconnect attempt failed", "error", err, "retry_in", s.cfg.ReconnectDelay)
			if !s.wait(ctx) {
				return nil
			}
			continue
		}

		if terminal := s.serve(ctx, conn); terminal {
			return nil
		}
		if !s.transition(StateReconnecting) || !s.wait(ctx) {
			return nil
		}
	}
	return nil
}
