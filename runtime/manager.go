package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"salon-chat/contract"
	"salon-chat/domain"
	"salon-chat/domain/event"
	"salon-chat/errors"
)

// Manager keeps at most one live session per user.
type Manager struct {
	mu        sync.Mutex
	log       *slog.Logger
	transport contract.Transport
	router    *Router
	cfg       SessionConfig
	sessions  map[domain.UserID]*Session
}

func NewManager(log *slog.Logger, transport contract.Transport, router *Router, cfg SessionConfig) *Manager {
	return &Manager{
		log:       log,
		transport: transport,
		router:    router,
		cfg:       cfg.withDefaults(),
		sessions:  make(map[domain.UserID]*Session),
	}
}

// Open replaces any session of userID and blocks until the new one is connected.
// The previous session is deactivated gracefully and awaited before the new one dials.
// If the first connection attempt fails the new session is closed, a CONNECTION_ERROR
// event is emitted and the error wraps errors.ErrConnection.
func (m *Manager) Open(ctx context.Context, userID domain.UserID) (*Session, error) {
	session := newSession(m.log, userID, m.cfg, m.transport, m.router)
	session.onTerminate = m.forget

	m.mu.Lock()
	previous := m.sessions[userID]
	m.sessions[userID] = session
	m.mu.Unlock()

	if previous != nil {
		m.log.Info("Replacing existing session", "user_id", userID, "session_id", previous.ID.String())
		previous.close()
		select {
		case <-previous.Done():
		case <-ctx.Done():
			return nil, m.fail(session, ctx.Err())
		}
	}

	session.start()
	select {
	case err := <-session.firstConnect:
		if err != nil {
			return nil, m.fail(session, err)
		}
		return session, nil
	case <-session.Done():
		return nil, m.fail(session, errors.ErrSessionClosed)
	case <-ctx.Done():
		return nil, m.fail(session, ctx.Err())
	}
}

func (m *Manager) fail(session *Session, cause error) error {
	m.Close(session)
	err := fmt.Errorf("%w: %w", errors.ErrConnection, cause)
	m.log.Error("Session open failed", "user_id", session.userID, "error", cause)
	m.router.Emit(event.NewError(session.userID, event.ConnectionErrorType, "connection failed", err))
	return err
}

// Close deactivates the session. Closing nil or an already closed session is a no-op.
// It does not wait for the loop to return, so it is safe to call from a listener; use Done to wait.
func (m *Manager) Close(session *Session) {
	if session == nil {
		return
	}
	session.close()
	m.forget(session)
}

// Get returns the live session of userID.
func (m *Manager) Get(userID domain.UserID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[userID]
	return session, ok
}

// CloseAll closes every session and waits for them until ctx is done.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[domain.UserID]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.close()
	}
	for _, session := range sessions {
		select {
		case <-session.Done():
		case <-ctx.Done():
			m.log.Warn("Sessions still closing at shutdown", "user_id", session.userID)
			return
		}
	}
}

func (m *Manager) forget(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.sessions[session.userID]; ok && current == session {
		delete(m.sessions, session.userID)
	}
}
