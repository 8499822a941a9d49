package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for an unknown or expired session id.
	ErrNotFound = errors.New("session not found")
	// ErrTooMany is returned when the session limit is reached.
	ErrTooMany = errors.New("too many sessions")
)

// Manager creates, finds and expires sessions.
type Manager struct {
	deps   Deps
	idle   time.Duration
	max    int
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	pending  int // slots reserved by Create calls still building their session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout expires sessions unused for d. Zero disables expiry.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.idle = d }
}

// WithMaxSessions limits concurrent sessions. Zero means unlimited.
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) { m.max = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager building sessions from deps.
func NewManager(deps Deps, opts ...ManagerOption) *Manager {
	m := &Manager{
		deps:     deps,
		now:      time.Now,
		logger:   zap.NewNop(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.deps.Logger == nil {
		m.deps.Logger = m.logger
	}
	return m
}

// Create starts a new session. A slot is reserved before the session is built, so
// concurrent calls never exceed the limit.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	if m.max > 0 && len(m.sessions)+m.pending >= m.max {
		m.mu.Unlock()
		return nil, ErrTooMany
	}
	m.pending++
	m.mu.Unlock()

	s := New(uuid.NewString(), m.deps)
	s.touch(m.now())

	m.mu.Lock()
	m.pending--
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.logger.Debug("session created", zap.String("session", s.ID), zap.Int("sessions", n))
	return s, nil
}

// Get returns the session with id and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Delete closes and removes the session with id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Expire closes sessions idle for longer than the idle timeout and returns how many.
func (m *Manager) Expire() int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idle)
	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range expired {
		s.Close()
		m.logger.Debug("session expired", zap.String("session", s.ID))
	}
	return len(expired)
}

// Run expires idle sessions periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.idle <= 0 {
		return
	}
	interval := m.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Expire(); n > 0 {
				m.logger.Info("expired idle sessions", zap.Int("count", n))
			}
		}
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
