package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is a leased connection identity. The lease renews on every Touch;
// sessions whose lease lapses are reaped by the cleanup loop.
type Session struct {
	ID         string
	PlayerName string
	CreatedAt  time.Time
	LastSeen   time.Time
}

// Manager manages player sessions
type Manager struct {
	sessions    map[string]*Session
	byPlayer    map[string]string
	leasePeriod time.Duration
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewManager creates a new session manager
func NewManager(leasePeriod time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		byPlayer:    make(map[string]string),
		leasePeriod: leasePeriod,
		logger:      logger,
	}
}

// CreateSession issues a new session for a player, replacing any existing
// session held under the same name.
func (m *Manager) CreateSession(playerName string) (*Session, error) {
	if playerName == "" {
		return nil, fmt.Errorf("empty player name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.byPlayer[playerName]; ok {
		delete(m.sessions, old)
	}

	now := time.Now()
	s := &Session{
		ID:         uuid.New().String(),
		PlayerName: playerName,
		CreatedAt:  now,
		LastSeen:   now,
	}
	m.sessions[s.ID] = s
	m.byPlayer[playerName] = s.ID

	m.logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("player", playerName),
	)
	return s, nil
}

// GetSession looks up a session without renewing its lease.
func (m *Manager) GetSession(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Touch renews a session's lease. Returns false for unknown or expired
// sessions.
func (m *Manager) Touch(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	if time.Since(s.LastSeen) > m.leasePeriod {
		m.removeLocked(s)
		return false
	}
	s.LastSeen = time.Now()
	return true
}

// RemoveSession ends a session.
func (m *Manager) RemoveSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		m.removeLocked(s)
		m.logger.Info("session removed",
			zap.String("session_id", sessionID),
			zap.String("player", s.PlayerName),
		)
	}
}

func (m *Manager) removeLocked(s *Session) {
	delete(m.sessions, s.ID)
	if m.byPlayer[s.PlayerName] == s.ID {
		delete(m.byPlayer, s.PlayerName)
	}
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupExpiredSessions reaps lapsed sessions on a fixed interval until the
// context is cancelled. Intended to run as a background goroutine.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) {
	interval := m.leasePeriod / 2
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
			m.reapExpired()
		}
	}
}

func (m *Manager) reapExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	reaped := 0
	for _, s := range m.sessions {
		if now.Sub(s.LastSeen) > m.leasePeriod {
			m.removeLocked(s)
			reaped++
		}
	}
	if reaped > 0 {
		m.logger.Info("reaped expired sessions",
			zap.Int("count", reaped),
			zap.Int("remaining", len(m.sessions)),
		)
	}
}

// CloseAll drops every session, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.sessions)
	m.sessions = make(map[string]*Session)
	m.byPlayer = make(map[string]string)

	m.logger.Info("closed all sessions", zap.Int("count", count))
}
