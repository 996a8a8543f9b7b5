// Package session tracks logged-in users and ends idle sessions.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"salonbook/internal/metrics"
	"salonbook/internal/watchdog"
	"salonbook/shared/logging"
)

var ErrNotAuthenticated = errors.New("session not authenticated")

// Info is a read-only view of a session.
type Info struct {
	UserID        string     `json:"user_id"`
	Role          string     `json:"role"`
	Authenticated bool       `json:"authenticated"`
	LoggedInAt    time.Time  `json:"logged_in_at"`
	LastActivity  time.Time  `json:"last_activity"`
	ExpiredAt     *time.Time `json:"expired_at,omitempty"`
	IdleMinutes   int        `json:"idle_minutes"`
}

type session struct {
	info     Info
	seq      uint64 // bumped on every login
	hub      *Hub
	watchdog *watchdog.Watchdog
}

// Manager owns one watchdog per user.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*session
	clock       watchdog.Clock
	idleMinutes int
	logger      logging.Logger
	onExpire    func(Info)
}

// NewManager creates a manager. A nil clock uses the real clock.
func NewManager(idleMinutes int, clock watchdog.Clock, logger logging.Logger) *Manager {
	if clock == nil {
		clock = watchdog.RealClock()
	}
	return &Manager{
		sessions:    make(map[string]*session),
		clock:       clock,
		idleMinutes: idleMinutes,
		logger:      logging.OrNop(logger),
	}
}

// OnExpire registers a callback run after a session is ended by the
// watchdog.
func (m *Manager) OnExpire(fn func(Info)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// SetIdleMinutes changes the timeout used by subsequent logins.
func (m *Manager) SetIdleMinutes(minutes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleMinutes = minutes
}

// Login authenticates a user and arms their watchdog.
func (m *Manager) Login(userID, role string) Info {
	userID = strings.TrimSpace(userID)
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		hub := NewHub()
		s = &session{hub: hub, watchdog: watchdog.New(hub, m.clock, m.logger)}
		m.sessions[userID] = s
	}
	s.info = Info{
		UserID:        userID,
		Role:          role,
		Authenticated: true,
		LoggedInAt:    now,
		LastActivity:  now,
		IdleMinutes:   m.idleMinutes,
	}
	s.seq++
	seq := s.seq
	s.watchdog.Arm(func() { m.expire(userID, seq) }, m.idleMinutes, true)

	m.logger.Info("session started", "user_id", userID, "role", role)
	return s.info
}

// Logout ends a session immediately.
func (m *Manager) Logout(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[strings.TrimSpace(userID)]
	if !ok || !s.info.Authenticated {
		return false
	}
	s.info.Authenticated = false
	s.watchdog.SetAuthenticated(false)

	m.logger.Info("session ended", "user_id", s.info.UserID)
	return true
}

// Touch records an interaction. It fails when the user has no live
// session.
func (m *Manager) Touch(userID string, kind watchdog.Interaction) error {
	m.mu.Lock()
	s, ok := m.sessions[strings.TrimSpace(userID)]
	if !ok || !s.info.Authenticated {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.info.LastActivity = m.clock.Now()
	hub := s.hub
	m.mu.Unlock()

	hub.Emit(kind)
	return nil
}

// Get returns the session of a user.
func (m *Manager) Get(userID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[strings.TrimSpace(userID)]
	if !ok {
		return Info{}, false
	}
	return s.info, true
}

// Close disarms every watchdog.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.info.Authenticated = false
		s.watchdog.Close()
	}
}

// expire ends the session armed by login number seq. A callback from an
// earlier login that lost the race with a new one is ignored.
func (m *Manager) expire(userID string, seq uint64) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok || !s.info.Authenticated || s.seq != seq {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	s.info.Authenticated = false
	s.info.ExpiredAt = &now
	info := s.info
	cb := m.onExpire
	m.mu.Unlock()

	metrics.IncSessionExpired()
	m.logger.Info("session expired after inactivity", "user_id", userID, "idle_minutes", info.IdleMinutes)
	if cb != nil {
		cb(info)
	}
}
