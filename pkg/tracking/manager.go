package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/internal/timeutil"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/rig"
)

// Status is a point-in-time view of the tracking surface.
type Status struct {
	Active    bool        `json:"active"`
	SessionID string      `json:"session_id,omitempty"`
	State     State       `json:"state"`
	StartedAt *time.Time  `json:"started_at,omitempty"`
	Smoothed  *gaze.State `json:"smoothed,omitempty"`
	Stats     Stats       `json:"stats"`
	Error     string      `json:"error,omitempty"`
}

// Manager owns at most one Session at a time.
type Manager struct {
	cfg    Config
	source camera.Source
	loader detection.Loader
	rig    *rig.Binding
	clock  timeutil.Clock
	logger *slog.Logger

	mu      sync.Mutex
	session *Session
	last    *Session // most recent session, kept for status after it stops

	// OnChange is called after every session state change.
	// Set it before the first Activate.
	OnChange func(Status)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the real clock.
func WithClock(c timeutil.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithRig binds the initial rig.
func WithRig(r rig.Rig) Option {
	return func(m *Manager) { m.rig.Set(r) }
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates an idle manager.
func NewManager(cfg Config, source camera.Source, loader detection.Loader, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		source: source,
		loader: loader,
		rig:    rig.NewBinding(nil),
		clock:  timeutil.RealClock{},
		logger: log.Component("tracking"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetRig re-points channel writes, including those of a running session.
func (m *Manager) SetRig(r rig.Rig) {
	m.rig.Set(r)
}

// Config returns the session configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Activate creates a session and drives it to Running. Cancelling ctx
// aborts initialization; it has no effect once Activate has returned.
// A failed session is returned alongside the error and is already
// Stopped.
func (m *Manager) Activate(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return nil, ErrAlreadyActive
	}
	s := newSession(m.cfg, m.source, m.loader, m.rig, m.clock, m.logger, m.changed)
	m.session = s
	m.last = s
	m.mu.Unlock()

	err := s.start(ctx)
	if err != nil {
		m.mu.Lock()
		if m.session == s {
			m.session = nil
		}
		m.mu.Unlock()
		return s, err
	}
	return s, nil
}

// Deactivate stops the current session, if any. Resources are released
// when it returns.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()

	if s != nil {
		s.Stop()
	}
}

// Session returns the live session, or nil.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Status describes the live session, or the last one if none is live.
func (m *Manager) Status() Status {
	m.mu.Lock()
	live, last := m.session, m.last
	m.mu.Unlock()

	if last == nil {
		return Status{State: StateIdle}
	}
	return statusOf(last, live == last)
}

func statusOf(s *Session, active bool) Status {
	st := Status{
		SessionID: s.ID,
		State:     s.State(),
		Stats:     s.Stats(),
	}
	st.Active = active && st.State != StateStopped
	started := s.StartedAt
	st.StartedAt = &started
	if sm, ok := s.Smoothed(); ok {
		st.Smoothed = &sm
	}
	if err := s.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func (m *Manager) changed(s *Session) {
	if m.OnChange == nil {
		return
	}
	m.mu.Lock()
	active := m.session == s
	m.mu.Unlock()
	m.OnChange(statusOf(s, active))
}
