package screen

import (
	"alcyxob/workym/internal/identity"
	"alcyxob/workym/internal/timer"
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout makes EvictIdle close screens that have no watchers and
// were not used for d. Zero disables eviction.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.idleTimeout = d }
}

// entry is a screen that is open or still opening. ready is closed once
// s or err is set.
type entry struct {
	ready chan struct{}
	s     *Screen
	err   error
}

// Manager keeps one open Screen per signed-in user.
type Manager struct {
	template    Config
	logger      *zap.Logger
	now         func() time.Time
	idleTimeout time.Duration

	mu      sync.Mutex
	screens map[string]*entry
}

// NewManager returns a Manager that opens screens from template, filling in
// the user ID per screen.
func NewManager(template Config, opts ...ManagerOption) *Manager {
	logger := template.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := template.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		template: template,
		logger:   logger,
		now:      now,
		screens:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open returns userID's screen, opening it if needed. The lock is not held
// while the screen subscribes, so a slow store only delays callers for the
// same user.
func (m *Manager) Open(userID string) (*Screen, error) {
	m.mu.Lock()
	if e, ok := m.screens[userID]; ok {
		if e.s != nil {
			e.s.Touch()
			m.mu.Unlock()
			return e.s, nil
		}
		m.mu.Unlock()
		<-e.ready
		if e.err != nil {
			return nil, e.err
		}
		e.s.Touch()
		return e.s, nil
	}
	e := &entry{ready: make(chan struct{})}
	m.screens[userID] = e
	m.mu.Unlock()

	cfg := m.template
	cfg.UserID = userID
	s, err := Open(cfg)

	m.mu.Lock()
	if err != nil {
		e.err = err
		if cur := m.screens[userID]; cur == e {
			delete(m.screens, userID)
		}
	} else {
		e.s = s
		if m.template.Metrics != nil {
			m.template.Metrics.GaugeScreens.Inc()
		}
	}
	m.mu.Unlock()
	close(e.ready)

	if err != nil {
		return nil, err
	}
	m.logger.Info("screen opened", zap.String("uid", userID))
	return s, nil
}

// Get returns userID's screen if it is open. Screens still opening are not
// returned.
func (m *Manager) Get(userID string) (*Screen, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.screens[userID]
	if !ok || e.s == nil {
		return nil, false
	}
	return e.s, true
}

// Len returns the number of open screens.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.screens {
		if e.s != nil {
			n++
		}
	}
	return n
}

// Close closes userID's screen, waiting for it to finish opening first.
// Closing a screen that is not open is a no-op.
func (m *Manager) Close(userID string) error {
	m.mu.Lock()
	e, ok := m.screens[userID]
	delete(m.screens, userID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	<-e.ready
	if e.s == nil {
		return nil
	}
	return m.closeScreen(e.s)
}

// Shutdown closes every open screen.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.screens))
	for id, e := range m.screens {
		entries = append(entries, e)
		delete(m.screens, id)
	}
	m.mu.Unlock()

	var err error
	for _, e := range entries {
		<-e.ready
		if e.s != nil {
			err = multierr.Append(err, m.closeScreen(e.s))
		}
	}
	return err
}

// EvictIdle closes screens without watchers that were not used for the
// idle timeout and returns how many it closed.
func (m *Manager) EvictIdle() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	now := m.now()

	m.mu.Lock()
	var idle []*Screen
	for id, e := range m.screens {
		if e.s != nil && e.s.Idle(now, m.idleTimeout) {
			idle = append(idle, e.s)
			delete(m.screens, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		if err := m.closeScreen(s); err != nil {
			m.logger.Error("close idle screen", zap.String("uid", s.UserID()), zap.Error(err))
		}
	}
	return len(idle)
}

// Run calls EvictIdle every interval until ctx is done. It returns at once
// when eviction is disabled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.idleTimeout <= 0 {
		return
	}
	clock := m.template.Clock
	if clock == nil {
		clock = timer.RealClock{}
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if n := m.EvictIdle(); n > 0 {
				m.logger.Info("evicted idle screens", zap.Int("count", n), zap.Int("open", m.Len()))
			}
		}
	}
}

// HandleAuthState opens a screen on sign-in and closes it on sign-out.
// It is meant to be registered with identity.Session.OnAuthStateChange.
func (m *Manager) HandleAuthState(st identity.AuthState) {
	if st.SignedIn {
		if _, err := m.Open(st.UserID); err != nil {
			m.logger.Error("open screen", zap.String("uid", st.UserID), zap.Error(err))
		}
		return
	}
	if err := m.Close(st.UserID); err != nil {
		m.logger.Error("close screen", zap.String("uid", st.UserID), zap.Error(err))
	}
}

func (m *Manager) closeScreen(s *Screen) error {
	err := s.Close()
	if m.template.Metrics != nil {
		m.template.Metrics.GaugeScreens.Dec()
	}
	m.logger.Info("screen closed", zap.String("uid", s.UserID()))
	return err
}
