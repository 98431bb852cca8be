// Package lifecycle drives autosave, staged inactivity warnings, expiry and
// resume for one session.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/interview"
	"github.com/spigell/interview-conductor/internal/logger"
)

// State is the lifecycle state of a session.
type State string

const (
	StateIdle      State = "idle"
	StateActive    State = "active"
	StateWarning5  State = "warning_5"
	StateWarning2  State = "warning_2"
	StateWarning1  State = "warning_1"
	StateExpired   State = "expired"
	StateCompleted State = "completed"
	StateSuspended State = "suspended"
)

// Running reports whether timers apply in this state.
func (s State) Running() bool {
	switch s {
	case StateActive, StateWarning5, StateWarning2, StateWarning1:
		return true
	}
	return false
}

// Signal is emitted on every inactivity warning and on expiry.
type Signal struct {
	State     State
	At        time.Time
	Remaining time.Duration
}

type sessionSource interface {
	ID() string
	Version() int
	LastActivity() time.Time
	Snapshot() *interview.Session
}

type checkpointer interface {
	Save(ctx context.Context, s *interview.Session) error
	Archive(ctx context.Context, sessionID string) error
}

// Manager only reads the session through its store; it never mutates it.
type Manager struct {
	mu sync.Mutex

	policy      Policy
	session     sessionSource
	checkpoints checkpointer
	logger      *zap.Logger
	onSignal    func(Signal)

	state        State
	savedVersion int
	lastSave     time.Time
	activity     time.Time
	warned       int
}

// New creates an idle manager.
func New(session sessionSource, checkpoints checkpointer, policy Policy, log *zap.Logger) (*Manager, error) {
	if session == nil || checkpoints == nil {
		return nil, fmt.Errorf("session and checkpoint store are required")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lifecycle policy: %w", err)
	}
	return &Manager{
		policy:       policy,
		session:      session,
		checkpoints:  checkpoints,
		logger:       logger.ForSession(log, session.ID()),
		state:        StateIdle,
		savedVersion: -1,
	}, nil
}

// OnSignal registers fn to receive warnings and expiry. fn is called without
// the manager lock held and must not block for long.
func (m *Manager) OnSignal(fn func(Signal)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSignal = fn
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Policy returns the configured policy.
func (m *Manager) Policy() Policy { return m.policy }

// Accepting returns nil when the session may process a response.
func (m *Manager) Accepting() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accepting()
}

func (m *Manager) accepting() error {
	switch m.state {
	case StateExpired:
		return interview.ErrSessionExpired
	case StateCompleted, StateSuspended, StateIdle:
		return fmt.Errorf("%w (%s)", interview.ErrSessionClosed, m.state)
	}
	return nil
}

// Start activates a new session. Nothing has been persisted yet, so the
// first autosave writes a checkpoint.
func (m *Manager) Start(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return fmt.Errorf("cannot start session in state %s", m.state)
	}
	m.activity = now
	m.lastSave = now
	m.transition(StateActive)
	return nil
}

// Resume activates a session loaded from a checkpoint. The session itself
// is left untouched; inactivity is measured from now until the next activity.
func (m *Manager) Resume(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateIdle, StateExpired:
		m.transition(StateSuspended)
	case StateSuspended:
	default:
		return fmt.Errorf("cannot resume session in state %s", m.state)
	}

	m.activity = now
	m.lastSave = now
	m.savedVersion = m.session.Version()
	m.warned = 0
	m.transition(StateActive)
	return nil
}

// Touch records activity, clearing any pending warning.
func (m *Manager) Touch(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.accepting(); err != nil {
		return err
	}
	if now.After(m.activity) {
		m.activity = now
	}
	m.warned = 0
	if m.state != StateActive {
		m.transition(StateActive)
	}
	return nil
}

// Save persists a checkpoint unconditionally.
func (m *Manager) Save(ctx context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(ctx, now, "explicit")
}

// Complete persists the final checkpoint and archives it.
func (m *Manager) Complete(ctx context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateCompleted {
		return nil
	}
	m.transition(StateCompleted)

	if err := m.save(ctx, now, "final"); err != nil {
		return err
	}
	if err := m.checkpoints.Archive(ctx, m.session.ID()); err != nil {
		return fmt.Errorf("archive checkpoint: %w", err)
	}
	m.logger.Info("session archived")
	return nil
}

// Suspend stops the timers and persists the current state. The session can
// only continue through Resume.
func (m *Manager) Suspend(ctx context.Context, now time.Time, reason error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateCompleted {
		return fmt.Errorf("cannot suspend completed session")
	}
	m.logger.Warn("suspending session", zap.Error(reason))
	m.transition(StateSuspended)
	return m.save(ctx, now, "suspend")
}

// Tick evaluates the timers at now: overdue warnings fire in order, each at
// most once, before expiry; a dirty session is autosaved on the interval.
func (m *Manager) Tick(ctx context.Context, now time.Time) error {
	signals, err := m.tick(ctx, now)
	m.deliver(signals)
	return err
}

func (m *Manager) tick(ctx context.Context, now time.Time) ([]Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Running() {
		return nil, nil
	}

	if last := m.session.LastActivity(); last.After(m.activity) {
		m.activity = last
		if m.warned > 0 {
			m.warned = 0
			m.transition(StateActive)
		}
	}

	idle := now.Sub(m.activity)
	deadline := m.policy.InactivityTimeout

	var signals []Signal
	for m.warned < len(stages) && idle >= deadline-stages[m.warned].remaining {
		st := stages[m.warned]
		m.warned++
		m.transition(st.state)
		signals = append(signals, Signal{State: st.state, At: now, Remaining: st.remaining})
	}

	if idle >= deadline {
		m.transition(StateExpired)
		signals = append(signals, Signal{State: StateExpired, At: now})
		if err := m.save(ctx, now, "expiry"); err != nil {
			return signals, err
		}
		return signals, nil
	}

	if now.Sub(m.lastSave) >= m.policy.AutosaveInterval {
		m.lastSave = now
		if m.session.Version() != m.savedVersion {
			if err := m.save(ctx, now, "autosave"); err != nil {
				return signals, err
			}
		}
	}

	return signals, nil
}

func (m *Manager) save(ctx context.Context, now time.Time, reason string) error {
	snap := m.session.Snapshot()
	if err := m.checkpoints.Save(ctx, snap); err != nil {
		m.logger.Error("checkpoint failed", zap.String("reason", reason), zap.Error(err))
		return fmt.Errorf("save checkpoint: %w", err)
	}
	m.savedVersion = snap.Version
	m.lastSave = now
	m.logger.Debug("checkpoint saved", zap.String("reason", reason), zap.Int("version", snap.Version))
	return nil
}

func (m *Manager) transition(to State) {
	if m.state == to {
		return
	}
	m.logger.Info("lifecycle transition", zap.String("from", string(m.state)), zap.String("to", string(to)))
	m.state = to
}

func (m *Manager) deliver(signals []Signal) {
	if len(signals) == 0 {
		return
	}
	m.mu.Lock()
	fn := m.onSignal
	m.mu.Unlock()

	for _, s := range signals {
		m.logger.Info("inactivity signal", zap.String("state", string(s.State)), zap.Duration("remaining", s.Remaining))
		if fn != nil {
			fn(s)
		}
	}
}

// Run ticks on the policy interval until ctx is done or the session leaves
// the running states.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.policy.Tick)
	defer ticker.Stop()

	m.logger.Debug("lifecycle worker started", zap.Duration("tick", m.policy.Tick))

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("lifecycle worker stopped")
			return nil
		case now := <-ticker.C:
			if err := m.Tick(ctx, now); err != nil {
				m.logger.Error("lifecycle tick failed", zap.Error(err))
			}
			if !m.State().Running() {
				return nil
			}
		}
	}
}
