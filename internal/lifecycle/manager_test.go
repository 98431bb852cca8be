package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/interview-conductor/internal/interview"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeSession struct {
	mu       sync.Mutex
	version  int
	activity time.Time
}

func (f *fakeSession) ID() string { return "s-1" }

func (f *fakeSession) Version() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

func (f *fakeSession) LastActivity() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activity
}

func (f *fakeSession) Snapshot() *interview.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &interview.Session{ID: "s-1", Version: f.version, LastActivityAt: f.activity}
}

func (f *fakeSession) bump(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	f.activity = at
}

type fakeCheckpoints struct {
	mu       sync.Mutex
	saved    []int
	archived []string
	err      error
}

func (f *fakeCheckpoints) Save(_ context.Context, s *interview.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, s.Version)
	return nil
}

func (f *fakeCheckpoints) Archive(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, id)
	return nil
}

func (f *fakeCheckpoints) saves() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.saved...)
}

type harness struct {
	m       *Manager
	sess    *fakeSession
	cps     *fakeCheckpoints
	signals []State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{sess: &fakeSession{version: 1, activity: t0}, cps: &fakeCheckpoints{}}

	m, err := New(h.sess, h.cps, DefaultPolicy(), zaptest.NewLogger(t))
	require.NoError(t, err)
	m.OnSignal(func(s Signal) { h.signals = append(h.signals, s.State) })
	h.m = m
	return h
}

func TestInactivityWarningsThenExpiry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.m.Start(t0))

	for at := t0; !at.After(t0.Add(16 * time.Minute)); at = at.Add(10 * time.Second) {
		require.NoError(t, h.m.Tick(ctx, at))
		switch {
		case at.Before(t0.Add(10 * time.Minute)):
			require.Equal(t, StateActive, h.m.State(), at.Sub(t0))
		case at.Before(t0.Add(13 * time.Minute)):
			require.Equal(t, StateWarning5, h.m.State(), at.Sub(t0))
		case at.Before(t0.Add(14 * time.Minute)):
			require.Equal(t, StateWarning2, h.m.State(), at.Sub(t0))
		case at.Before(t0.Add(15 * time.Minute)):
			require.Equal(t, StateWarning1, h.m.State(), at.Sub(t0))
		default:
			require.Equal(t, StateExpired, h.m.State(), at.Sub(t0))
		}
	}

	assert.Equal(t, []State{StateWarning5, StateWarning2, StateWarning1, StateExpired}, h.signals)
	assert.ErrorIs(t, h.m.Accepting(), interview.ErrSessionExpired)
	assert.ErrorIs(t, h.m.Touch(t0.Add(17*time.Minute)), interview.ErrSessionExpired)

	// One autosave for the unsaved session, then the forced final checkpoint.
	assert.Equal(t, []int{1, 1}, h.cps.saves())
}

func TestSkippedTicksStillWarnInOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.m.Start(t0))

	require.NoError(t, h.m.Tick(ctx, t0.Add(time.Minute)))
	require.NoError(t, h.m.Tick(ctx, t0.Add(20*time.Minute)))
	require.NoError(t, h.m.Tick(ctx, t0.Add(21*time.Minute)))

	assert.Equal(t, []State{StateWarning5, StateWarning2, StateWarning1, StateExpired}, h.signals)
	assert.Equal(t, StateExpired, h.m.State())
}

func TestActivityClearsWarnings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.m.Start(t0))

	require.NoError(t, h.m.Tick(ctx, t0.Add(11*time.Minute)))
	require.Equal(t, StateWarning5, h.m.State())

	// A response recorded in the store is picked up on the next tick.
	h.sess.bump(t0.Add(12 * time.Minute))
	require.NoError(t, h.m.Tick(ctx, t0.Add(12*time.Minute+time.Second)))
	assert.Equal(t, StateActive, h.m.State())

	require.NoError(t, h.m.Tick(ctx, t0.Add(22*time.Minute)))
	assert.Equal(t, StateWarning5, h.m.State())

	// An explicit touch resets the countdown too.
	require.NoError(t, h.m.Touch(t0.Add(22*time.Minute)))
	assert.Equal(t, StateActive, h.m.State())
	require.NoError(t, h.m.Tick(ctx, t0.Add(36*time.Minute)))
	assert.Equal(t, StateWarning1, h.m.State())

	assert.Equal(t, []State{StateWarning5, StateWarning5, StateWarning5, StateWarning2, StateWarning1}, h.signals)
}

func TestAutosaveOnlyWhenDirty(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.m.Start(t0))

	require.NoError(t, h.m.Tick(ctx, t0.Add(10*time.Second)))
	assert.Empty(t, h.cps.saves(), "no save before the interval")

	require.NoError(t, h.m.Tick(ctx, t0.Add(30*time.Second)))
	assert.Equal(t, []int{1}, h.cps.saves())

	require.NoError(t, h.m.Tick(ctx, t0.Add(60*time.Second)))
	assert.Equal(t, []int{1}, h.cps.saves(), "clean session is not saved again")

	h.sess.bump(t0.Add(70 * time.Second))
	require.NoError(t, h.m.Tick(ctx, t0.Add(80*time.Second)))
	assert.Equal(t, []int{1}, h.cps.saves())
	require.NoError(t, h.m.Tick(ctx, t0.Add(90*time.Second)))
	assert.Equal(t, []int{1, 2}, h.cps.saves())
}

func TestAutosaveFailureIsRetriedNextInterval(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.m.Start(t0))

	h.cps.err = errors.New("disk full")
	require.Error(t, h.m.Tick(ctx, t0.Add(30*time.Second)))

	h.cps.err = nil
	require.NoError(t, h.m.Tick(ctx, t0.Add(60*time.Second)))
	assert.Equal(t, []int{1}, h.cps.saves())
}

func TestResumeAfterExpiry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.m.Start(t0))
	require.NoError(t, h.m.Tick(ctx, t0.Add(15*time.Minute)))
	require.Equal(t, StateExpired, h.m.State())
	saves := len(h.cps.saves())

	resumedAt := t0.Add(time.Hour)
	require.NoError(t, h.m.Resume(resumedAt))
	assert.Equal(t, StateActive, h.m.State())
	assert.NoError(t, h.m.Accepting())
	assert.Equal(t, 1, h.sess.Version(), "resume does not mutate the session")

	// Inactivity is measured from the resume, and the loaded version counts as saved.
	require.NoError(t, h.m.Tick(ctx, resumedAt.Add(9*time.Minute)))
	assert.Equal(t, StateActive, h.m.State())
	assert.Len(t, h.cps.saves(), saves)
}

func TestCompleteArchives(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.m.Start(t0))

	require.NoError(t, h.m.Complete(ctx, t0.Add(time.Minute)))
	assert.Equal(t, StateCompleted, h.m.State())
	assert.Equal(t, []string{"s-1"}, h.cps.archived)
	assert.ErrorIs(t, h.m.Accepting(), interview.ErrSessionClosed)

	// Timers stop once completed.
	require.NoError(t, h.m.Tick(ctx, t0.Add(time.Hour)))
	assert.Empty(t, h.signals)

	require.NoError(t, h.m.Complete(ctx, t0.Add(time.Hour)))
	assert.Len(t, h.cps.archived, 1)
}

func TestSuspendSavesAndStopsTimers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.m.Start(t0))

	require.NoError(t, h.m.Suspend(ctx, t0.Add(time.Minute), errors.New("two active topics")))
	assert.Equal(t, StateSuspended, h.m.State())
	assert.Equal(t, []int{1}, h.cps.saves())
	assert.ErrorIs(t, h.m.Accepting(), interview.ErrSessionClosed)

	require.NoError(t, h.m.Resume(t0.Add(2*time.Minute)))
	assert.Equal(t, StateActive, h.m.State())
}

func TestStartTwiceFails(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.Start(t0))
	assert.Error(t, h.m.Start(t0))
	assert.Error(t, h.m.Resume(t0))
}

func TestRunStopsWhenExpired(t *testing.T) {
	sess := &fakeSession{version: 1, activity: time.Now().Add(-time.Hour)}
	policy := DefaultPolicy()
	policy.Tick = time.Millisecond

	m, err := New(sess, &fakeCheckpoints{}, policy, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Resume(time.Now().Add(-time.Hour)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, m.Run(ctx))
	assert.Equal(t, StateExpired, m.State())
	assert.NoError(t, ctx.Err())
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.InactivityTimeout = 3 * time.Minute
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.AutosaveInterval = 0
	assert.Error(t, p.Validate())
}
