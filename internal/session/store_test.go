package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/interview-conductor/internal/interview"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func fixture() *interview.Session {
	return &interview.Session{
		ID:             "sess-1",
		Phase:          interview.PhaseIntroduction,
		StartedAt:      t0,
		LastActivityAt: t0,
		BudgetSeconds:  1800,
		Job:            interview.JobProfile{Title: "SRE", RequiredSkills: []interview.SkillTag{"Go"}},
		Candidate:      interview.CandidateProfile{Name: "Sam", ClaimedSkills: []interview.SkillTag{"Go"}},
		Topics: []interview.Topic{
			{ID: "01-go", Skill: "Go", Category: interview.CategoryTechnical, Importance: 0.8, EstimatedSeconds: 900, Depth: interview.DepthSurface, Status: interview.StatusActive},
			{ID: "02-k8s", Skill: "Kubernetes", Category: interview.CategoryTechnical, Importance: 1, EstimatedSeconds: 900, Depth: interview.DepthSurface, Status: interview.StatusPending},
		},
	}
}

func TestNewStoreRejectsBrokenSession(t *testing.T) {
	s := fixture()
	s.Topics[1].Status = interview.StatusActive

	_, err := NewStore(s)
	var violation *interview.InvariantViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "single-active-topic", violation.Rule)
}

func TestStoreAppendQuestionAndResponse(t *testing.T) {
	st, err := NewStore(fixture())
	require.NoError(t, err)

	require.NoError(t, st.AppendQuestion(interview.Question{TopicID: "01-go", Text: "What is a goroutine?", AskedAt: t0}))
	assert.Equal(t, 1, st.Version())

	err = st.AppendQuestion(interview.Question{TopicID: "01-go", Text: "again", AskedAt: t0})
	require.ErrorIs(t, err, interview.ErrQuestionOutstanding)
	assert.Equal(t, 1, st.Version())

	answered := t0.Add(time.Minute)
	require.NoError(t, st.AppendResponse(interview.Response{Text: "A lightweight thread.", At: answered}))
	assert.Equal(t, 2, st.Version())
	assert.Equal(t, answered, st.LastActivity())

	err = st.AppendResponse(interview.Response{Text: "extra", At: answered})
	require.ErrorIs(t, err, interview.ErrNoOutstandingQuestion)
}

func TestStoreMutateIsAtomic(t *testing.T) {
	st, err := NewStore(fixture())
	require.NoError(t, err)

	err = st.Mutate(func(s *interview.Session) error {
		s.Phase = interview.PhaseTechnical
		s.Topics[1].Status = interview.StatusActive
		return nil
	})
	var violation *interview.InvariantViolation
	require.True(t, errors.As(err, &violation))

	assert.Equal(t, interview.PhaseIntroduction, st.Phase())
	assert.Equal(t, 0, st.Version())

	boom := errors.New("boom")
	err = st.Mutate(func(s *interview.Session) error {
		s.Phase = interview.PhaseTechnical
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, interview.PhaseIntroduction, st.Phase())
}

func TestStoreRejectsDepthRegression(t *testing.T) {
	s := fixture()
	s.Topics[0].Depth = interview.DepthMedium
	st, err := NewStore(s)
	require.NoError(t, err)

	err = st.Mutate(func(s *interview.Session) error {
		s.Topics[0].Depth = interview.DepthSurface
		return nil
	})
	var violation *interview.InvariantViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "depth-monotonic", violation.Rule)
}

func TestSnapshotIsIsolated(t *testing.T) {
	st, err := NewStore(fixture())
	require.NoError(t, err)

	snap := st.Snapshot()
	snap.Topics[0].CoverageScore = 0.9
	snap.Phase = interview.PhaseCompleted

	again := st.Snapshot()
	assert.Zero(t, again.Topics[0].CoverageScore)
	assert.Equal(t, interview.PhaseIntroduction, again.Phase)
}

func TestStoreConcurrentReadersSeeConsistentState(t *testing.T) {
	st, err := NewStore(fixture())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			at := t0.Add(time.Duration(i) * time.Second)
			if err := st.AppendQuestion(interview.Question{TopicID: "01-go", Text: "q", AskedAt: at}); err != nil {
				t.Errorf("append question: %v", err)
				return
			}
			if err := st.AppendResponse(interview.Response{Text: "a", At: at}); err != nil {
				t.Errorf("append response: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		snap := st.Snapshot()
		delta := len(snap.Questions) - len(snap.Responses)
		assert.Contains(t, []int{0, 1}, delta)
	}
	wg.Wait()

	assert.Equal(t, 100, st.Version())
}

func TestSetPhaseAndTouch(t *testing.T) {
	st, err := NewStore(fixture())
	require.NoError(t, err)

	require.NoError(t, st.SetPhase(interview.PhaseTechnical))
	later := t0.Add(5 * time.Minute)
	require.NoError(t, st.Touch(later))

	assert.Equal(t, interview.PhaseTechnical, st.Phase())
	assert.Equal(t, later, st.LastActivity())
	assert.Equal(t, "sess-1", st.ID())

	require.Error(t, st.SetPhase(interview.Phase("lunch")))
}
