package evaluator

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/interview-conductor/internal/ai"
	"github.com/spigell/interview-conductor/internal/interview"
)

type fakeScorer struct {
	results []map[interview.Dimension]float64
	errs    []error
	calls   int
}

func (f *fakeScorer) ScoreResponse(ctx context.Context, _ ai.RubricRequest) (map[interview.Dimension]float64, error) {
	i := f.calls
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return f.results[len(f.results)-1], nil
}

func uniform(score float64) map[interview.Dimension]float64 {
	out := make(map[interview.Dimension]float64, len(interview.Dimensions))
	for _, d := range interview.Dimensions {
		out[d] = score
	}
	return out
}

var (
	goTopic = interview.Topic{ID: "01-go", Skill: "Go", Category: interview.CategoryTechnical, Depth: interview.DepthSurface, Status: interview.StatusActive}
	goJob   = &interview.JobProfile{Title: "Backend Engineer", RequiredSkills: []interview.SkillTag{"Go"}}
	at      = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

const longAnswer = "I built a Go service that handled high concurrency for payments. First we measured latency " +
	"under load, then we found the database was the bottleneck because every request opened a new connection. " +
	"We added a cache in front of the hot queries and tuned the connection pool, which cut p99 latency by half. " +
	"Finally we wrote load testing scripts so the performance budget is checked in CI before every deployment to production."

func newEvaluator(t *testing.T, scorer ai.RubricScorer) *Evaluator {
	t.Helper()
	e, err := New(DefaultPolicy(), scorer, nil)
	require.NoError(t, err)
	return e
}

func score(t *testing.T, e *Evaluator, text string) interview.EvaluationRecord {
	t.Helper()
	rec, err := e.Score(context.Background(), Request{TurnIndex: 1, Response: text, Topic: goTopic, Job: goJob, At: at})
	require.NoError(t, err)
	return rec
}

func TestShortResponseIsClampedAndLowConfidence(t *testing.T) {
	e := newEvaluator(t, &fakeScorer{results: []map[interview.Dimension]float64{uniform(9)}})

	rec := score(t, e, "I know Python really very well, trust me.")

	assert.Equal(t, 8, rec.WordCount)
	assert.LessOrEqual(t, rec.DimensionScores[interview.DimensionDepth], 6.0)
	assert.LessOrEqual(t, rec.DimensionScores[interview.DimensionTechnical], 7.0)
	assert.Equal(t, 9.0, rec.DimensionScores[interview.DimensionClarity])
	assert.Equal(t, interview.ConfidenceLow, rec.Confidence)
	assert.Equal(t, SourceRubric, rec.Source)
	assert.Equal(t, "01-go", rec.TopicID)
	assert.Equal(t, at, rec.Timestamp)
}

func TestLongTermRichResponseIsHighConfidence(t *testing.T) {
	e := newEvaluator(t, &fakeScorer{results: []map[interview.Dimension]float64{uniform(9)}})

	rec := score(t, e, longAnswer)

	assert.Greater(t, rec.WordCount, 50)
	assert.GreaterOrEqual(t, rec.TermDensity, 0.05)
	assert.Equal(t, interview.ConfidenceHigh, rec.Confidence)
	assert.Equal(t, 9.0, rec.DimensionScores[interview.DimensionDepth])
	assert.Zero(t, rec.Hedges)
}

func TestHedgingLowersConfidence(t *testing.T) {
	e := newEvaluator(t, &fakeScorer{results: []map[interview.Dimension]float64{uniform(7)}})

	rec := score(t, e, "I think maybe we used Go concurrency and a cache for latency, but I am not sure about "+
		"the database details or how the deployment pipeline was set up back then honestly.")

	assert.Equal(t, 3, rec.Hedges)
	assert.Equal(t, interview.ConfidenceMedium, rec.Confidence)
	assert.LessOrEqual(t, rec.DimensionScores[interview.DimensionDepth], 8.0)
}

func TestScoresAreFilledAndClamped(t *testing.T) {
	raw := map[interview.Dimension]float64{
		interview.DimensionTechnical:     14,
		interview.DimensionCommunication: -3,
		interview.DimensionRelevance:     math.NaN(),
	}
	e := newEvaluator(t, &fakeScorer{results: []map[interview.Dimension]float64{raw}})

	rec := score(t, e, longAnswer)

	require.Len(t, rec.DimensionScores, len(interview.Dimensions))
	assert.Equal(t, 10.0, rec.DimensionScores[interview.DimensionTechnical])
	assert.Equal(t, 0.0, rec.DimensionScores[interview.DimensionCommunication])
	assert.Equal(t, 5.0, rec.DimensionScores[interview.DimensionRelevance])
	assert.Equal(t, 5.0, rec.DimensionScores[interview.DimensionClarity])
}

func TestRubricFailureFallsBackToHeuristic(t *testing.T) {
	boom := errors.New("upstream unavailable")
	scorer := &fakeScorer{errs: []error{boom, boom}, results: []map[interview.Dimension]float64{uniform(9)}}
	e := newEvaluator(t, scorer)

	rec := score(t, e, longAnswer)

	assert.Equal(t, 2, scorer.calls)
	assert.Equal(t, SourceHeuristic, rec.Source)
	for _, d := range interview.Dimensions {
		v := rec.DimensionScores[d]
		assert.True(t, v >= 0 && v <= 10, "%s=%v", d, v)
	}
	assert.Greater(t, rec.DimensionScores[interview.DimensionClarity], 5.0)
}

func TestRubricRetrySucceeds(t *testing.T) {
	scorer := &fakeScorer{errs: []error{errors.New("flaky")}, results: []map[interview.Dimension]float64{nil, uniform(6)}}
	e := newEvaluator(t, scorer)

	rec := score(t, e, longAnswer)

	assert.Equal(t, 2, scorer.calls)
	assert.Equal(t, SourceRubric, rec.Source)
	assert.InDelta(t, 6.0, rec.Mean(), 1e-9)
}

func TestScoreHonoursCancellation(t *testing.T) {
	e := newEvaluator(t, &fakeScorer{results: []map[interview.Dimension]float64{uniform(9)}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Score(ctx, Request{TurnIndex: 1, Response: longAnswer, Topic: goTopic, Job: goJob, At: at})
	require.ErrorIs(t, err, context.Canceled)
}

func TestHeuristicScoresEmptyResponseAsZero(t *testing.T) {
	e := newEvaluator(t, nil)

	rec := score(t, e, "   ")

	assert.Equal(t, SourceHeuristic, rec.Source)
	assert.Zero(t, rec.Mean())
	assert.Equal(t, interview.ConfidenceLow, rec.Confidence)
}

func TestPolicyValidate(t *testing.T) {
	p := DefaultPolicy()
	p.LongWords = 5
	_, err := New(p, nil, nil)
	require.Error(t, err)

	p = DefaultPolicy()
	p.RubricAttempts = 0
	require.Error(t, p.Validate())
}
