package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spigell/interview-conductor/internal/interview"
)

func records(means ...float64) []interview.EvaluationRecord {
	out := make([]interview.EvaluationRecord, len(means))
	for i, m := range means {
		out[i] = interview.EvaluationRecord{
			TurnIndex:       i + 1,
			TopicID:         "01-go",
			DimensionScores: uniform(m),
			Confidence:      interview.ConfidenceMedium,
			Timestamp:       at,
			WordCount:       10 * (i + 1),
		}
	}
	return out
}

func TestTrend(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		name   string
		means  []float64
		expect interview.Trend
	}{
		{name: "empty", expect: interview.TrendStable},
		{name: "single", means: []float64{9}, expect: interview.TrendStable},
		{name: "pair improving", means: []float64{3, 6}, expect: interview.TrendImproving},
		{name: "full windows improving", means: []float64{4, 4, 4, 7, 7, 7}, expect: interview.TrendImproving},
		{name: "full windows declining", means: []float64{1, 8, 8, 8, 5, 5, 5}, expect: interview.TrendDeclining},
		{name: "small movement", means: []float64{5, 5.2, 5.1, 5.4}, expect: interview.TrendStable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, Trend(p, records(tc.means...)))
		})
	}
}

func TestAggregateStrengthsAndWeaknesses(t *testing.T) {
	evals := records(5, 5)
	for i := range evals {
		evals[i].DimensionScores[interview.DimensionTechnical] = 9
		evals[i].DimensionScores[interview.DimensionClarity] = 2
	}
	evals[1].Hedges = 2
	evals[1].TermDensity = 0.1

	got := Aggregate(DefaultPolicy(), evals)

	assert.Equal(t, 2, got.Count)
	assert.InDelta(t, 31.0/6.0, got.Overall, 1e-9)
	assert.Equal(t, []interview.Dimension{interview.DimensionTechnical}, got.Strengths)
	assert.Equal(t, []interview.Dimension{interview.DimensionClarity}, got.Weaknesses)
	assert.InDelta(t, 9.0, got.DimensionMeans[interview.DimensionTechnical], 1e-9)
	assert.InDelta(t, 15.0, got.Patterns.AverageWords, 1e-9)
	assert.InDelta(t, 0.05, got.Patterns.AverageTermDensity, 1e-9)
	assert.InDelta(t, 0.5, got.Patterns.HedgeRate, 1e-9)
}

func TestAggregateIsPure(t *testing.T) {
	e := newEvaluator(t, nil)
	evals := records(4, 6, 8, 7)

	first := e.Aggregate(evals)
	second := e.Aggregate(evals)

	assert.Equal(t, first, second)
	assert.Equal(t, records(4, 6, 8, 7), evals)
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(DefaultPolicy(), nil)
	assert.Zero(t, got.Count)
	assert.Equal(t, interview.TrendStable, got.Trend)
	assert.Empty(t, got.Strengths)
}
