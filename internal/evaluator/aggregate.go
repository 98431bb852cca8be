package evaluator

import (
	"github.com/spigell/interview-conductor/internal/interview"
)

// Aggregate derives the assessment from the evaluation sequence. It reads
// nothing but its argument and the policy, so repeated calls on the same
// records return equal values.
func (e *Evaluator) Aggregate(evals []interview.EvaluationRecord) interview.AggregateAssessment {
	return Aggregate(e.policy, evals)
}

// Aggregate is the stateless form of Evaluator.Aggregate.
func Aggregate(policy Policy, evals []interview.EvaluationRecord) interview.AggregateAssessment {
	out := interview.AggregateAssessment{
		Count: len(evals),
		Trend: Trend(policy, evals),
	}
	if len(evals) == 0 {
		return out
	}

	out.DimensionMeans = make(map[interview.Dimension]float64, len(interview.Dimensions))
	for _, d := range interview.Dimensions {
		var sum float64
		for _, rec := range evals {
			sum += rec.DimensionScores[d]
		}
		out.DimensionMeans[d] = sum / float64(len(evals))
	}

	for _, d := range interview.Dimensions {
		out.Overall += out.DimensionMeans[d]
	}
	out.Overall /= float64(len(interview.Dimensions))

	for _, d := range interview.Dimensions {
		switch mean := out.DimensionMeans[d]; {
		case mean >= out.Overall+policy.StrengthMargin:
			out.Strengths = append(out.Strengths, d)
		case mean <= out.Overall-policy.StrengthMargin:
			out.Weaknesses = append(out.Weaknesses, d)
		}
	}

	var words, density float64
	hedged := 0
	for _, rec := range evals {
		words += float64(rec.WordCount)
		density += rec.TermDensity
		if rec.Hedges > 0 {
			hedged++
		}
	}
	n := float64(len(evals))
	out.Patterns = interview.ResponsePatterns{
		AverageWords:       words / n,
		AverageTermDensity: density / n,
		HedgeRate:          float64(hedged) / n,
	}

	return out
}

// Trend compares the mean score of the most recent window of records with the
// window before it. The window shrinks to half the records when fewer than
// two full windows exist; with fewer than two records the trend is stable.
func Trend(policy Policy, evals []interview.EvaluationRecord) interview.Trend {
	n := len(evals)
	if n < 2 {
		return interview.TrendStable
	}

	window := policy.TrendWindow
	if half := n / 2; window > half {
		window = half
	}

	recent := meanOf(evals[n-window:])
	prior := meanOf(evals[n-2*window : n-window])

	switch delta := recent - prior; {
	case delta > policy.TrendDelta:
		return interview.TrendImproving
	case delta < -policy.TrendDelta:
		return interview.TrendDeclining
	default:
		return interview.TrendStable
	}
}

func meanOf(evals []interview.EvaluationRecord) float64 {
	var sum float64
	for _, rec := range evals {
		sum += rec.Mean()
	}
	return sum / float64(len(evals))
}
