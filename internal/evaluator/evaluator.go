// Package evaluator scores candidate responses. Dimension scoring is
// delegated to a rubric scorer, while the length policy, confidence signal and
// aggregate trends are computed locally.
package evaluator

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/ai"
	"github.com/spigell/interview-conductor/internal/interview"
	"github.com/spigell/interview-conductor/internal/utils"
)

const (
	maxScore = 10.0

	SourceRubric    = "rubric"
	SourceHeuristic = "heuristic"
)

type lengthBucket int

const (
	bucketShort lengthBucket = iota
	bucketMedium
	bucketLong
)

func (b lengthBucket) String() string {
	switch b {
	case bucketShort:
		return "short"
	case bucketMedium:
		return "medium"
	default:
		return "long"
	}
}

// Evaluator owns the scoring policy. It holds no per-session state.
type Evaluator struct {
	policy Policy
	scorer ai.RubricScorer
	logger *zap.Logger
}

// New creates an evaluator. A nil scorer makes every score heuristic.
func New(policy Policy, scorer ai.RubricScorer, logger *zap.Logger) (*Evaluator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{policy: policy, scorer: scorer, logger: logger}, nil
}

// Policy returns the thresholds in use.
func (e *Evaluator) Policy() Policy { return e.policy }

// Request is one response to score.
type Request struct {
	TurnIndex int
	Question  string
	Response  string
	Topic     interview.Topic
	Job       *interview.JobProfile
	At        time.Time
}

// Score produces the evaluation record of one response. Rubric failures are
// retried and then replaced by heuristic scoring, so the only errors returned
// are cancellation of ctx.
func (e *Evaluator) Score(ctx context.Context, req Request) (interview.EvaluationRecord, error) {
	tokens := utils.Tokens(req.Response)
	words := utils.WordCount(req.Response)
	bucket := e.bucket(words)

	terms := topicTerms(req.Topic, req.Job)
	density := 0.0
	if len(tokens) > 0 {
		density = float64(countTerms(tokens, terms)) / float64(len(tokens))
	}
	hedges := countHedges(req.Response)

	raw, source, err := e.rawScores(ctx, req, tokens, words, terms)
	if err != nil {
		return interview.EvaluationRecord{}, err
	}

	scores, clamped := e.reconcile(raw, bucket)
	confidence := e.confidence(bucket, density, hedges)

	rec := interview.EvaluationRecord{
		TurnIndex:       req.TurnIndex,
		TopicID:         req.Topic.ID,
		DimensionScores: scores,
		Confidence:      confidence,
		Timestamp:       req.At,
		WordCount:       words,
		TermDensity:     density,
		Hedges:          hedges,
		Source:          source,
	}

	e.logger.Debug("scored response",
		zap.Int("turn", req.TurnIndex),
		zap.String("topic_id", req.Topic.ID),
		zap.String("source", source),
		zap.String("length_bucket", bucket.String()),
		zap.Int("words", words),
		zap.Float64("term_density", density),
		zap.Int("hedges", hedges),
		zap.Float64("mean", rec.Mean()),
		zap.String("confidence", string(confidence)),
		zap.Strings("clamped", clamped),
	)

	return rec, nil
}

func (e *Evaluator) rawScores(ctx context.Context, req Request, tokens []string, words int, terms []string) (map[interview.Dimension]float64, string, error) {
	if e.scorer == nil {
		return e.heuristicScores(tokens, words, terms), SourceHeuristic, nil
	}

	rubric := ai.RubricRequest{
		Question:     req.Question,
		ResponseText: req.Response,
		Topic:        req.Topic,
		Job:          req.Job,
	}

	var lastErr error
	for attempt := 1; attempt <= e.policy.RubricAttempts; attempt++ {
		scores, err := e.scorer.ScoreResponse(ctx, rubric)
		if err == nil {
			return scores, SourceRubric, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", fmt.Errorf("scoring response: %w", ctxErr)
		}
		lastErr = err
		e.logger.Warn("rubric scoring failed",
			zap.Int("turn", req.TurnIndex),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	failure := &interview.GenerationFailure{Op: "rubric scoring", Attempts: e.policy.RubricAttempts, Cause: lastErr}
	e.logger.Warn("falling back to heuristic scoring", zap.Int("turn", req.TurnIndex), zap.Error(failure))

	return e.heuristicScores(tokens, words, terms), SourceHeuristic, nil
}

// reconcile fills missing dimensions with the neutral score, clamps every
// score into [0,10] and applies the length caps. It reports which dimensions
// were lowered by a cap.
func (e *Evaluator) reconcile(raw map[interview.Dimension]float64, bucket lengthBucket) (map[interview.Dimension]float64, []string) {
	scores := make(map[interview.Dimension]float64, len(interview.Dimensions))
	var clamped []string

	for _, d := range interview.Dimensions {
		v, ok := raw[d]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			v = e.policy.NeutralScore
		}
		v = math.Max(0, math.Min(maxScore, v))

		if limit, capped := e.lengthCap(d, bucket); capped && v > limit {
			v = limit
			clamped = append(clamped, string(d))
		}
		scores[d] = v
	}

	return scores, clamped
}

func (e *Evaluator) lengthCap(d interview.Dimension, bucket lengthBucket) (float64, bool) {
	switch bucket {
	case bucketShort:
		switch d {
		case interview.DimensionDepth:
			return e.policy.ShortDepthCap, true
		case interview.DimensionTechnical:
			return e.policy.ShortTechnicalCap, true
		}
	case bucketMedium:
		if d == interview.DimensionDepth {
			return e.policy.MediumDepthCap, true
		}
	case bucketLong:
	}
	return 0, false
}

// confidence combines the length bucket with the terminology density. Short
// answers are never trusted, whatever the raw scores say.
func (e *Evaluator) confidence(bucket lengthBucket, density float64, hedges int) interview.Confidence {
	if bucket == bucketShort {
		return interview.ConfidenceLow
	}

	lengthScore := 0.5
	if bucket == bucketLong {
		lengthScore = 1
	}
	termScore := math.Min(1, density/e.policy.TermDensity)

	signal := 0.5*lengthScore + 0.5*termScore - float64(hedges)*e.policy.HedgePenalty
	switch {
	case signal >= e.policy.HighConfidence:
		return interview.ConfidenceHigh
	case signal >= e.policy.MediumConfidence:
		return interview.ConfidenceMedium
	default:
		return interview.ConfidenceLow
	}
}

func (e *Evaluator) bucket(words int) lengthBucket {
	switch {
	case words < e.policy.ShortWords:
		return bucketShort
	case words > e.policy.LongWords:
		return bucketLong
	default:
		return bucketMedium
	}
}

// heuristicScores grades a response from vocabulary and length alone.
func (e *Evaluator) heuristicScores(tokens []string, words int, terms []string) map[interview.Dimension]float64 {
	scores := make(map[interview.Dimension]float64, len(interview.Dimensions))
	for _, d := range interview.Dimensions {
		score := e.policy.NeutralScore

		keywords := dimensionKeywords[d]
		if d == interview.DimensionRelevance {
			keywords = terms
		}
		if found := presentTerms(tokens, keywords); found > 0 {
			score += math.Min(float64(found)*0.5, 2)
		}

		switch d {
		case interview.DimensionDepth:
			if words > 100 {
				score++
			} else if words < 30 {
				score--
			}
		case interview.DimensionClarity:
			if words >= 50 && words <= 150 {
				score++
			} else if words > 200 {
				score -= 0.5
			}
		case interview.DimensionTechnical, interview.DimensionCommunication,
			interview.DimensionProblemSolving, interview.DimensionRelevance:
		}

		if words == 0 {
			score = 0
		}
		scores[d] = score
	}
	return scores
}
