// Package ai describes the natural-language generation capability the
// interview engine relies on. Implementations live in subpackages.
package ai

import (
	"context"

	"github.com/spigell/interview-conductor/internal/interview"
)

// QuestionRequest is everything a writer needs to phrase one question.
type QuestionRequest struct {
	Directive interview.QuestionDirective
	Job       *interview.JobProfile
	Candidate *interview.CandidateProfile
	// PreviousQuestion is the last question asked, empty for the opener.
	PreviousQuestion string
}

// QuestionWriter turns a directive into question text.
//
// When stream is not nil, text chunks are sent to it as they arrive. The
// writer never closes stream. The returned string is always the complete
// question and is the only value the engine records.
type QuestionWriter interface {
	WriteQuestion(ctx context.Context, req QuestionRequest, stream chan<- string) (string, error)
}

// RubricRequest is everything a scorer needs to grade one response.
type RubricRequest struct {
	Question     string
	ResponseText string
	Topic        interview.Topic
	Job          *interview.JobProfile
}

// RubricScorer grades a response along the scoring dimensions. Returned
// scores are raw; the evaluator clamps and fills them.
type RubricScorer interface {
	ScoreResponse(ctx context.Context, req RubricRequest) (map[interview.Dimension]float64, error)
}
