package interview

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// TopicBasis records why a topic was planned.
type TopicBasis string

const (
	// BasisGap is a required skill the candidate does not claim.
	BasisGap TopicBasis = "gap"
	// BasisValidate is a required skill the candidate claims.
	BasisValidate TopicBasis = "validate"
	// BasisBonus is a claimed skill the job does not require.
	BasisBonus TopicBasis = "bonus"
)

// Topic is one planned area of questioning. Topics are never deleted, only
// completed or skipped.
type Topic struct {
	ID               string      `json:"id"`
	Skill            SkillTag    `json:"skill"`
	Category         Category    `json:"category"`
	Basis            TopicBasis  `json:"basis"`
	Importance       float64     `json:"importance"`
	EstimatedSeconds int         `json:"estimated_seconds"`
	Depth            Depth       `json:"depth"`
	Status           TopicStatus `json:"status"`
	CoverageScore    float64     `json:"coverage_score"`

	// SpentSeconds is the answering time charged to this topic so far.
	SpentSeconds float64 `json:"spent_seconds"`
	// Retries counts consecutive low-score follow-ups issued at the current depth.
	Retries int `json:"retries"`
	// EscalatedTurn is the evaluation turn at which depth last escalated, 0 if never.
	EscalatedTurn int    `json:"escalated_turn"`
	Revisited     bool   `json:"revisited"`
	Outcome       string `json:"outcome,omitempty"`
}

// Question is one question put to the candidate.
type Question struct {
	TopicID  string    `json:"topic_id"`
	Text     string    `json:"text"`
	Mode     Mode      `json:"mode"`
	Depth    Depth     `json:"depth"`
	AskedAt  time.Time `json:"asked_at"`
	Fallback bool      `json:"fallback,omitempty"`
}

// Response is one candidate answer.
type Response struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// EvaluationRecord is the scored assessment of one response. Append-only.
type EvaluationRecord struct {
	TurnIndex       int                   `json:"turn_index"`
	TopicID         string                `json:"topic_id"`
	DimensionScores map[Dimension]float64 `json:"dimension_scores"`
	Confidence      Confidence            `json:"confidence"`
	Timestamp       time.Time             `json:"timestamp"`

	WordCount   int     `json:"word_count"`
	TermDensity float64 `json:"term_density"`
	Hedges      int     `json:"hedges"`
	// Source is "rubric" when scored by the generation capability, "heuristic" otherwise.
	Source string `json:"source"`
}

// Mean returns the mean of the dimension scores, or 0 when there are none.
func (r EvaluationRecord) Mean() float64 {
	if len(r.DimensionScores) == 0 {
		return 0
	}
	var sum float64
	for _, d := range Dimensions {
		sum += r.DimensionScores[d]
	}
	return sum / float64(len(Dimensions))
}

// ResponsePatterns summarizes behavior across all responses.
type ResponsePatterns struct {
	AverageWords       float64 `json:"average_words"`
	AverageTermDensity float64 `json:"average_term_density"`
	HedgeRate          float64 `json:"hedge_rate"`
}

// AggregateAssessment is derived from the evaluation sequence and never stored.
type AggregateAssessment struct {
	Count          int                   `json:"count"`
	DimensionMeans map[Dimension]float64 `json:"dimension_means"`
	Overall        float64               `json:"overall"`
	Trend          Trend                 `json:"trend"`
	Strengths      []Dimension           `json:"strengths"`
	Weaknesses     []Dimension           `json:"weaknesses"`
	Patterns       ResponsePatterns      `json:"patterns"`
}

// QuestionDirective is the single input to question generation for one turn.
// It is never persisted.
type QuestionDirective struct {
	TopicID      string
	Skill        SkillTag
	Category     Category
	Depth        Depth
	Mode         Mode
	ContextHints []string
}

// Session is the root aggregate of one interview.
type Session struct {
	ID             string           `json:"id"`
	Phase          Phase            `json:"phase"`
	StartedAt      time.Time        `json:"started_at"`
	LastActivityAt time.Time        `json:"last_activity_at"`
	BudgetSeconds  int              `json:"budget_seconds"`
	Job            JobProfile       `json:"job"`
	Candidate      CandidateProfile `json:"candidate"`

	Questions   []Question         `json:"questions"`
	Responses   []Response         `json:"responses"`
	Topics      []Topic            `json:"topics"`
	Evaluations []EvaluationRecord `json:"evaluations"`

	Version int `json:"version"`
}

// Outstanding reports whether the last question has not been answered yet.
func (s *Session) Outstanding() bool {
	return len(s.Questions) > len(s.Responses)
}

// ActiveTopic returns the active topic or nil.
func (s *Session) ActiveTopic() *Topic {
	for i := range s.Topics {
		if s.Topics[i].Status == StatusActive {
			return &s.Topics[i]
		}
	}
	return nil
}

// Topic returns the topic with the given id or nil.
func (s *Session) Topic(id string) *Topic {
	for i := range s.Topics {
		if s.Topics[i].ID == id {
			return &s.Topics[i]
		}
	}
	return nil
}

// LastEvaluation returns the most recent evaluation record.
func (s *Session) LastEvaluation() (EvaluationRecord, bool) {
	if len(s.Evaluations) == 0 {
		return EvaluationRecord{}, false
	}
	return s.Evaluations[len(s.Evaluations)-1], true
}

// SpentSeconds is the total answering time charged across all topics.
func (s *Session) SpentSeconds() float64 {
	var total float64
	for _, t := range s.Topics {
		total += t.SpentSeconds
	}
	return total
}

// RemainingSeconds is the unspent part of the time budget, never negative.
func (s *Session) RemainingSeconds() float64 {
	remaining := float64(s.BudgetSeconds) - s.SpentSeconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clone returns a deep copy. Profiles are immutable and shared.
func (s *Session) Clone() *Session {
	c := *s
	c.Questions = slices.Clone(s.Questions)
	c.Responses = slices.Clone(s.Responses)
	c.Topics = slices.Clone(s.Topics)
	if s.Evaluations != nil {
		c.Evaluations = make([]EvaluationRecord, len(s.Evaluations))
		for i, e := range s.Evaluations {
			e.DimensionScores = maps.Clone(e.DimensionScores)
			c.Evaluations[i] = e
		}
	}
	return &c
}

// Validate checks every structural invariant of the session.
func (s *Session) Validate() error {
	if !s.Phase.Valid() {
		return &InvariantViolation{Rule: "phase", Detail: fmt.Sprintf("unknown phase %q", s.Phase)}
	}

	if delta := len(s.Questions) - len(s.Responses); delta < 0 || delta > 1 {
		return &InvariantViolation{
			Rule:   "outstanding-questions",
			Detail: fmt.Sprintf("%d questions vs %d responses", len(s.Questions), len(s.Responses)),
		}
	}

	active := 0
	ids := make(map[string]struct{}, len(s.Topics))
	for _, t := range s.Topics {
		if _, dup := ids[t.ID]; dup {
			return &InvariantViolation{Rule: "topic-id", Detail: fmt.Sprintf("duplicate topic %q", t.ID)}
		}
		ids[t.ID] = struct{}{}

		switch {
		case !t.Status.Valid():
			return &InvariantViolation{Rule: "topic-status", Detail: fmt.Sprintf("topic %q has status %q", t.ID, t.Status)}
		case !t.Depth.Valid():
			return &InvariantViolation{Rule: "topic-depth", Detail: fmt.Sprintf("topic %q has depth %q", t.ID, t.Depth)}
		case !t.Category.Valid():
			return &InvariantViolation{Rule: "topic-category", Detail: fmt.Sprintf("topic %q has category %q", t.ID, t.Category)}
		case t.CoverageScore < 0 || t.CoverageScore > 1:
			return &InvariantViolation{Rule: "topic-coverage", Detail: fmt.Sprintf("topic %q coverage %.2f", t.ID, t.CoverageScore)}
		case t.Importance < 0 || t.Importance > 1:
			return &InvariantViolation{Rule: "topic-importance", Detail: fmt.Sprintf("topic %q importance %.2f", t.ID, t.Importance)}
		}
		if t.Status == StatusActive {
			active++
		}
	}

	if active > 1 {
		return &InvariantViolation{Rule: "single-active-topic", Detail: fmt.Sprintf("%d active topics", active)}
	}
	// While a question is outstanding exactly one topic is active and it is
	// the topic of that question.
	if s.Outstanding() && !s.Phase.Closing() {
		current := s.Questions[len(s.Questions)-1].TopicID
		if active == 0 {
			return &InvariantViolation{Rule: "single-active-topic", Detail: fmt.Sprintf("no active topic in phase %s", s.Phase)}
		}
		if t := s.ActiveTopic(); t.ID != current {
			return &InvariantViolation{Rule: "single-active-topic", Detail: fmt.Sprintf("question on %q but %q is active", current, t.ID)}
		}
	}

	for i, q := range s.Questions {
		if _, ok := ids[q.TopicID]; !ok {
			return &InvariantViolation{Rule: "question-topic", Detail: fmt.Sprintf("question %d references unknown topic %q", i, q.TopicID)}
		}
	}

	if len(s.Evaluations) > len(s.Responses) {
		return &InvariantViolation{
			Rule:   "evaluations",
			Detail: fmt.Sprintf("%d evaluations vs %d responses", len(s.Evaluations), len(s.Responses)),
		}
	}
	for _, e := range s.Evaluations {
		for d, v := range e.DimensionScores {
			if !d.Valid() || v < 0 || v > 10 {
				return &InvariantViolation{Rule: "evaluation-score", Detail: fmt.Sprintf("turn %d: %s=%.2f", e.TurnIndex, d, v)}
			}
		}
	}

	return nil
}
