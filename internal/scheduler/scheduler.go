// Package scheduler plans interview topics and decides, after every scored
// response, whether to deepen, follow up on, or leave the current topic.
package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/interview"
)

const (
	outcomeCovered   = "covered"
	outcomeOvertime  = "overtime"
	outcomeExhausted = "exhausted"
	outcomeNoTime    = "no-time"
	outcomeWrapUp    = "wrap-up"
)

// Scheduler owns every mutation of Topic values.
type Scheduler struct {
	policy Policy
	logger *zap.Logger
}

// New creates a scheduler. A nil logger is replaced with a no-op logger.
func New(policy Policy, logger *zap.Logger) (*Scheduler, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{policy: policy, logger: logger}, nil
}

// Policy returns the thresholds in use.
func (s *Scheduler) Policy() Policy { return s.policy }

// Plan builds one topic per skill in requiredSkills ∪ claimedSkills, ordered
// by importance with ties kept in first-appearance order, and splits the time
// budget across them.
func (s *Scheduler) Plan(job *interview.JobProfile, candidate *interview.CandidateProfile, budgetSeconds int) ([]interview.Topic, error) {
	if job == nil || candidate == nil {
		return nil, &interview.ValidationError{Subject: "profiles", Cause: fmt.Errorf("job and candidate profiles are required")}
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	if budgetSeconds <= 0 {
		return nil, &interview.ValidationError{Subject: "time budget", Cause: fmt.Errorf("budget must be positive, got %d", budgetSeconds)}
	}

	topics := make([]interview.Topic, 0, len(job.RequiredSkills)+len(candidate.ClaimedSkills))
	for _, skill := range job.RequiredSkills {
		basis, importance := interview.BasisGap, s.policy.GapImportance
		if candidate.Claims(skill) {
			basis, importance = interview.BasisValidate, s.policy.ValidateImportance
		}
		topics = append(topics, newTopic(job, skill, basis, importance))
	}
	for _, skill := range candidate.ClaimedSkills {
		if job.Requires(skill) {
			continue
		}
		topics = append(topics, newTopic(job, skill, interview.BasisBonus, s.policy.BonusImportance))
	}

	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].Importance > topics[j].Importance
	})

	weights := make([]float64, len(topics))
	for i := range topics {
		weights[i] = topics[i].Importance
	}
	seconds := allocate(weights, budgetSeconds, s.policy.MinTopicSeconds, s.policy.MaxTopicShare)

	for i := range topics {
		topics[i].ID = fmt.Sprintf("%02d-%s", i+1, slug(topics[i].Skill))
		topics[i].EstimatedSeconds = seconds[i]
		if seconds[i] == 0 {
			topics[i].Status = interview.StatusSkipped
			topics[i].Outcome = outcomeNoTime
		}
	}

	s.logger.Debug("planned topics",
		zap.Int("count", len(topics)),
		zap.Int("budget_seconds", budgetSeconds),
		zap.Strings("order", topicIDs(topics)),
	)

	return topics, nil
}

// Outcome describes what the scheduler did with one evaluation.
type Outcome struct {
	TopicID   string
	Mean      float64
	Escalated bool
	FollowUp  bool
	Completed bool
	Reason    string
}

// RecordOutcome charges answering time to the evaluated topic and applies the
// depth and coverage rule. Depth is never lowered.
func (s *Scheduler) RecordOutcome(sess *interview.Session, rec interview.EvaluationRecord, answerSeconds float64) (Outcome, error) {
	t := sess.Topic(rec.TopicID)
	if t == nil {
		return Outcome{}, &interview.InvariantViolation{Rule: "evaluation-topic", Detail: fmt.Sprintf("unknown topic %q", rec.TopicID)}
	}

	if answerSeconds > 0 {
		t.SpentSeconds += answerSeconds
	}

	out := Outcome{TopicID: t.ID, Mean: rec.Mean()}
	if t.Status != interview.StatusActive {
		return out, nil
	}

	exhausted := false
	switch {
	case out.Mean >= s.policy.EscalateScore && rec.Confidence == interview.ConfidenceHigh:
		if t.Depth != interview.DepthDeep {
			t.Depth = t.Depth.Escalate()
			t.EscalatedTurn = rec.TurnIndex
			out.Escalated = true
		}
		t.Retries = 0
		t.CoverageScore += s.policy.EscalateCoverage
	case out.Mean >= s.policy.FollowUpScore:
		t.Retries = 0
		t.CoverageScore += s.policy.HoldCoverage
	default:
		t.CoverageScore += s.policy.FollowUpCoverage
		out.FollowUp = t.Retries < s.policy.MaxFollowUps
		exhausted = !out.FollowUp
	}
	if t.CoverageScore > 1 {
		t.CoverageScore = 1
	}

	switch {
	case t.CoverageScore >= 1:
		out.Reason = outcomeCovered
	case t.SpentSeconds > float64(t.EstimatedSeconds)*s.policy.OvertimeFactor:
		out.Reason = outcomeOvertime
	case exhausted:
		out.Reason = outcomeExhausted
	}
	if out.Reason != "" {
		t.Status = interview.StatusComplete
		t.Outcome = out.Reason
		out.Completed = true
		out.FollowUp = false
	}

	s.logger.Debug("recorded topic outcome",
		zap.String("topic_id", t.ID),
		zap.Float64("mean", out.Mean),
		zap.String("depth", string(t.Depth)),
		zap.Float64("coverage", t.CoverageScore),
		zap.Bool("completed", out.Completed),
		zap.String("reason", out.Reason),
	)

	return out, nil
}

// Selection is the scheduler's answer to "what comes next".
type Selection struct {
	Topic   interview.Topic
	Skip    []string
	Revisit bool
}

// Opener returns the highest-importance pending topic.
func (s *Scheduler) Opener(sess *interview.Session) (interview.Topic, error) {
	for _, t := range sess.Topics {
		if t.Status == interview.StatusPending {
			return t, nil
		}
	}
	return interview.Topic{}, interview.ErrNoTopicsRemaining
}

// Peek selects the next topic to activate without mutating anything. Pending
// topics are taken in planned order, skipping those whose importance-adjusted
// share no longer fits the remaining budget. When none remain and at least
// the minimum topic time is left, the most important completed topic not yet
// at deep depth is revisited.
func (s *Scheduler) Peek(sess *interview.Session) (Selection, error) {
	remaining := sess.RemainingSeconds()

	var sel Selection
	for _, t := range sess.Topics {
		if t.Status != interview.StatusPending {
			continue
		}
		if s.need(t) > remaining {
			sel.Skip = append(sel.Skip, t.ID)
			continue
		}
		sel.Topic = t
		return sel, nil
	}

	if remaining > 0 && remaining >= float64(s.policy.MinTopicSeconds) {
		best := -1
		for i, t := range sess.Topics {
			if t.Status != interview.StatusComplete || t.Revisited || t.Depth == interview.DepthDeep {
				continue
			}
			if best < 0 || t.Importance > sess.Topics[best].Importance {
				best = i
			}
		}
		if best >= 0 {
			sel.Topic = sess.Topics[best]
			sel.Revisit = true
			return sel, nil
		}
	}

	return sel, interview.ErrNoTopicsRemaining
}

// NextDirectiveHint reports which topic the next question should target and
// in which mode, as seen from scheduling state alone.
func (s *Scheduler) NextDirectiveHint(sess *interview.Session) (string, interview.Mode, error) {
	if len(sess.Questions) == 0 {
		t, err := s.Opener(sess)
		return t.ID, interview.ModeOpener, err
	}

	if active := sess.ActiveTopic(); active != nil {
		if last, ok := sess.LastEvaluation(); ok && last.TopicID == active.ID && last.Mean() < s.policy.FollowUpScore && active.Retries < s.policy.MaxFollowUps {
			return active.ID, interview.ModeFollowUp, nil
		}
		if last, ok := sess.LastEvaluation(); ok && active.EscalatedTurn == last.TurnIndex {
			return active.ID, interview.ModeNewTopic, nil
		}
		return active.ID, interview.ModeFollowUp, nil
	}

	sel, err := s.Peek(sess)
	if err != nil {
		return "", "", err
	}
	return sel.Topic.ID, interview.ModeTransition, nil
}

// Commit applies a resolved directive to the session: it activates the
// target topic, records skipped topics and counts low-score follow-ups.
func (s *Scheduler) Commit(sess *interview.Session, d interview.QuestionDirective) error {
	switch d.Mode {
	case interview.ModeOpener:
		t := sess.Topic(d.TopicID)
		if t == nil || t.Status != interview.StatusPending {
			return &interview.InvariantViolation{Rule: "opener-topic", Detail: fmt.Sprintf("topic %q is not pending", d.TopicID)}
		}
		t.Status = interview.StatusActive
		sess.Phase = interview.PhaseIntroduction

	case interview.ModeFollowUp, interview.ModeNewTopic:
		t := sess.ActiveTopic()
		if t == nil || t.ID != d.TopicID {
			return &interview.InvariantViolation{Rule: "follow-up-topic", Detail: fmt.Sprintf("topic %q is not active", d.TopicID)}
		}
		if last, ok := sess.LastEvaluation(); ok && d.Mode == interview.ModeFollowUp && last.TopicID == t.ID && last.Mean() < s.policy.FollowUpScore {
			t.Retries++
		}
		sess.Phase = t.Category.Phase()

	case interview.ModeTransition:
		if active := sess.ActiveTopic(); active != nil {
			return &interview.InvariantViolation{Rule: "transition", Detail: fmt.Sprintf("topic %q is still active", active.ID)}
		}
		sel, err := s.Peek(sess)
		if err != nil {
			return err
		}
		if sel.Topic.ID != d.TopicID {
			return &interview.InvariantViolation{Rule: "transition", Detail: fmt.Sprintf("directive targets %q, scheduler selects %q", d.TopicID, sel.Topic.ID)}
		}
		for _, id := range sel.Skip {
			skipped := sess.Topic(id)
			skipped.Status = interview.StatusSkipped
			skipped.Outcome = outcomeNoTime
			s.logger.Info("skipping topic", zap.String("topic_id", id), zap.String("reason", outcomeNoTime))
		}
		t := sess.Topic(d.TopicID)
		t.Status = interview.StatusActive
		t.Retries = 0
		if sel.Revisit {
			t.Revisited = true
			t.Depth = interview.DepthDeep
			t.CoverageScore = 0
			t.Outcome = ""
		}
		sess.Phase = t.Category.Phase()

	default:
		return fmt.Errorf("unknown directive mode %q", d.Mode)
	}
	return nil
}

// WrapUp closes every open topic and moves the session to wrapping_up.
// Pending topics are skipped for lack of time.
func (s *Scheduler) WrapUp(sess *interview.Session) {
	for i := range sess.Topics {
		t := &sess.Topics[i]
		switch t.Status {
		case interview.StatusActive:
			t.Status = interview.StatusComplete
			t.Outcome = outcomeWrapUp
		case interview.StatusPending:
			t.Status = interview.StatusSkipped
			t.Outcome = outcomeNoTime
		case interview.StatusComplete, interview.StatusSkipped:
		}
	}
	sess.Phase = interview.PhaseWrappingUp
}

// TopicElapsed is a helper for callers timing an answer against its question.
func TopicElapsed(askedAt, answeredAt time.Time) float64 {
	if answeredAt.Before(askedAt) {
		return 0
	}
	return answeredAt.Sub(askedAt).Seconds()
}

func (s *Scheduler) need(t interview.Topic) float64 {
	need := float64(t.EstimatedSeconds) * t.Importance
	if floor := float64(s.policy.MinTopicSeconds); need < floor {
		need = floor
	}
	return need
}

func newTopic(job *interview.JobProfile, skill interview.SkillTag, basis interview.TopicBasis, importance float64) interview.Topic {
	return interview.Topic{
		Skill:      skill,
		Category:   job.CategoryFor(skill),
		Basis:      basis,
		Importance: importance,
		Depth:      interview.DepthSurface,
		Status:     interview.StatusPending,
	}
}

func slug(tag interview.SkillTag) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(string(tag)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case r == '+':
			b.WriteString("p")
			dash = false
		case r == '#':
			b.WriteString("sharp")
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func topicIDs(topics []interview.Topic) []string {
	ids := make([]string, len(topics))
	for i, t := range topics {
		ids[i] = t.ID
	}
	return ids
}
