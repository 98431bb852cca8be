// Package directive turns scheduler and evaluator state into the single
// instruction that drives question generation for one turn.
package directive

import (
	"fmt"

	"github.com/spigell/interview-conductor/internal/interview"
	"github.com/spigell/interview-conductor/internal/scheduler"
	"github.com/spigell/interview-conductor/internal/utils"
)

const (
	defaultExcerptWords = 40
	defaultUnexplored   = 2

	HintPrevious   = "previous"
	HintTrend      = "trend"
	HintUnexplored = "unexplored"
)

type topicSource interface {
	NextDirectiveHint(sess *interview.Session) (string, interview.Mode, error)
	Peek(sess *interview.Session) (scheduler.Selection, error)
}

type assessor interface {
	Aggregate(evals []interview.EvaluationRecord) interview.AggregateAssessment
}

// Resolver is stateless; Resolve may be called any number of times.
type Resolver struct {
	topics       topicSource
	assess       assessor
	excerptWords int
	unexplored   int
}

// New creates a resolver over the given scheduler and evaluator.
func New(topics topicSource, assess assessor) *Resolver {
	return &Resolver{
		topics:       topics,
		assess:       assess,
		excerptWords: defaultExcerptWords,
		unexplored:   defaultUnexplored,
	}
}

// Resolve decides the next question. It never mutates sess; the caller
// commits the directive through the scheduler once the question is produced.
//
// Precedence:
//  1. nothing asked yet: opener on the most important pending topic, at surface;
//  2. last score below the follow-up threshold with retries left: follow up at the same depth;
//  3. current topic completed: transition to the next topic the scheduler selects;
//  4. otherwise stay on the topic, as newTopic when depth escalated this turn.
//
// It returns interview.ErrNoTopicsRemaining when the interview should wrap up.
func (r *Resolver) Resolve(sess *interview.Session) (interview.QuestionDirective, error) {
	if sess.Phase.Closing() {
		return interview.QuestionDirective{}, interview.ErrNoTopicsRemaining
	}

	id, mode, err := r.topics.NextDirectiveHint(sess)
	if err != nil {
		return interview.QuestionDirective{}, err
	}

	topic := sess.Topic(id)
	if topic == nil {
		return interview.QuestionDirective{}, &interview.InvariantViolation{Rule: "directive-topic", Detail: fmt.Sprintf("unknown topic %q", id)}
	}

	depth := topic.Depth
	switch mode {
	case interview.ModeOpener:
		depth = interview.DepthSurface
	case interview.ModeTransition:
		sel, err := r.topics.Peek(sess)
		if err != nil {
			return interview.QuestionDirective{}, err
		}
		if sel.Revisit {
			depth = interview.DepthDeep
		}
	case interview.ModeFollowUp, interview.ModeNewTopic:
	default:
		return interview.QuestionDirective{}, fmt.Errorf("unknown directive mode %q", mode)
	}

	return interview.QuestionDirective{
		TopicID:      topic.ID,
		Skill:        topic.Skill,
		Category:     topic.Category,
		Depth:        depth,
		Mode:         mode,
		ContextHints: r.hints(sess, topic.ID),
	}, nil
}

func (r *Resolver) hints(sess *interview.Session, target string) []string {
	var hints []string

	if n := len(sess.Responses); n > 0 {
		if excerpt := utils.FirstWords(sess.Responses[n-1].Text, r.excerptWords); excerpt != "" {
			hints = append(hints, HintPrevious+": "+excerpt)
		}
	}

	trend := interview.TrendStable
	if r.assess != nil {
		trend = r.assess.Aggregate(sess.Evaluations).Trend
	}
	hints = append(hints, HintTrend+": "+string(trend))

	added := 0
	for _, skill := range sess.Job.RequiredSkills {
		if added == r.unexplored {
			break
		}
		if unexplored(sess, skill, target) {
			hints = append(hints, HintUnexplored+": "+string(skill))
			added++
		}
	}

	return hints
}

// unexplored reports whether no question has touched the skill yet.
func unexplored(sess *interview.Session, skill interview.SkillTag, target string) bool {
	for _, t := range sess.Topics {
		if t.Skill != skill {
			continue
		}
		if t.ID == target || t.Status != interview.StatusPending {
			return false
		}
		for _, q := range sess.Questions {
			if q.TopicID == t.ID {
				return false
			}
		}
		return true
	}
	return false
}
