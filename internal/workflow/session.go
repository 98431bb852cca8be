package workflow

import (
	"time"

	"github.com/spigell/interview-conductor/internal/interview"
	"github.com/spigell/interview-conductor/internal/scheduler"
)

// NewSession validates the profiles and plans the topics of a fresh session.
func NewSession(id string, job interview.JobProfile, candidate interview.CandidateProfile, budgetSeconds int, sched *scheduler.Scheduler, now time.Time) (*interview.Session, error) {
	topics, err := sched.Plan(&job, &candidate, budgetSeconds)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	return &interview.Session{
		ID:             id,
		Phase:          interview.PhaseIntroduction,
		StartedAt:      now,
		LastActivityAt: now,
		BudgetSeconds:  budgetSeconds,
		Job:            job,
		Candidate:      candidate,
		Topics:         topics,
	}, nil
}
