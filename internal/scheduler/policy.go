package scheduler

import "fmt"

// Policy holds every threshold the scheduler applies.
type Policy struct {
	GapImportance      float64 `mapstructure:"gap-importance"`
	ValidateImportance float64 `mapstructure:"validate-importance"`
	BonusImportance    float64 `mapstructure:"bonus-importance"`

	MinTopicSeconds int     `mapstructure:"min-topic-seconds"`
	MaxTopicShare   float64 `mapstructure:"max-topic-share"`

	EscalateScore float64 `mapstructure:"escalate-score"`
	FollowUpScore float64 `mapstructure:"follow-up-score"`

	EscalateCoverage float64 `mapstructure:"escalate-coverage"`
	HoldCoverage     float64 `mapstructure:"hold-coverage"`
	FollowUpCoverage float64 `mapstructure:"follow-up-coverage"`

	OvertimeFactor float64 `mapstructure:"overtime-factor"`
	MaxFollowUps   int     `mapstructure:"max-follow-ups"`
}

// DefaultPolicy returns the standard scheduling thresholds.
func DefaultPolicy() Policy {
	return Policy{
		GapImportance:      1.0,
		ValidateImportance: 0.8,
		BonusImportance:    0.4,
		MinTopicSeconds:    60,
		MaxTopicShare:      0.25,
		EscalateScore:      8,
		FollowUpScore:      5,
		EscalateCoverage:   0.4,
		HoldCoverage:       0.3,
		FollowUpCoverage:   0.15,
		OvertimeFactor:     1.5,
		MaxFollowUps:       2,
	}
}

// Validate rejects thresholds that would make the scheduler misbehave.
func (p Policy) Validate() error {
	for name, v := range map[string]float64{
		"gap-importance":      p.GapImportance,
		"validate-importance": p.ValidateImportance,
		"bonus-importance":    p.BonusImportance,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("scheduler policy: %s must be within [0,1], got %.2f", name, v)
		}
	}
	if p.MinTopicSeconds < 0 {
		return fmt.Errorf("scheduler policy: min-topic-seconds must be non-negative")
	}
	if p.MaxTopicShare <= 0 || p.MaxTopicShare > 1 {
		return fmt.Errorf("scheduler policy: max-topic-share must be within (0,1]")
	}
	if p.FollowUpScore > p.EscalateScore {
		return fmt.Errorf("scheduler policy: follow-up-score must not exceed escalate-score")
	}
	if p.OvertimeFactor < 1 {
		return fmt.Errorf("scheduler policy: overtime-factor must be at least 1")
	}
	if p.MaxFollowUps < 0 {
		return fmt.Errorf("scheduler policy: max-follow-ups must be non-negative")
	}
	return nil
}
