package lifecycle

import (
	"errors"
	"time"
)

// Policy holds the lifecycle timings.
type Policy struct {
	AutosaveInterval  time.Duration `mapstructure:"autosave-interval"`
	InactivityTimeout time.Duration `mapstructure:"inactivity-timeout"`
	// Tick is how often Run evaluates timers.
	Tick time.Duration `mapstructure:"tick"`
}

// DefaultPolicy saves every 30s and expires after 15 minutes of inactivity.
func DefaultPolicy() Policy {
	return Policy{
		AutosaveInterval:  30 * time.Second,
		InactivityTimeout: 15 * time.Minute,
		Tick:              time.Second,
	}
}

// Validate checks the policy.
func (p Policy) Validate() error {
	switch {
	case p.AutosaveInterval <= 0:
		return errors.New("autosave-interval must be positive")
	case p.InactivityTimeout <= stages[0].remaining:
		return errors.New("inactivity-timeout must be longer than the first warning")
	case p.Tick <= 0:
		return errors.New("tick must be positive")
	}
	return nil
}

type stage struct {
	state     State
	remaining time.Duration
}

// stages are the inactivity warnings in firing order.
var stages = []stage{
	{state: StateWarning5, remaining: 5 * time.Minute},
	{state: StateWarning2, remaining: 2 * time.Minute},
	{state: StateWarning1, remaining: time.Minute},
}
