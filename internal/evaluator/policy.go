package evaluator

import "fmt"

// Policy holds every threshold the evaluator applies.
type Policy struct {
	// Responses with fewer than ShortWords words are short; more than LongWords are long.
	ShortWords int `mapstructure:"short-words"`
	LongWords  int `mapstructure:"long-words"`

	ShortDepthCap     float64 `mapstructure:"short-depth-cap"`
	ShortTechnicalCap float64 `mapstructure:"short-technical-cap"`
	MediumDepthCap    float64 `mapstructure:"medium-depth-cap"`

	// TermDensity is the share of topic terms among all tokens that counts as fluent.
	TermDensity      float64 `mapstructure:"term-density"`
	HighConfidence   float64 `mapstructure:"high-confidence"`
	MediumConfidence float64 `mapstructure:"medium-confidence"`
	HedgePenalty     float64 `mapstructure:"hedge-penalty"`

	NeutralScore float64 `mapstructure:"neutral-score"`

	TrendWindow    int     `mapstructure:"trend-window"`
	TrendDelta     float64 `mapstructure:"trend-delta"`
	StrengthMargin float64 `mapstructure:"strength-margin"`

	RubricAttempts int `mapstructure:"rubric-attempts"`
}

// DefaultPolicy returns the standard scoring thresholds.
func DefaultPolicy() Policy {
	return Policy{
		ShortWords:        20,
		LongWords:         50,
		ShortDepthCap:     6,
		ShortTechnicalCap: 7,
		MediumDepthCap:    8,
		TermDensity:       0.05,
		HighConfidence:    0.75,
		MediumConfidence:  0.4,
		HedgePenalty:      0.1,
		NeutralScore:      5,
		TrendWindow:       3,
		TrendDelta:        0.5,
		StrengthMargin:    1.0,
		RubricAttempts:    2,
	}
}

// Validate rejects thresholds that would make the evaluator misbehave.
func (p Policy) Validate() error {
	if p.ShortWords <= 0 || p.LongWords < p.ShortWords {
		return fmt.Errorf("evaluator policy: need 0 < short-words <= long-words, got %d/%d", p.ShortWords, p.LongWords)
	}
	for name, v := range map[string]float64{
		"short-depth-cap":     p.ShortDepthCap,
		"short-technical-cap": p.ShortTechnicalCap,
		"medium-depth-cap":    p.MediumDepthCap,
		"neutral-score":       p.NeutralScore,
	} {
		if v < 0 || v > maxScore {
			return fmt.Errorf("evaluator policy: %s must be within [0,10], got %.2f", name, v)
		}
	}
	if p.TermDensity <= 0 {
		return fmt.Errorf("evaluator policy: term-density must be positive")
	}
	if p.MediumConfidence > p.HighConfidence {
		return fmt.Errorf("evaluator policy: medium-confidence must not exceed high-confidence")
	}
	if p.TrendWindow <= 0 {
		return fmt.Errorf("evaluator policy: trend-window must be positive")
	}
	if p.RubricAttempts <= 0 {
		return fmt.Errorf("evaluator policy: rubric-attempts must be positive")
	}
	return nil
}
