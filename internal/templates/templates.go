// Package templates holds the canned questions used when question
// generation fails, so a turn always produces a question.
package templates

import (
	"fmt"
	"os"
	"strings"

	_ "embed"

	"gopkg.in/yaml.v3"

	"github.com/spigell/interview-conductor/internal/interview"
)

//go:embed questions.yaml
var defaultQuestions []byte

const skillPlaceholder = "{skill}"

// Set is a complete collection of canned questions.
type Set struct {
	Opener     []string                                            `yaml:"opener"`
	Transition []string                                            `yaml:"transition"`
	Closing    []string                                            `yaml:"closing"`
	FollowUp   map[interview.Depth][]string                        `yaml:"follow_up"`
	Categories map[interview.Category]map[interview.Depth][]string `yaml:"categories"`
}

// Default returns the built-in set.
func Default() (*Set, error) {
	return Parse(defaultQuestions)
}

// Load reads a set from a YAML file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question templates %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a set and checks that every directive can be served.
func Parse(data []byte) (*Set, error) {
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing question templates: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Set) validate() error {
	var missing []string
	if len(s.Opener) == 0 {
		missing = append(missing, "opener")
	}
	if len(s.Transition) == 0 {
		missing = append(missing, "transition")
	}
	if len(s.Closing) == 0 {
		missing = append(missing, "closing")
	}
	for _, depth := range []interview.Depth{interview.DepthSurface, interview.DepthMedium, interview.DepthDeep} {
		if len(s.FollowUp[depth]) == 0 {
			missing = append(missing, "follow_up."+string(depth))
		}
		for _, c := range []interview.Category{interview.CategoryTechnical, interview.CategoryBehavioral, interview.CategorySituational, interview.CategorySystemDesign} {
			if len(s.Categories[c][depth]) == 0 {
				missing = append(missing, "categories."+string(c)+"."+string(depth))
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("question templates are incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Question renders a canned question for the directive. seq selects among the
// variants so consecutive fallbacks do not repeat; the same inputs always
// yield the same text.
func (s *Set) Question(d interview.QuestionDirective, seq int) string {
	skill := string(d.Skill)

	switch d.Mode {
	case interview.ModeOpener:
		return render(pick(s.Opener, seq), skill)
	case interview.ModeTransition:
		return render(pick(s.Transition, seq), skill) + " " + render(pick(s.Categories[d.Category][d.Depth], seq), skill)
	case interview.ModeFollowUp:
		return render(pick(s.FollowUp[d.Depth], seq), skill)
	case interview.ModeNewTopic:
		return render(pick(s.Categories[d.Category][d.Depth], seq), skill)
	default:
		return render(pick(s.Categories[interview.CategoryTechnical][interview.DepthSurface], seq), skill)
	}
}

// ClosingLine returns the closing remark.
func (s *Set) ClosingLine(seq int) string {
	return pick(s.Closing, seq)
}

func pick(options []string, seq int) string {
	if len(options) == 0 {
		return ""
	}
	if seq < 0 {
		seq = -seq
	}
	return options[seq%len(options)]
}

func render(template, skill string) string {
	return strings.TrimSpace(strings.ReplaceAll(template, skillPlaceholder, skill))
}
