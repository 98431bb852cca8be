package interview

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// JobProfile describes the role being interviewed for. It is immutable once loaded.
type JobProfile struct {
	Title            string     `json:"title" yaml:"title" validate:"required"`
	RequiredSkills   []SkillTag `json:"required_skills" yaml:"required_skills" validate:"min=1,unique,dive,required"`
	Responsibilities []string   `json:"responsibilities,omitempty" yaml:"responsibilities"`
	Seniority        string     `json:"seniority,omitempty" yaml:"seniority"`
	// SkillCategories optionally pins the category of a skill; unlisted skills are classified by keyword.
	SkillCategories map[SkillTag]Category `json:"skill_categories,omitempty" yaml:"skill_categories" validate:"omitempty,dive,keys,required,endkeys,oneof=technical behavioral situational system-design"`
	// SkillTerms optionally lists domain terminology associated with a skill.
	SkillTerms map[SkillTag][]string `json:"skill_terms,omitempty" yaml:"skill_terms"`
}

// CandidateProfile describes the person being interviewed. It is immutable once loaded.
type CandidateProfile struct {
	Name              string     `json:"name" yaml:"name" validate:"required"`
	ClaimedSkills     []SkillTag `json:"claimed_skills" yaml:"claimed_skills" validate:"min=1,unique,dive,required"`
	ExperienceSummary string     `json:"experience_summary,omitempty" yaml:"experience_summary"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the job profile and returns a *ValidationError on failure.
func (j *JobProfile) Validate() error {
	return validateStruct("job profile", j)
}

// Validate checks the candidate profile and returns a *ValidationError on failure.
func (c *CandidateProfile) Validate() error {
	return validateStruct("candidate profile", c)
}

// Requires reports whether the job lists the skill as required.
func (j *JobProfile) Requires(tag SkillTag) bool {
	for _, s := range j.RequiredSkills {
		if s == tag {
			return true
		}
	}
	return false
}

// Claims reports whether the candidate claims the skill.
func (c *CandidateProfile) Claims(tag SkillTag) bool {
	for _, s := range c.ClaimedSkills {
		if s == tag {
			return true
		}
	}
	return false
}

// CategoryFor resolves the question category of a skill.
func (j *JobProfile) CategoryFor(tag SkillTag) Category {
	if c, ok := j.SkillCategories[tag]; ok && c.Valid() {
		return c
	}
	return ClassifySkill(tag)
}

// TermsFor returns the terminology associated with a skill: the words of the
// tag itself plus any configured terms, lowercased.
func (j *JobProfile) TermsFor(tag SkillTag) []string {
	terms := strings.Fields(strings.ToLower(strings.NewReplacer("-", " ", "_", " ", "/", " ").Replace(string(tag))))
	for _, t := range j.SkillTerms[tag] {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategorySystemDesign, []string{"system design", "architecture", "distributed", "scalab", "microservice"}},
	{CategoryBehavioral, []string{"leadership", "communication", "teamwork", "collaboration", "mentor", "conflict", "ownership"}},
	{CategorySituational, []string{"incident", "prioritization", "stakeholder", "decision", "on-call", "crisis"}},
}

// ClassifySkill guesses a category from the skill name. Unknown skills are technical.
func ClassifySkill(tag SkillTag) Category {
	name := strings.ToLower(string(tag))
	for _, entry := range categoryKeywords {
		for _, w := range entry.words {
			if strings.Contains(name, w) {
				return entry.category
			}
		}
	}
	return CategoryTechnical
}

func validateStruct(subject string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Subject: subject, Cause: err}
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return &ValidationError{Subject: subject, Fields: fields, Cause: err}
}
