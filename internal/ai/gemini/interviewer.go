package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/ai"
	"github.com/spigell/interview-conductor/internal/interview"
	"github.com/spigell/interview-conductor/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	GenerateStream(ctx context.Context, system, message string, onChunk func(string)) (string, error)
}

//go:embed question_prompt.md
var questionTemplate string

const (
	defaultMaxLogLength = 200
	interviewerSystem   = "You are a professional interviewer. You only ever output the next question to ask."
)

var modeGuidance = map[interview.Mode]string{
	interview.ModeOpener:     "the first question of the interview; greet the candidate briefly and ease in",
	interview.ModeFollowUp:   "a follow-up on the candidate's last answer about the same skill",
	interview.ModeNewTopic:   "a harder question on the same skill, the candidate handled the last one well",
	interview.ModeTransition: "a transition to a new skill; acknowledge the previous answer in a few words",
}

// Interviewer writes questions with Gemini.
type Interviewer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.QuestionWriter = (*Interviewer)(nil)

// NewInterviewer creates a question writer over the generator.
func NewInterviewer(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Interviewer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Interviewer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// WriteQuestion streams the question to stream, when given, and returns the full text.
func (i *Interviewer) WriteQuestion(ctx context.Context, req ai.QuestionRequest, stream chan<- string) (string, error) {
	if req.Job == nil || req.Candidate == nil {
		return "", fmt.Errorf("job and candidate profiles are required")
	}

	prompt := buildQuestionPrompt(req)

	i.logger.Debug("gemini question request",
		zap.String("topic_id", req.Directive.TopicID),
		zap.String("mode", string(req.Directive.Mode)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, i.maxLogLen)),
	)

	onChunk := func(chunk string) {
		if stream == nil {
			return
		}
		select {
		case stream <- chunk:
		case <-ctx.Done():
		}
	}

	raw, err := i.generator.GenerateStream(ctx, interviewerSystem, prompt, onChunk)
	if err != nil {
		return "", err
	}

	i.logger.Debug("gemini question response",
		zap.String("topic_id", req.Directive.TopicID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, i.maxLogLen)),
	)

	question := cleanQuestion(raw)
	if question == "" {
		return "", errors.New("gemini returned an empty question")
	}
	return question, nil
}

func buildQuestionPrompt(req ai.QuestionRequest) string {
	d := req.Directive

	responsibilities := "  - none listed"
	if len(req.Job.Responsibilities) > 0 {
		lines := make([]string, 0, len(req.Job.Responsibilities))
		for _, r := range req.Job.Responsibilities {
			lines = append(lines, "  - "+strings.TrimSpace(r))
		}
		responsibilities = strings.Join(lines, "\n")
	}

	hints := "  - none"
	if len(d.ContextHints) > 0 {
		lines := make([]string, 0, len(d.ContextHints))
		for _, h := range d.ContextHints {
			lines = append(lines, "  - "+strings.TrimSpace(h))
		}
		hints = strings.Join(lines, "\n")
	}

	return strings.NewReplacer(
		"{{JOB_TITLE}}", req.Job.Title,
		"{{SENIORITY}}", orNone(req.Job.Seniority),
		"{{RESPONSIBILITIES}}", responsibilities,
		"{{CANDIDATE_NAME}}", req.Candidate.Name,
		"{{EXPERIENCE}}", orNone(req.Candidate.ExperienceSummary),
		"{{SKILL}}", string(d.Skill),
		"{{CATEGORY}}", string(d.Category),
		"{{DEPTH}}", string(d.Depth),
		"{{MODE_GUIDANCE}}", modeGuidance[d.Mode],
		"{{PREVIOUS_QUESTION}}", orNone(req.PreviousQuestion),
		"{{CONTEXT_HINTS}}", hints,
	).Replace(questionTemplate)
}

// cleanQuestion strips wrapping quotes and labels models sometimes add.
func cleanQuestion(raw string) string {
	q := strings.TrimSpace(raw)
	for _, prefix := range []string{"Question:", "Interviewer:"} {
		if len(q) >= len(prefix) && strings.EqualFold(q[:len(prefix)], prefix) {
			q = strings.TrimSpace(q[len(prefix):])
		}
	}
	q = strings.Trim(q, "\"'`“”")
	return strings.TrimSpace(q)
}

func orNone(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "none"
	}
	return s
}
