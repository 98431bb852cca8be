package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/ai"
	"github.com/spigell/interview-conductor/internal/interview"
	"github.com/spigell/interview-conductor/internal/utils"
)

//go:embed rubric_prompt.md
var rubricTemplate string

const rubricSystem = "You are an impartial interview assessor. You only ever output JSON."

// Rubric scores responses with Gemini.
type Rubric struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.RubricScorer = (*Rubric)(nil)

// NewRubric creates a rubric scorer over the generator.
func NewRubric(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Rubric {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rubric{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

// ScoreResponse asks Gemini for dimension scores. Dimensions the model omits
// are left out of the result.
func (r *Rubric) ScoreResponse(ctx context.Context, req ai.RubricRequest) (map[interview.Dimension]float64, error) {
	title := ""
	if req.Job != nil {
		title = req.Job.Title
	}

	prompt := strings.NewReplacer(
		"{{JOB_TITLE}}", orNone(title),
		"{{SKILL}}", string(req.Topic.Skill),
		"{{CATEGORY}}", string(req.Topic.Category),
		"{{DEPTH}}", string(req.Topic.Depth),
		"{{QUESTION}}", orNone(req.Question),
		"{{RESPONSE}}", orNone(req.ResponseText),
	).Replace(rubricTemplate)

	r.logger.Debug("gemini rubric request",
		zap.String("topic_id", req.Topic.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	raw, err := r.generator.GenerateContent(ctx, rubricSystem, prompt)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("gemini rubric response",
		zap.String("topic_id", req.Topic.ID),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	return parseScores(raw)
}

func parseScores(raw string) (map[interview.Dimension]float64, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse gemini rubric response: %w", err)
	}

	if nested, ok := data["scores"].(map[string]any); ok {
		data = nested
	}

	byKey := make(map[string]any, len(data))
	for k, v := range data {
		byKey[normalizeKey(k)] = v
	}

	scores := make(map[interview.Dimension]float64, len(interview.Dimensions))
	for _, d := range interview.Dimensions {
		v, ok := byKey[normalizeKey(string(d))]
		if !ok || v == nil {
			continue
		}
		var score float64
		if err := mapstructure.WeakDecode(v, &score); err != nil {
			return nil, fmt.Errorf("decode %s score %v: %w", d, v, err)
		}
		scores[d] = score
	}

	if len(scores) == 0 {
		return nil, fmt.Errorf("gemini rubric response has no dimension scores")
	}
	return scores, nil
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(k))
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}
