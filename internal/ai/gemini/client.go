package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/interview-conductor/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	baseRetryDelay    = 2 * time.Second
	maxRetryDelay     = 20 * time.Second
)

var waitFor = utils.WaitFor

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
	SendMessageStream(ctx context.Context, parts ...genai.Part) iter.Seq2[*genai.GenerateContentResponse, error]
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Generator wraps the Google GenAI client with retries on transient failures.
// Every call opens a fresh chat so requests never share history.
type Generator struct {
	chats      chatCreator
	model      string
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		chats:      genaiChats{chats: client.Chats},
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// GenerateContent sends message under the given system instruction and
// returns the complete textual response.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	return g.withRetries(ctx, func(chat chatSession, _ *bool) (string, error) {
		resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
		if err != nil {
			return "", err
		}
		return responseText(resp, "\n"), nil
	}, system, message)
}

// GenerateStream is GenerateContent with incremental delivery: onChunk is
// called for every text fragment as it arrives. A failed attempt is retried
// only if nothing was delivered yet.
func (g *Generator) GenerateStream(ctx context.Context, system, message string, onChunk func(string)) (string, error) {
	return g.withRetries(ctx, func(chat chatSession, delivered *bool) (string, error) {
		var builder strings.Builder
		for resp, err := range chat.SendMessageStream(ctx, genai.Part{Text: message}) {
			if err != nil {
				return "", err
			}
			chunk := responseText(resp, "")
			if chunk == "" {
				continue
			}
			builder.WriteString(chunk)
			*delivered = true
			if onChunk != nil {
				onChunk(chunk)
			}
		}
		return builder.String(), nil
	}, system, message)
}

func (g *Generator) withRetries(ctx context.Context, call func(chat chatSession, delivered *bool) (string, error), system, message string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}
	if strings.TrimSpace(message) == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		chat, err := g.chats.Create(ctx, g.model, config, nil)
		if err != nil {
			return "", fmt.Errorf("create chat: %w", err)
		}

		delivered := false
		output, err := call(chat, &delivered)
		if err == nil {
			output = strings.TrimSpace(output)
			if output == "" {
				return "", errors.New("gemini api returned empty response")
			}
			return output, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		delay, retry := retryDelay(err, attempt)
		if !retry || delivered || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := waitFor(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("generate content: %w", lastErr)
}

var quotaDelayPattern = regexp.MustCompile(`(?i)retry(?:\s+(?:after|in))?\s+(\d+(?:\.\d+)?)\s*s`)

// retryDelay decides whether err is transient and how long to wait. Quota
// errors asking for a longer pause than maxRetryDelay are not retried.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	delay := baseRetryDelay * time.Duration(1<<(attempt-1))

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		if m := quotaDelayPattern.FindStringSubmatch(apiErr.Message); m != nil {
			seconds, perr := strconv.ParseFloat(m[1], 64)
			if perr == nil {
				requested := time.Duration(seconds * float64(time.Second))
				if requested > maxRetryDelay {
					return 0, false
				}
				if requested > delay {
					delay = requested
				}
			}
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
	default:
		return 0, false
	}

	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay, true
}

func responseText(resp *genai.GenerateContentResponse, sep string) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString(sep)
			}
			builder.WriteString(part.Text)
		}
	}
	return builder.String()
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
