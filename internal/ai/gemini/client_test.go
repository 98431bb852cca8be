package gemini

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue map[string][]fakeChatResponse
}

type chatCallRecord struct {
	model  string
	config *genai.GenerateContentConfig
	chat   *fakeChat
}

type fakeChatResponse struct {
	resp *genai.GenerateContentResponse
	// chunks are streamed one by one before err, if any.
	chunks []string
	err    error
}

type fakeChat struct {
	mu       sync.Mutex
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	return f.response.resp, f.response.err
}

func (f *fakeChat) SendMessageStream(ctx context.Context, parts ...genai.Part) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.mu.Lock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	res := f.response
	f.mu.Unlock()

	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, chunk := range res.chunks {
			if !yield(textResponse(chunk), nil) {
				return
			}
		}
		if res.err != nil {
			yield(nil, res.err)
		}
	}
}

func newFakeChatCreator() *fakeChatCreator {
	return &fakeChatCreator{queue: make(map[string][]fakeChatResponse)}
}

func (f *fakeChatCreator) enqueue(model string, resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[model] = append(f.queue[model], fakeChatResponse{resp: resp, err: err})
}

func (f *fakeChatCreator) enqueueStream(model string, chunks []string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[model] = append(f.queue[model], fakeChatResponse{chunks: chunks, err: err})
}

func (f *fakeChatCreator) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	responses := f.queue[model]
	if len(responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := responses[0]
	f.queue[model] = responses[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, chat: chat})
	return chat, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func stubWait(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	original := waitFor
	waitFor = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { waitFor = original })
	return &waits
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	waits := stubWait(t)

	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-pro", nil, tempErr)
	chats.enqueue("gemini-pro", textResponse("retry ok"), nil)

	g := &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: 2,
		logger:     zap.NewNop(),
	}

	output, err := g.GenerateContent(context.Background(), "system", "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}

	if len(*waits) != 1 || (*waits)[0] != baseRetryDelay {
		t.Fatalf("expected one wait of %s, got %v", baseRetryDelay, *waits)
	}

	for _, call := range chats.calls {
		if call.config == nil || call.config.SystemInstruction == nil {
			t.Fatalf("expected system instruction to be set")
		}
		if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
		if len(call.chat.messages) != 1 || call.chat.messages[0] != "message" {
			t.Fatalf("unexpected chat message: %+v", call.chat.messages)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	stubWait(t)

	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-pro", nil, tempErr)
	chats.enqueue("gemini-pro", nil, tempErr)

	g := &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: 2,
		logger:     zap.NewNop(),
	}

	_, err := g.GenerateContent(context.Background(), "sys", "msg")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected wrapped api error, got %v", err)
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	stubWait(t)

	chats := newFakeChatCreator()
	quotaErr := genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	}
	chats.enqueue("gemini-pro", nil, quotaErr)

	g := &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: 3,
		logger:     zap.NewNop(),
	}

	_, err := g.GenerateContent(context.Background(), "sys", "msg")
	if err == nil {
		t.Fatal("expected error when quota delay too long")
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGeneratorHonoursShortQuotaDelay(t *testing.T) {
	waits := stubWait(t)

	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", nil, genai.APIError{Code: http.StatusTooManyRequests, Message: "Please retry in 7.5s."})
	chats.enqueue("gemini-pro", textResponse("ok"), nil)

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "", "msg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*waits) != 1 || (*waits)[0] != 7500*time.Millisecond {
		t.Fatalf("expected the requested delay, got %v", *waits)
	}

	if chats.calls[0].config.SystemInstruction != nil {
		t.Fatalf("expected no system instruction for empty system prompt")
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	stubWait(t)

	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error")
	}
	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGeneratorStreamDeliversChunks(t *testing.T) {
	stubWait(t)

	chats := newFakeChatCreator()
	chats.enqueueStream("gemini-pro", nil, genai.APIError{Code: http.StatusServiceUnavailable})
	chats.enqueueStream("gemini-pro", []string{"How would ", "you scale ", "it?"}, nil)

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 2, logger: zap.NewNop()}

	var got []string
	output, err := g.GenerateStream(context.Background(), "sys", "msg", func(chunk string) {
		got = append(got, chunk)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if output != "How would you scale it?" {
		t.Fatalf("unexpected output: %q", output)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %v", got)
	}
}

func TestGeneratorStreamDoesNotRetryAfterDelivery(t *testing.T) {
	stubWait(t)

	chats := newFakeChatCreator()
	chats.enqueueStream("gemini-pro", []string{"partial "}, genai.APIError{Code: http.StatusServiceUnavailable})
	chats.enqueueStream("gemini-pro", []string{"never used"}, nil)

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.GenerateStream(context.Background(), "sys", "msg", nil); err == nil {
		t.Fatal("expected error after partial delivery")
	}
	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGeneratorStopsOnCancelledContext(t *testing.T) {
	stubWait(t)

	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", nil, context.Canceled)

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 3, logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.GenerateContent(ctx, "sys", "msg")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
