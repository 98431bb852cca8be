// Package workflow runs the per-turn control loop of an interview: record the
// response, score it, update the topic plan, resolve the next directive and
// produce the next question.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/ai"
	"github.com/spigell/interview-conductor/internal/directive"
	"github.com/spigell/interview-conductor/internal/evaluator"
	"github.com/spigell/interview-conductor/internal/interview"
	"github.com/spigell/interview-conductor/internal/lifecycle"
	"github.com/spigell/interview-conductor/internal/logger"
	"github.com/spigell/interview-conductor/internal/scheduler"
	"github.com/spigell/interview-conductor/internal/session"
	"github.com/spigell/interview-conductor/internal/templates"
)

const (
	defaultGenerationAttempts = 2
	defaultGenerationTimeout  = 90 * time.Second
)

// Config wires the collaborators of a Coordinator.
type Config struct {
	Store     *session.Store
	Scheduler *scheduler.Scheduler
	Evaluator *evaluator.Evaluator
	Lifecycle *lifecycle.Manager
	// Writer produces question text. When nil every question is canned.
	Writer    ai.QuestionWriter
	Templates *templates.Set
	Logger    *zap.Logger

	// GenerationAttempts is the number of WriteQuestion calls before the
	// canned fallback is used.
	GenerationAttempts int
	GenerationTimeout  time.Duration

	// OnSignal receives lifecycle warnings and expiry.
	OnSignal func(lifecycle.Signal)
	Clock    func() time.Time
}

// Turn is the result of one step of the interview.
type Turn struct {
	// Question is the complete text of the next question. Streamed chunks are
	// informational; this value is what was recorded.
	Question   string
	Directive  interview.QuestionDirective
	Fallback   bool
	Evaluation *interview.EvaluationRecord
	// Closing is set once no topic remains or the session ended.
	Closing string
	Done    bool
	// Recovered is set by Respond when the previous turn was interrupted
	// after its answer was recorded. The new text was not recorded; Question
	// is the question that turn should have asked.
	Recovered bool
}

// SessionSnapshot is the read-only view returned by Status.
type SessionSnapshot struct {
	Session          *interview.Session
	Assessment       interview.AggregateAssessment
	Lifecycle        lifecycle.State
	RemainingSeconds float64
}

// Coordinator processes at most one turn at a time. Respond and Start fail
// fast with interview.ErrTurnInProgress instead of queueing.
type Coordinator struct {
	store     *session.Store
	sched     *scheduler.Scheduler
	eval      *evaluator.Evaluator
	resolver  *directive.Resolver
	life      *lifecycle.Manager
	writer    ai.QuestionWriter
	templates *templates.Set
	logger    *zap.Logger
	now       func() time.Time
	attempts  int
	timeout   time.Duration

	turn sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	ended  bool
	events []Event
}

// New creates a coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil || cfg.Scheduler == nil || cfg.Evaluator == nil || cfg.Lifecycle == nil {
		return nil, errors.New("store, scheduler, evaluator and lifecycle are required")
	}

	set := cfg.Templates
	if set == nil {
		var err error
		if set, err = templates.Default(); err != nil {
			return nil, fmt.Errorf("load question templates: %w", err)
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	attempts := cfg.GenerationAttempts
	if attempts <= 0 {
		attempts = defaultGenerationAttempts
	}
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}

	c := &Coordinator{
		store:     cfg.Store,
		sched:     cfg.Scheduler,
		eval:      cfg.Evaluator,
		resolver:  directive.New(cfg.Scheduler, cfg.Evaluator),
		life:      cfg.Lifecycle,
		writer:    cfg.Writer,
		templates: set,
		logger:    logger.ForSession(cfg.Logger, cfg.Store.ID()),
		now:       clock,
		attempts:  attempts,
		timeout:   timeout,
	}

	onSignal := cfg.OnSignal
	cfg.Lifecycle.OnSignal(func(s lifecycle.Signal) {
		c.record(EventLifecycleSignal, "", string(s.State))
		if onSignal != nil {
			onSignal(s)
		}
	})

	return c, nil
}

// Start activates a fresh session and asks the opening question.
func (c *Coordinator) Start(ctx context.Context, stream chan<- string) (Turn, error) {
	if !c.turn.TryLock() {
		return Turn{}, interview.ErrTurnInProgress
	}
	defer c.turn.Unlock()

	snap := c.store.Snapshot()
	if len(snap.Questions) > 0 {
		return Turn{}, fmt.Errorf("session %s has already started", snap.ID)
	}
	if err := c.life.Start(c.now()); err != nil {
		return Turn{}, err
	}
	c.record(EventSessionStarted, "", fmt.Sprintf("%d topics, %ds budget", len(snap.Topics), snap.BudgetSeconds))

	turnCtx, done, err := c.beginTurn(ctx)
	if err != nil {
		return Turn{}, err
	}
	defer done()

	turn, err := c.advance(turnCtx, stream)
	if err != nil {
		return Turn{}, c.fail(ctx, err)
	}
	return turn, nil
}

// Resume reactivates a session loaded from a checkpoint. If a question is
// outstanding it is returned as is and the session is not modified.
func (c *Coordinator) Resume(ctx context.Context, stream chan<- string) (Turn, error) {
	if !c.turn.TryLock() {
		return Turn{}, interview.ErrTurnInProgress
	}
	defer c.turn.Unlock()

	// A session whose turn was cancelled in this process is still running.
	if !c.life.State().Running() {
		if err := c.life.Resume(c.now()); err != nil {
			return Turn{}, err
		}
	}

	snap := c.store.Snapshot()
	c.record(EventSessionResumed, "", fmt.Sprintf("version %d", snap.Version))

	switch {
	case snap.Phase.Closing():
		return Turn{Closing: c.templates.ClosingLine(len(snap.Questions)), Done: true}, nil
	case snap.Outstanding():
		q := snap.Questions[len(snap.Questions)-1]
		d := interview.QuestionDirective{TopicID: q.TopicID, Depth: q.Depth, Mode: q.Mode}
		if t := snap.Topic(q.TopicID); t != nil {
			d.Skill = t.Skill
			d.Category = t.Category
		}
		return Turn{Question: q.Text, Directive: d, Fallback: q.Fallback}, nil
	}

	return c.catchUp(ctx, snap, stream)
}

// catchUp finishes a turn that stopped between recording an answer and
// asking the next question: the answer is scored if needed and the next
// question is asked.
func (c *Coordinator) catchUp(ctx context.Context, snap *interview.Session, stream chan<- string) (Turn, error) {
	turnCtx, done, err := c.beginTurn(ctx)
	if err != nil {
		return Turn{}, err
	}
	defer done()

	var rec *interview.EvaluationRecord
	if len(snap.Evaluations) < len(snap.Responses) {
		r, err := c.evaluate(turnCtx)
		if err != nil {
			return Turn{}, c.fail(ctx, err)
		}
		rec = &r
	}

	turn, err := c.advance(turnCtx, stream)
	if err != nil {
		return Turn{}, c.fail(ctx, err)
	}
	turn.Evaluation = rec
	c.record(EventTurnRecovered, turn.Directive.TopicID, "previous turn completed")
	return turn, nil
}

// Respond records the candidate's answer to the outstanding question and
// produces the next question, or the closing line when no topic remains.
// If an earlier turn was cancelled before asking its question, that turn is
// completed instead and text is discarded.
func (c *Coordinator) Respond(ctx context.Context, text string, stream chan<- string) (Turn, error) {
	if !c.turn.TryLock() {
		return Turn{}, interview.ErrTurnInProgress
	}
	defer c.turn.Unlock()

	if err := c.life.Accepting(); err != nil {
		return Turn{}, err
	}
	snap := c.store.Snapshot()
	if snap.Phase.Closing() {
		return Turn{}, interview.ErrSessionClosed
	}
	if len(snap.Questions) > 0 && !snap.Outstanding() {
		// The text answers nothing the candidate has seen yet.
		turn, err := c.catchUp(ctx, snap, stream)
		if err != nil {
			return Turn{}, err
		}
		turn.Recovered = true
		return turn, nil
	}

	turnCtx, done, err := c.beginTurn(ctx)
	if err != nil {
		return Turn{}, err
	}
	defer done()

	now := c.now()
	if err := c.store.AppendResponse(interview.Response{Text: text, At: now}); err != nil {
		return Turn{}, c.fail(ctx, err)
	}
	c.touch(now)
	c.record(EventResponseRecorded, "", fmt.Sprintf("%d words", len(strings.Fields(text))))

	rec, err := c.evaluate(turnCtx)
	if err != nil {
		return Turn{}, c.fail(ctx, err)
	}

	turn, err := c.advance(turnCtx, stream)
	turn.Evaluation = &rec
	if err != nil {
		return turn, c.fail(ctx, err)
	}
	return turn, nil
}

// Save persists a checkpoint now and counts as activity.
func (c *Coordinator) Save(ctx context.Context) error {
	now := c.now()
	if err := c.life.Touch(now); err == nil {
		if err := c.store.Touch(now); err != nil {
			return c.fail(ctx, err)
		}
	}
	if err := c.life.Save(ctx, now); err != nil {
		return err
	}
	c.record(EventCheckpointSaved, "", fmt.Sprintf("version %d", c.store.Version()))
	return nil
}

// Status returns a snapshot with the current aggregate assessment.
func (c *Coordinator) Status() SessionSnapshot {
	snap := c.store.Snapshot()
	return SessionSnapshot{
		Session:          snap,
		Assessment:       c.eval.Aggregate(snap.Evaluations),
		Lifecycle:        c.life.State(),
		RemainingSeconds: snap.RemainingSeconds(),
	}
}

// End cancels any in-flight turn, discarding its question, completes the
// session and archives its checkpoint. Calling End again is a no-op.
func (c *Coordinator) End(ctx context.Context) (Turn, error) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return Turn{Done: true}, nil
	}
	c.ended = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	// Wait for the cancelled turn to unwind.
	c.turn.Lock()
	defer c.turn.Unlock()

	err := c.store.Mutate(func(s *interview.Session) error {
		if !s.Phase.Closing() {
			c.sched.WrapUp(s)
		}
		s.Phase = interview.PhaseCompleted
		return nil
	})
	if err != nil {
		return Turn{}, err
	}

	if err := c.life.Complete(ctx, c.now()); err != nil {
		return Turn{}, err
	}

	snap := c.store.Snapshot()
	c.record(EventSessionEnded, "", fmt.Sprintf("%d questions", len(snap.Questions)))
	return Turn{Closing: c.templates.ClosingLine(len(snap.Questions)), Done: true}, nil
}

func (c *Coordinator) beginTurn(ctx context.Context) (context.Context, func(), error) {
	turnCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		cancel()
		return nil, nil, interview.ErrSessionClosed
	}
	c.cancel = cancel

	return turnCtx, func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}, nil
}

// touch counts turn progress as activity. It fails only when the lifecycle
// left the accepting states mid-turn, which the next turn reports.
func (c *Coordinator) touch(now time.Time) {
	if err := c.life.Touch(now); err != nil {
		c.logger.Warn("lifecycle touch failed", zap.String("state", string(c.life.State())), zap.Error(err))
	}
}

func (c *Coordinator) isEnded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// evaluate scores the latest response and applies the outcome to its topic.
func (c *Coordinator) evaluate(ctx context.Context) (interview.EvaluationRecord, error) {
	snap := c.store.Snapshot()
	n := len(snap.Responses)
	if n == 0 {
		return interview.EvaluationRecord{}, interview.ErrNoOutstandingQuestion
	}
	q, r := snap.Questions[n-1], snap.Responses[n-1]

	topic := snap.Topic(q.TopicID)
	if topic == nil {
		return interview.EvaluationRecord{}, &interview.InvariantViolation{Rule: "question-topic", Detail: fmt.Sprintf("unknown topic %q", q.TopicID)}
	}

	rec, err := c.eval.Score(ctx, evaluator.Request{
		TurnIndex: n,
		Question:  q.Text,
		Response:  r.Text,
		Topic:     *topic,
		Job:       &snap.Job,
		At:        r.At,
	})
	if err != nil {
		return interview.EvaluationRecord{}, err
	}

	var outcome scheduler.Outcome
	err = c.store.Mutate(func(s *interview.Session) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Evaluations = append(s.Evaluations, rec)
		out, err := c.sched.RecordOutcome(s, rec, scheduler.TopicElapsed(q.AskedAt, r.At))
		outcome = out
		return err
	})
	if err != nil {
		return interview.EvaluationRecord{}, err
	}

	c.record(EventResponseScored, rec.TopicID, fmt.Sprintf("mean %.1f, confidence %s, source %s", rec.Mean(), rec.Confidence, rec.Source))
	if outcome.Completed {
		c.record(EventTopicCompleted, outcome.TopicID, outcome.Reason)
	}
	return rec, nil
}

// advance resolves the next directive, generates its question and records
// it together with the scheduler commit in one mutation.
func (c *Coordinator) advance(ctx context.Context, stream chan<- string) (Turn, error) {
	snap := c.store.Snapshot()

	d, err := c.resolver.Resolve(snap)
	if errors.Is(err, interview.ErrNoTopicsRemaining) {
		return c.wrapUp(snap)
	}
	if err != nil {
		return Turn{}, err
	}

	text, fallback, err := c.generate(ctx, snap, d, stream)
	if err != nil {
		return Turn{}, err
	}

	now := c.now()
	err = c.store.Mutate(func(s *interview.Session) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Outstanding() {
			return interview.ErrQuestionOutstanding
		}
		if err := c.sched.Commit(s, d); err != nil {
			return err
		}
		s.Questions = append(s.Questions, interview.Question{
			TopicID:  d.TopicID,
			Text:     text,
			Mode:     d.Mode,
			Depth:    d.Depth,
			AskedAt:  now,
			Fallback: fallback,
		})
		return nil
	})
	if err != nil {
		return Turn{}, err
	}

	c.touch(now)
	c.record(EventQuestionAsked, d.TopicID, fmt.Sprintf("%s at %s depth", d.Mode, d.Depth))
	return Turn{Question: text, Directive: d, Fallback: fallback}, nil
}

func (c *Coordinator) wrapUp(snap *interview.Session) (Turn, error) {
	if err := c.store.Mutate(func(s *interview.Session) error {
		c.sched.WrapUp(s)
		return nil
	}); err != nil {
		return Turn{}, err
	}

	c.record(EventWrappingUp, "", fmt.Sprintf("%.0fs of budget left", snap.RemainingSeconds()))
	return Turn{Closing: c.templates.ClosingLine(len(snap.Questions)), Done: true}, nil
}

// generate asks the writer for the question, retrying per the configured
// attempts, and falls back to a canned question. Only cancellation of ctx
// is returned as an error.
func (c *Coordinator) generate(ctx context.Context, snap *interview.Session, d interview.QuestionDirective, stream chan<- string) (string, bool, error) {
	seq := len(snap.Questions)
	if c.writer == nil {
		return c.templates.Question(d, seq), true, nil
	}

	req := ai.QuestionRequest{Directive: d, Job: &snap.Job, Candidate: &snap.Candidate}
	if seq > 0 {
		req.PreviousQuestion = snap.Questions[seq-1].Text
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		genCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := c.writer.WriteQuestion(genCtx, req, stream)
		cancel()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		if err == nil {
			if text = strings.TrimSpace(text); text != "" {
				return text, false, nil
			}
			err = errors.New("empty question")
		}

		lastErr = err
		c.logger.Warn("question generation failed",
			zap.Int("attempt", attempt),
			logger.Topic(d.TopicID),
			zap.Error(err),
		)
	}

	failure := &interview.GenerationFailure{Op: "write question", Attempts: c.attempts, Cause: lastErr}
	c.logger.Warn("using canned question", zap.Error(failure))
	c.record(EventFallbackQuestion, d.TopicID, failure.Error())

	return c.templates.Question(d, seq), true, nil
}

// fail maps turn errors: invariant violations suspend the session and
// cancellation by End is reported as interview.ErrTurnCancelled.
func (c *Coordinator) fail(ctx context.Context, err error) error {
	var violation *interview.InvariantViolation
	switch {
	case errors.As(err, &violation):
		c.logger.Error("invariant violation, suspending session", zap.Error(err))
		if serr := c.life.Suspend(context.WithoutCancel(ctx), c.now(), err); serr != nil {
			c.logger.Error("suspend failed", zap.Error(serr))
		}
		c.record(EventSessionSuspended, "", violation.Rule)
		return fmt.Errorf("turn aborted: %w", err)

	case errors.Is(err, context.Canceled) && c.isEnded():
		c.record(EventTurnCancelled, "", "ended during turn")
		return fmt.Errorf("%w: %w", interview.ErrTurnCancelled, err)
	}
	return err
}
