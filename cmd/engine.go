package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/interview-conductor/internal/ai"
	"github.com/spigell/interview-conductor/internal/ai/gemini"
	"github.com/spigell/interview-conductor/internal/checkpoint"
	"github.com/spigell/interview-conductor/internal/evaluator"
	"github.com/spigell/interview-conductor/internal/interview"
	"github.com/spigell/interview-conductor/internal/lifecycle"
	"github.com/spigell/interview-conductor/internal/logger"
	"github.com/spigell/interview-conductor/internal/scheduler"
	"github.com/spigell/interview-conductor/internal/secrets"
	"github.com/spigell/interview-conductor/internal/session"
	"github.com/spigell/interview-conductor/internal/templates"
	"github.com/spigell/interview-conductor/internal/workflow"
)

const (
	commandSave   = "/save"
	commandStatus = "/status"
	commandEnd    = "/end"
)

// readAnswer prompts the candidate for one answer.
var readAnswer = func() (string, error) {
	prompt := promptui.Prompt{
		Label: fmt.Sprintf("Answer (%s, %s, %s)", commandSave, commandStatus, commandEnd),
	}
	return prompt.Run()
}

type engine struct {
	store *session.Store
	life  *lifecycle.Manager
	coord *workflow.Coordinator
	out   io.Writer
}

// turnFunc is one coordinator call that may stream question text.
type turnFunc func(ctx context.Context, stream chan<- string) (workflow.Turn, error)

func newEngine(ctx context.Context, cfg *Config, sess *interview.Session, sched *scheduler.Scheduler, checkpoints checkpoint.Store, base *zap.Logger, out io.Writer) (*engine, error) {
	writer, scorer, err := newAI(ctx, cfg.AI, base)
	if err != nil {
		return nil, err
	}

	eval, err := evaluator.New(cfg.Evaluator, scorer, base)
	if err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}

	store, err := session.NewStore(sess)
	if err != nil {
		return nil, err
	}

	life, err := lifecycle.New(store, checkpoints, cfg.Lifecycle, base)
	if err != nil {
		return nil, err
	}

	var set *templates.Set
	if cfg.Interview.Templates != "" {
		if set, err = templates.Load(cfg.Interview.Templates); err != nil {
			return nil, fmt.Errorf("question templates: %w", err)
		}
	}

	var timeout time.Duration
	if cfg.AI != nil {
		timeout = cfg.AI.RequestTimeout
	}

	coord, err := workflow.New(workflow.Config{
		Store:              store,
		Scheduler:          sched,
		Evaluator:          eval,
		Lifecycle:          life,
		Writer:             writer,
		Templates:          set,
		Logger:             base,
		GenerationAttempts: cfg.Interview.GenerationAttempts,
		GenerationTimeout:  timeout,
		OnSignal: func(s lifecycle.Signal) {
			if s.State == lifecycle.StateExpired {
				fmt.Fprintln(os.Stderr, "\nThe session expired after inactivity and was saved.")
				return
			}
			fmt.Fprintf(os.Stderr, "\nNo answer for a while: the session expires in %s.\n", s.Remaining)
		},
	})
	if err != nil {
		return nil, err
	}

	return &engine{store: store, life: life, coord: coord, out: out}, nil
}

// newAI returns nil capabilities when generation is disabled, which makes the
// engine use canned questions and heuristic scoring.
func newAI(ctx context.Context, cfg *AIConfig, base *zap.Logger) (ai.QuestionWriter, ai.RubricScorer, error) {
	if cfg == nil || !cfg.Enabled {
		base.Info("ai disabled, using canned questions and heuristic scoring")
		return nil, nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
		Value: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries,
		logger.ForAI(base, "gemini", cfg.Gemini.Model).With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries)))
	if err != nil {
		return nil, nil, err
	}

	aiLogger := logger.ForAI(base, "gemini", generator.Model())

	return gemini.NewInterviewer(generator, cfg.Gemini.MaxLogLength, aiLogger),
		gemini.NewRubric(generator, cfg.Gemini.MaxLogLength, aiLogger), nil
}

// run drives the conversation while the lifecycle timers tick beside it.
func (e *engine) run(ctx context.Context, first turnFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.life.Run(gCtx)
	})

	g.Go(func() error {
		defer cancel()
		return e.converse(gCtx, first)
	})

	return g.Wait()
}

func (e *engine) converse(ctx context.Context, first turnFunc) error {
	turn, err := e.ask(ctx, first)

	for {
		switch {
		case errors.Is(err, interview.ErrSessionExpired):
			fmt.Fprintf(e.out, "Resume it with: %s resume %s\n", app, e.store.ID())
			return nil
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return e.interrupted(ctx)
		case err != nil:
			e.save(ctx)
			return err
		case turn.Done:
			fmt.Fprintf(e.out, "\n%s\n", turn.Closing)
			_, err := e.coord.End(ctx)
			return err
		}

		answer, perr := readAnswer()
		switch {
		case errors.Is(perr, promptui.ErrInterrupt), errors.Is(perr, promptui.ErrEOF):
			return e.interrupted(ctx)
		case perr != nil:
			return perr
		}

		switch strings.TrimSpace(answer) {
		case commandSave:
			if err := e.save(ctx); err == nil {
				fmt.Fprintln(e.out, "Saved.")
			}
		case commandStatus:
			printStatus(e.out, e.coord.Status())
		case commandEnd:
			end, err := e.coord.End(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "\n%s\n", end.Closing)
			return nil
		default:
			turn, err = e.ask(ctx, func(ctx context.Context, stream chan<- string) (workflow.Turn, error) {
				return e.coord.Respond(ctx, answer, stream)
			})
		}
	}
}

// interrupted saves the session and tells the user how to pick it up again.
func (e *engine) interrupted(ctx context.Context) error {
	if err := e.save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Saved. Resume with: %s resume %s\n", app, e.store.ID())
	return nil
}

// save checkpoints with a context that survives the caller's cancellation.
func (e *engine) save(ctx context.Context) error {
	if err := e.coord.Save(context.WithoutCancel(ctx)); err != nil {
		fmt.Fprintf(e.out, "Saving failed: %v\n", err)
		return err
	}
	return nil
}

// ask runs fn, echoing streamed chunks. The recorded question is printed
// again if the stream did not deliver exactly that text.
func (e *engine) ask(ctx context.Context, fn turnFunc) (workflow.Turn, error) {
	stream := make(chan string, 16)
	done := make(chan struct{})

	var streamed strings.Builder
	go func() {
		defer close(done)
		for chunk := range stream {
			streamed.WriteString(chunk)
			fmt.Fprint(e.out, chunk)
		}
	}()

	fmt.Fprintln(e.out)
	turn, err := fn(ctx, stream)
	close(stream)
	<-done

	if turn.Recovered {
		fmt.Fprintln(e.out, "(The previous turn was still pending, so your last message was not recorded.)")
	}

	if err == nil && turn.Question != "" && strings.TrimSpace(streamed.String()) != turn.Question {
		if streamed.Len() > 0 {
			fmt.Fprintln(e.out)
		}
		fmt.Fprint(e.out, turn.Question)
	}
	if streamed.Len() > 0 || turn.Question != "" {
		fmt.Fprintln(e.out)
	}
	return turn, err
}

func printStatus(out io.Writer, s workflow.SessionSnapshot) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "phase\t%s\n", s.Session.Phase)
	fmt.Fprintf(tw, "lifecycle\t%s\n", s.Lifecycle)
	fmt.Fprintf(tw, "remaining\t%.0fs of %ds\n", s.RemainingSeconds, s.Session.BudgetSeconds)
	fmt.Fprintf(tw, "overall\t%.1f (%s, %d answers)\n", s.Assessment.Overall, s.Assessment.Trend, s.Assessment.Count)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "TOPIC\tSTATUS\tDEPTH\tCOVERAGE\tTIME")
	for _, t := range s.Session.Topics {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%.0fs/%ds\n", t.ID, t.Status, t.Depth, t.CoverageScore*100, t.SpentSeconds, t.EstimatedSeconds)
	}
}
