package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/checkpoint"
	"github.com/spigell/interview-conductor/internal/interview"
	"github.com/spigell/interview-conductor/internal/scheduler"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [session-id]",
	Short: "Resume a saved interview session",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		resumeInterview(args)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func resumeInterview(args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, config := bootstrap()

	checkpoints, err := checkpoint.Open(ctx, config.Checkpoint)
	if err != nil {
		logger.Fatal("opening checkpoint store", zap.Error(err))
	}
	defer checkpoints.Close()

	var id string
	if len(args) == 1 {
		id = args[0]
	} else if id, err = pickSession(ctx, checkpoints); err != nil {
		logger.Fatal("choosing a session", zap.Error(err))
	}

	sess, err := checkpoints.Load(ctx, id)
	var corrupt *interview.CorruptCheckpoint
	switch {
	case errors.As(err, &corrupt):
		logger.Fatal("checkpoint cannot be resumed",
			zap.String("session_id", corrupt.SessionID),
			zap.String("reason", corrupt.Reason),
			zap.Error(corrupt.Cause),
		)
	case errors.Is(err, interview.ErrCheckpointNotFound):
		logger.Fatal("no saved session with this id", zap.String("session_id", id),
			zap.String("hint", "list saved sessions with the sessions command"),
		)
	case err != nil:
		logger.Fatal("loading checkpoint", zap.Error(err))
	}

	sched, err := scheduler.New(config.Scheduler, logger)
	if err != nil {
		logger.Fatal("creating a scheduler", zap.Error(err))
	}

	eng, err := newEngine(ctx, config, sess, sched, checkpoints, logger, os.Stdout)
	if err != nil {
		logger.Fatal("creating the engine", zap.Error(err))
	}

	logger.Info("resuming session",
		zap.String("session_id", sess.ID),
		zap.String("phase", string(sess.Phase)),
		zap.Int("version", sess.Version),
	)

	if err := eng.run(ctx, eng.coord.Resume); err != nil {
		logger.Fatal("interview failed", zap.Error(err))
	}
}

func pickSession(ctx context.Context, checkpoints checkpoint.Store) (string, error) {
	list, err := checkpoints.List(ctx)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", errors.New("there are no saved sessions")
	}

	items := make([]string, 0, len(list))
	for _, s := range list {
		items = append(items, sessionLabel(s))
	}

	picker := promptui.Select{
		Label: "Choose a session and press ENTER",
		Items: items,
		Size:  10,
	}

	i, _, err := picker.Run()
	if err != nil {
		return "", err
	}
	return list[i].SessionID, nil
}

func sessionLabel(s checkpoint.Summary) string {
	return fmt.Sprintf("%s %s / %s / %s / %s",
		s.SessionID, s.Candidate, s.JobTitle, s.Phase, s.LastActivityAt.Local().Format("2006-01-02 15:04"),
	)
}
