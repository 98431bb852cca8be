package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/checkpoint"
	"github.com/spigell/interview-conductor/internal/logger"
	"github.com/spigell/interview-conductor/internal/scheduler"
	"github.com/spigell/interview-conductor/internal/workflow"
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Start a new interview session",
	Run: func(cmd *cobra.Command, _ []string) {
		startInterview(cmd)
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)

	interviewCmd.Flags().String("job", "", "job profile yaml file")
	interviewCmd.Flags().String("candidate", "", "candidate profile yaml file")
	interviewCmd.Flags().Duration("budget", 30*time.Minute, "time budget for the interview")
	interviewCmd.Flags().Bool("no-ai", false, "use canned questions and heuristic scoring only")

	viper.BindPFlag("interview.job", interviewCmd.Flags().Lookup("job"))
	viper.BindPFlag("interview.candidate", interviewCmd.Flags().Lookup("candidate"))
	viper.BindPFlag("interview.budget", interviewCmd.Flags().Lookup("budget"))
}

// bootstrap builds the logger and config shared by the session commands.
func bootstrap() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Debug("starting with config",
		zap.Duration("budget", config.Interview.Budget),
		zap.String("checkpoint_backend", config.Checkpoint.Backend),
		zap.Bool("ai_enabled", config.AI.Enabled),
	)
	return logger, config
}

func startInterview(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, config := bootstrap()
	if off, _ := cmd.Flags().GetBool("no-ai"); off {
		config.AI.Enabled = false
	}

	logger.Info("starting the interview-conductor", zap.String("version", version))

	job, candidate, err := loadProfiles(config.Interview.Job, config.Interview.Candidate)
	if err != nil {
		logger.Fatal("loading profiles", zap.Error(err),
			zap.String("hint", "set interview.job and interview.candidate or pass --job and --candidate"),
		)
	}

	checkpoints, err := checkpoint.Open(ctx, config.Checkpoint)
	if err != nil {
		logger.Fatal("opening checkpoint store", zap.Error(err))
	}
	defer checkpoints.Close()

	sched, err := scheduler.New(config.Scheduler, logger)
	if err != nil {
		logger.Fatal("creating a scheduler", zap.Error(err))
	}

	budget := int(config.Interview.Budget / time.Second)
	sess, err := workflow.NewSession(uuid.NewString(), job, candidate, budget, sched, time.Now())
	if err != nil {
		logger.Fatal("planning the session", zap.Error(err))
	}

	eng, err := newEngine(ctx, config, sess, sched, checkpoints, logger, os.Stdout)
	if err != nil {
		logger.Fatal("creating the engine", zap.Error(err))
	}

	logger.Info("session planned",
		zap.String("session_id", sess.ID),
		zap.String("job", job.Title),
		zap.String("candidate", candidate.Name),
		zap.Int("topics", len(sess.Topics)),
	)

	if err := eng.run(ctx, eng.coord.Start); err != nil {
		logger.Fatal("interview failed", zap.Error(err))
	}
}
