package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/checkpoint"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved interview sessions",
	Run: func(_ *cobra.Command, _ []string) {
		listSessions()
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func listSessions() {
	ctx := context.Background()
	logger, config := bootstrap()

	checkpoints, err := checkpoint.Open(ctx, config.Checkpoint)
	if err != nil {
		logger.Fatal("opening checkpoint store", zap.Error(err))
	}
	defer checkpoints.Close()

	list, err := checkpoints.List(ctx)
	if err != nil {
		logger.Fatal("listing sessions", zap.Error(err))
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tCANDIDATE\tJOB\tPHASE\tVERSION\tLAST ACTIVITY")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.SessionID, s.Candidate, s.JobTitle, s.Phase, s.Version, s.LastActivityAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
