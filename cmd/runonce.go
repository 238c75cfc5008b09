package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runOnceCmd = &cobra.Command{
	Use:       "run-once <job>",
	Short:     "Run a single job immediately, outside the schedule",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"reconcile", "report", "backup", "cleanup"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sched, err := buildScheduler(st, true)
		if err != nil {
			return err
		}
		return sched.RunOnce(ctx, args[0])
	},
}

func init() {
	rootCmd.AddCommand(runOnceCmd)
}
