package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mida-project/mission-cli/internal/scheduler"
)

var statusRuns int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state and recent reconciliation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pid, err := scheduler.ReadPidFile(cfg.Scheduler.PidFile); err == nil {
			fmt.Printf("daemon: pid %d\n", pid)
		} else {
			fmt.Println("daemon: not running")
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(ctx, statusRuns)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no reconciliation runs recorded")
			return nil
		}

		fmt.Printf("\nlast %d run(s):\n", len(runs))
		for _, r := range runs {
			fmt.Printf("  %s  %s  batch=%d created=%d updated=%d noop=%d quarantined=%d skipped=%d\n",
				r.StartedAt.Format("2006-01-02 15:04"), r.RunID,
				r.BatchSize, r.Created, r.Updated, r.NoOps, r.Quarantined, r.Skipped)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusRuns, "runs", 5, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}
