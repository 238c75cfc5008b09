package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mida-project/mission-cli/internal/scheduler"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the scheduler daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := scheduler.StopDaemon(cfg.Scheduler.PidFile)
		if err != nil {
			return err
		}
		fmt.Printf("sent SIGTERM to daemon (pid %d)\n", pid)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
