package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mida-project/mission-cli/internal/scheduler"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the scheduler daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := scheduler.StopDaemon(cfg.Scheduler.PidFile)
		if err == nil {
			fmt.Printf("stopped daemon (pid %d)\n", pid)
			// Give the old process time to release the pid file and store.
			for i := 0; i < 50; i++ {
				if _, err := scheduler.ReadPidFile(cfg.Scheduler.PidFile); err != nil {
					break
				}
				time.Sleep(100 * time.Millisecond)
			}
		}
		return startCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)
}
