package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mida-project/mission-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mission-cli",
	Short: "Mission record reconciliation engine",
	Long:  "Aggregates mission records from institutional sources, reconciles identities, merges with provenance tracking, classifies by framework, and runs the scheduled maintenance jobs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
