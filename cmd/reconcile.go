package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mida-project/mission-cli/internal/report"
	"github.com/mida-project/mission-cli/internal/source"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Fetch all sources and run one reconciliation now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := initReconciler(st)
		if err != nil {
			return err
		}

		batch, err := source.FetchAll(ctx, initSources())
		if err != nil {
			return err
		}

		rep, err := rec.Reconcile(ctx, batch)
		if err != nil {
			return err
		}

		fmt.Print(report.Format(rep))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
