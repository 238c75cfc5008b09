package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Inspect records held for manual review",
}

var quarantineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quarantined records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ListQuarantine(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("quarantine is empty")
			return nil
		}
		for _, q := range entries {
			fmt.Printf("%s  %-22s  %s (source %s)\n",
				q.ID, q.Reason, q.Name, q.SourceID)
			if len(q.CandidateIDs) > 0 {
				fmt.Printf("    candidates: %s\n", strings.Join(q.CandidateIDs, ", "))
			}
		}
		return nil
	},
}

var quarantineResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Discard a quarantine entry after manual review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteQuarantine(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("removed quarantine entry %s\n", args[0])
		return nil
	},
}

func init() {
	quarantineCmd.AddCommand(quarantineListCmd, quarantineResolveCmd)
	rootCmd.AddCommand(quarantineCmd)
}
