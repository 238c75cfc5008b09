package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mida-project/mission-cli/internal/report"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the canonical dataset as a spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		missions, err := st.LoadMissions(ctx)
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = filepath.Join(cfg.Report.OutputDir, "missions.xlsx")
		}
		if err := report.ExportXLSX(out, missions); err != nil {
			return err
		}
		fmt.Printf("exported %d missions to %s\n", len(missions), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file path")
	rootCmd.AddCommand(exportCmd)
}
