package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mida-project/mission-cli/internal/config"
	"github.com/mida-project/mission-cli/internal/notify"
	"github.com/mida-project/mission-cli/internal/report"
	"github.com/mida-project/mission-cli/internal/scheduler"
	"github.com/mida-project/mission-cli/internal/source"
	"github.com/mida-project/mission-cli/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := scheduler.WritePidFile(cfg.Scheduler.PidFile); err != nil {
			return err
		}
		defer scheduler.RemovePidFile(cfg.Scheduler.PidFile) //nolint:errcheck

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sched, err := buildScheduler(st, false)
		if err != nil {
			return err
		}

		zap.L().Info("daemon started",
			zap.String("pid_file", cfg.Scheduler.PidFile),
			zap.Int("jobs", len(sched.Entries())))
		return sched.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}

// buildScheduler registers every enabled job from the configuration. With
// includeDisabled set, disabled jobs are registered too so run-once can
// still reach them.
func buildScheduler(st store.Store, includeDisabled bool) (*scheduler.Scheduler, error) {
	notifier := notify.New(cfg.Notify)
	sched := scheduler.New(notifier)

	rec, err := initReconciler(st)
	if err != nil {
		return nil, err
	}
	sources := initSources()

	jobs := []struct {
		jc  config.JobConfig
		job scheduler.Job
	}{
		{cfg.Scheduler.Reconcile, scheduler.JobFunc{
			JobName: "reconcile",
			Fn: func(ctx context.Context) error {
				batch, err := source.FetchAll(ctx, sources)
				if err != nil {
					return err
				}
				rep, err := rec.Reconcile(ctx, batch)
				if err != nil {
					return err
				}
				notifier.JobSucceeded(ctx, "reconcile", rep)
				// Chain the report off a successful run so the rendered
				// summary always reflects the changes just committed.
				return runReportJob(ctx, st)
			},
		}},
		{cfg.Scheduler.Report, scheduler.JobFunc{
			JobName: "report",
			Fn: func(ctx context.Context) error {
				return runReportJob(ctx, st)
			},
		}},
		{cfg.Scheduler.Backup, scheduler.BackupJob{
			DatasetPath: datasetPath(),
			ConfigPath:  "config.yaml",
			LogDir:      cfg.Scheduler.LogDir,
			BackupDir:   cfg.Scheduler.BackupDir,
		}},
		{cfg.Scheduler.Cleanup, scheduler.CleanupJob{
			LogDir:              cfg.Scheduler.LogDir,
			BackupDir:           cfg.Scheduler.BackupDir,
			LogRetentionDays:    cfg.Scheduler.LogRetentionDays,
			BackupRetentionDays: cfg.Scheduler.BackupRetentionDays,
		}},
	}

	for _, j := range jobs {
		if !j.jc.Enabled && !includeDisabled {
			zap.L().Info("job disabled", zap.String("job", j.job.Name()))
			continue
		}
		if err := sched.Add(j.job, j.jc.Schedule); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// runReportJob renders the change report for the most recent run and
// refreshes the spreadsheet export of the canonical dataset.
func runReportJob(ctx context.Context, st store.Store) error {
	runs, err := st.ListRuns(ctx, 1)
	if err != nil {
		return err
	}
	if len(runs) > 0 {
		path, err := report.Write(cfg.Report.OutputDir, &runs[0])
		if err != nil {
			return err
		}
		zap.L().Info("change report written", zap.String("path", path))
	}

	missions, err := st.LoadMissions(ctx)
	if err != nil {
		return err
	}
	exportPath := filepath.Join(cfg.Report.OutputDir, "missions.xlsx")
	if err := report.ExportXLSX(exportPath, missions); err != nil {
		return err
	}
	zap.L().Info("dataset export written",
		zap.String("path", exportPath),
		zap.Int("missions", len(missions)))
	return nil
}

// datasetPath returns the local dataset file for backup, empty when the
// dataset lives in postgres.
func datasetPath() string {
	if cfg.Store.Driver == "sqlite" {
		return cfg.Store.DatabaseURL
	}
	return ""
}
