package scheduler

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BackupJob snapshots the dataset file, configuration and logs into a
// timestamped directory under the backup root. The snapshot is staged in a
// temp directory and renamed into place, so a crash mid-backup never
// leaves a partial snapshot behind.
type BackupJob struct {
	DatasetPath string
	ConfigPath  string
	LogDir      string
	BackupDir   string
}

func (j BackupJob) Name() string { return "backup" }

func (j BackupJob) Run(ctx context.Context) error {
	if err := os.MkdirAll(j.BackupDir, 0o755); err != nil {
		return eris.Wrap(err, "backup: create backup dir")
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	staging, err := os.MkdirTemp(j.BackupDir, ".staging-")
	if err != nil {
		return eris.Wrap(err, "backup: create staging dir")
	}
	defer os.RemoveAll(staging)

	if err := copyIfExists(j.DatasetPath, filepath.Join(staging, filepath.Base(j.DatasetPath))); err != nil {
		return err
	}
	if err := copyIfExists(j.ConfigPath, filepath.Join(staging, filepath.Base(j.ConfigPath))); err != nil {
		return err
	}
	if j.LogDir != "" {
		if err := copyDir(ctx, j.LogDir, filepath.Join(staging, "logs")); err != nil {
			return err
		}
	}

	final := filepath.Join(j.BackupDir, "backup-"+stamp)
	if err := os.Rename(staging, final); err != nil {
		return eris.Wrap(err, "backup: finalize snapshot")
	}
	zap.L().Info("backup complete", zap.String("path", final))
	return nil
}

// CleanupJob prunes logs and backups past their retention windows. It only
// ever touches the log and backup directories.
type CleanupJob struct {
	LogDir              string
	BackupDir           string
	LogRetentionDays    int
	BackupRetentionDays int
}

func (j CleanupJob) Name() string { return "cleanup" }

func (j CleanupJob) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "cleanup"))
	now := time.Now().UTC()

	pruned, err := pruneOlderThan(j.LogDir, now.AddDate(0, 0, -j.LogRetentionDays))
	if err != nil {
		return err
	}
	log.Info("pruned old logs", zap.Int("removed", pruned))

	pruned, err = pruneOlderThan(j.BackupDir, now.AddDate(0, 0, -j.BackupRetentionDays))
	if err != nil {
		return err
	}
	log.Info("pruned old backups", zap.Int("removed", pruned))
	return nil
}

// pruneOlderThan removes direct children of dir whose mtime predates the
// cutoff. Hidden entries (in-flight staging dirs) are left alone.
func pruneOlderThan(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "cleanup: read dir %s", dir)
	}

	removed := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			return removed, eris.Wrapf(err, "cleanup: remove %s", path)
		}
		removed++
	}
	return removed, nil
}

func copyIfExists(src, dst string) error {
	in, err := os.Open(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "backup: open %s", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "backup: create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return eris.Wrapf(err, "backup: copy %s", src)
	}
	return eris.Wrapf(out.Close(), "backup: close %s", dst)
}

func copyDir(ctx context.Context, src, dst string) error {
	entries, err := os.ReadDir(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "backup: read dir %s", src)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return eris.Wrapf(err, "backup: create %s", dst)
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "backup: cancelled")
		}
		if e.IsDir() {
			continue
		}
		if err := copyIfExists(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
