package scheduler

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// WritePidFile records the current process id, refusing to start when
// another live daemon already holds the file. A stale file from a dead
// process is replaced.
func WritePidFile(path string) error {
	if pid, err := ReadPidFile(path); err == nil {
		if processAlive(pid) {
			return eris.Errorf("scheduler: daemon already running with pid %d", pid)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "scheduler: create pid dir")
	}
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(path, []byte(pid+"\n"), 0o644); err != nil {
		return eris.Wrap(err, "scheduler: write pid file")
	}
	return nil
}

// ReadPidFile returns the pid recorded in the file.
func ReadPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrap(err, "scheduler: read pid file")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, eris.Wrap(err, "scheduler: parse pid file")
	}
	return pid, nil
}

// RemovePidFile deletes the pid file. Missing files are not an error.
func RemovePidFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return eris.Wrap(err, "scheduler: remove pid file")
}

// StopDaemon signals the daemon recorded in the pid file to shut down.
func StopDaemon(path string) (int, error) {
	pid, err := ReadPidFile(path)
	if err != nil {
		return 0, err
	}
	if !processAlive(pid) {
		_ = os.Remove(path)
		return 0, eris.Errorf("scheduler: no running daemon (stale pid %d)", pid)
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return 0, eris.Wrapf(err, "scheduler: signal pid %d", pid)
	}
	return pid, nil
}

// processAlive reports whether the pid refers to a live process we can
// signal.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
