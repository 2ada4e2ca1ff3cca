package idmap

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
)

const lockFileName = ".scan.lock"

// DirLock is a PID lock file guarding an idmap output directory so two
// scans do not interleave writes to the same cache.
type DirLock struct {
	path   string
	logger hclog.Logger
}

// processRunning reports whether a process with the given PID exists.
// On Unix, Signal(0) probes without delivering anything.
func processRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// AcquireDirLock attempts to take the scan lock for dir. It returns
// (nil, false, nil) when another live process holds it; locks left
// behind by dead processes are removed and re-taken.
func AcquireDirLock(dir string, logger hclog.Logger) (*DirLock, bool, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, false, err
	}

	lockPath := filepath.Join(dir, lockFileName)
	pid := os.Getpid()

	if _, err := os.Stat(lockPath); err == nil {
		logger.Debug("🔍 Lock file exists, checking if it's stale...")

		if data, err := os.ReadFile(lockPath); err == nil {
			contents := strings.TrimSpace(string(data))
			if oldPid, err := strconv.Atoi(contents); err == nil {
				if !processRunning(oldPid) {
					logger.Info("🧹 Removing stale lock from dead process", "pid", oldPid)
					os.Remove(lockPath)
				} else {
					logger.Debug("🔒 Lock held by active process", "pid", oldPid)
					return nil, false, nil
				}
			} else {
				logger.Info("🧹 Removing invalid lock file (couldn't parse PID)")
				os.Remove(lockPath)
			}
		} else {
			logger.Info("🧹 Removing unreadable lock file")
			os.Remove(lockPath)
		}
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			logger.Debug("🔒 Lock file exists, another scan is running")
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%d\n", pid); err != nil {
		os.Remove(lockPath)
		return nil, false, err
	}

	logger.Debug("🔒 Acquired scan lock", "pid", pid)
	return &DirLock{path: lockPath, logger: logger}, true, nil
}

// Release removes the lock file.
func (l *DirLock) Release() {
	if err := os.Remove(l.path); err != nil {
		l.logger.Debug("⚠️ Failed to remove lock file", "error", err)
	} else {
		l.logger.Debug("🔓 Released scan lock")
	}
}

// WaitForDirLock blocks until the scan lock for dir disappears or the
// timeout elapses. Checks every 100ms.
func WaitForDirLock(dir string, timeout time.Duration, logger hclog.Logger) error {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	lockPath := filepath.Join(dir, lockFileName)
	deadline := time.Now().Add(timeout)

	for {
		if _, err := os.Stat(lockPath); os.IsNotExist(err) {
			logger.Debug("✅ Scan lock released")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for scan lock on %s", dir)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
