package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ExclusiveLock is the lock file format that claims single-writer access to a
// file such as the lesson journal.
type ExclusiveLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// LockHeldError reports a lock owned by another live process.
type LockHeldError struct {
	Path string
	Lock ExclusiveLock
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("%s is locked by %s (PID %d on %s, started %s)",
		e.Path, e.Lock.Holder, e.Lock.PID, e.Lock.Hostname, e.Lock.StartedAt.Format(time.RFC3339))
}

// LockPath returns the lock file guarding target.
func LockPath(target string) string {
	return filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".lock")
}

// AcquireExclusiveLock creates the lock file for target. A lock left by a dead
// local process is reclaimed. Returns the lock file path for cleanup.
func AcquireExclusiveLock(target, holder string) (lockPath string, err error) {
	lockPath = LockPath(target)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return "", fmt.Errorf("creating lock directory: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}
	lock := ExclusiveLock{
		Holder:    holder,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	// Two attempts: the second follows reclaiming a stale lock.
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, werr := f.Write(data)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(lockPath)
				return "", fmt.Errorf("failed to write lock: %w", errors.Join(werr, cerr))
			}
			return lockPath, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to create exclusive lock: %w", err)
		}

		existing, err := ReadLock(lockPath)
		if err == nil && isProcessAlive(existing.PID, existing.Hostname) {
			return "", &LockHeldError{Path: target, Lock: *existing}
		}
		// Stale or unreadable lock.
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}
	return "", fmt.Errorf("failed to acquire lock %s: lost race with another process", lockPath)
}

// ReadLock decodes an existing lock file.
func ReadLock(lockPath string) (*ExclusiveLock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var lock ExclusiveLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parsing lock file %s: %w", lockPath, err)
	}
	return &lock, nil
}

// ReleaseExclusiveLock removes the lock file. Use with defer.
func ReleaseExclusiveLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}

	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove exclusive lock: %w", err)
	}

	return nil
}

// isProcessAlive checks if a process with the given PID exists on the given hostname.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		// Can't check hostname, assume remote/alive
		return true
	}

	if !strings.EqualFold(hostname, currentHost) {
		// Remote host - can't check, assume alive
		return true
	}

	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 checks existence without delivering anything.
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	// EPERM: the process exists but belongs to someone else.
	if errors.Is(err, syscall.EPERM) {
		return true
	}

	return false
}
