// Package lockfile guards a reframe state directory so that only one server
// writes to its SQLite analytics database at a time.
//
// The lock is an flock on <stateDir>/reframe.lock. The kernel drops it when the
// process exits, so a crash never leaves the directory locked; the file itself
// may linger and only carries owner details for error messages.
package lockfile

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "reframe.lock"

// Owner describes the process recorded in a lock file.
type Owner struct {
	PID     int
	Addr    string
	Started time.Time
}

func (o Owner) encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pid=%d\n", o.PID)
	if o.Addr != "" {
		fmt.Fprintf(&b, "addr=%s\n", o.Addr)
	}
	fmt.Fprintf(&b, "started=%s\n", o.Started.UTC().Format(time.RFC3339))
	return b.String()
}

// parseOwner reads key=value lines; unknown keys and bad values are ignored.
func parseOwner(content string) Owner {
	var o Owner
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			if pid, err := strconv.Atoi(value); err == nil && pid > 0 {
				o.PID = pid
			}
		case "addr":
			o.Addr = value
		case "started":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				o.Started = t
			}
		}
	}
	return o
}

// String renders the owner for humans, noting whether the pid is still alive.
func (o Owner) String() string {
	if o.PID == 0 {
		return "no process information"
	}
	state := "running"
	if !isProcessRunning(o.PID) {
		state = "not running, stale lock"
	}
	s := fmt.Sprintf("PID %d (%s)", o.PID, state)
	if o.Addr != "" {
		s += " serving " + o.Addr
	}
	if !o.Started.IsZero() {
		s += " since " + o.Started.Format(time.RFC3339)
	}
	return s
}

// Lock represents an active directory lock
type Lock struct {
	file  *os.File
	path  string
	owner Owner
}

// AcquireLock takes the exclusive lock on stateDir, creating the directory if
// needed. addr is recorded so a second instance can say who holds the lock.
func AcquireLock(stateDir, addr string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("lockfile.AcquireLock: attempting to acquire lock", "lock_path", lockPath)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("lockfile.AcquireLock: failed to create state directory", "error", err, "state_dir", stateDir)
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// O_TRUNC is deferred until the flock is held so a losing contender
	// never wipes the winner's owner details.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		slog.Error("lockfile.AcquireLock: failed to open lock file", "error", err, "lock_path", lockPath)
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		existing := readOwner(lockPath)
		slog.Error("lockfile.AcquireLock: another reframe instance holds the lock",
			"error", err, "lock_path", lockPath, "owner", existing.String())
		return nil, &LockError{LockPath: lockPath, Owner: existing, Cause: err}
	}

	owner := Owner{PID: os.Getpid(), Addr: addr, Started: time.Now()}
	if err := writeOwner(file, owner); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		slog.Error("lockfile.AcquireLock: failed to write owner", "error", err, "lock_path", lockPath)
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("lockfile.AcquireLock: acquired state directory lock", "lock_path", lockPath, "pid", owner.PID)
	return &Lock{file: file, path: lockPath, owner: owner}, nil
}

func writeOwner(f *os.File, o Owner) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(o.encode()), 0); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		slog.Warn("lockfile.writeOwner: failed to sync lock file", "error", err, "lock_path", f.Name())
	}
	return nil
}

func readOwner(lockPath string) Owner {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return Owner{}
	}
	return parseOwner(string(data))
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Owner returns the details written when the lock was taken.
func (l *Lock) Owner() Owner { return l.owner }

// Release unlocks and removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	var firstErr error
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("Lock.Release: failed to release flock", "error", err, "lock_path", l.path)
		firstErr = err
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Lock.Release: failed to remove lock file", "error", err, "lock_path", l.path)
	}
	if err := l.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	l.file = nil

	slog.Info("Lock.Release: released state directory lock", "lock_path", l.path)
	return firstErr
}

// LockError is returned when another process already holds the lock.
type LockError struct {
	LockPath string
	Owner    Owner
	Cause    error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("another reframe instance is using this state directory (lock %s, held by %s); "+
		"stop it or point --state-dir elsewhere", e.LockPath, e.Owner)
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// isProcessRunning sends signal 0, which only checks that the pid exists.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
