package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLockAcquisition(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, ":8080")
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	lockPath := filepath.Join(dir, LockFileName)
	if lock.Path() != lockPath {
		t.Errorf("Path() = %q, want %q", lock.Path(), lockPath)
	}

	content, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	owner := parseOwner(string(content))
	if owner.PID != os.Getpid() {
		t.Errorf("lock file pid = %d, want %d", owner.PID, os.Getpid())
	}
	if owner.Addr != ":8080" {
		t.Errorf("lock file addr = %q, want :8080", owner.Addr)
	}
	if owner.Started.IsZero() {
		t.Error("lock file should record a start time")
	}
}

func TestLockConflict(t *testing.T) {
	dir := t.TempDir()

	lock1, err := AcquireLock(dir, ":8080")
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2, err := AcquireLock(dir, ":9090")
	if err == nil {
		lock2.Release()
		t.Fatalf("Second lock acquisition should have failed")
	}

	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("Expected LockError, got: %T", err)
	}
	if lockErr.Owner.PID != os.Getpid() || lockErr.Owner.Addr != ":8080" {
		t.Errorf("conflict should report the holder, got %+v", lockErr.Owner)
	}

	msg := err.Error()
	if !strings.Contains(msg, "another reframe instance") {
		t.Errorf("Error message should mention another instance: %s", msg)
	}
	if !strings.Contains(msg, dir) {
		t.Errorf("Error message should contain the lock path: %s", msg)
	}

	// The losing attempt must not clobber the holder's details.
	content, err := os.ReadFile(filepath.Join(dir, LockFileName))
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	if got := parseOwner(string(content)).Addr; got != ":8080" {
		t.Errorf("lock file addr after conflict = %q, want :8080", got)
	}
}

func TestLockRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, "")
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	lockPath := filepath.Join(dir, LockFileName)

	if err := lock.Release(); err != nil {
		t.Errorf("Failed to release lock: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("Lock file should be removed after release: %s", lockPath)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("Multiple releases should be safe: %v", err)
	}
}

func TestLockReacquisition(t *testing.T) {
	dir := t.TempDir()

	lock1, err := AcquireLock(dir, "")
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	lock1.Release()

	lock2, err := AcquireLock(dir, "")
	if err != nil {
		t.Fatalf("Failed to reacquire lock after release: %v", err)
	}
	defer lock2.Release()
}

func TestParseOwner(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name    string
		content string
		want    Owner
	}{
		{"full", "pid=12345\naddr=:8080\nstarted=2026-01-02T03:04:05Z\n", Owner{PID: 12345, Addr: ":8080", Started: started}},
		{"pid only", "pid=67890\n", Owner{PID: 67890}},
		{"unknown keys ignored", "pid=1\nother=info\n", Owner{PID: 1}},
		{"empty", "", Owner{}},
		{"invalid pid", "pid=abc", Owner{}},
		{"negative pid", "pid=-4", Owner{}},
		{"no equals", "pid12345", Owner{}},
		{"bad time", "pid=7\nstarted=yesterday", Owner{PID: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseOwner(tt.content)
			if got.PID != tt.want.PID || got.Addr != tt.want.Addr || !got.Started.Equal(tt.want.Started) {
				t.Errorf("parseOwner(%q) = %+v, want %+v", tt.content, got, tt.want)
			}
		})
	}
}

func TestOwnerEncodeRoundTrip(t *testing.T) {
	o := Owner{PID: 42, Addr: "127.0.0.1:8080", Started: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	got := parseOwner(o.encode())
	if got.PID != o.PID || got.Addr != o.Addr || !got.Started.Equal(o.Started) {
		t.Errorf("round trip = %+v, want %+v", got, o)
	}
}

func TestOwnerString(t *testing.T) {
	if got := (Owner{}).String(); got != "no process information" {
		t.Errorf("empty owner String() = %q", got)
	}
	self := Owner{PID: os.Getpid(), Addr: ":8080"}
	if got := self.String(); !strings.Contains(got, "(running)") || !strings.Contains(got, ":8080") {
		t.Errorf("own process String() = %q", got)
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !isProcessRunning(os.Getpid()) {
		t.Errorf("Our own process should be detected as running")
	}
	if isProcessRunning(999999) {
		t.Logf("High PID detected as running (unexpected but not necessarily wrong)")
	}
}

func TestNonExistentDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state", "nested")

	lock, err := AcquireLock(dir, "")
	if err != nil {
		t.Fatalf("Should be able to create directory and acquire lock: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("Directory should have been created: %s", dir)
	}
}
