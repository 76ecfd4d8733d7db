package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquirePIDLockWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "nested", "launchbridge.lock")
	l, err := AcquirePIDLock(lockPath)
	if err != nil {
		t.Fatalf("AcquirePIDLock: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	pid, err := Holder(lockPath)
	if err != nil {
		t.Fatalf("Holder: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("Holder = %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireSweepLockIsExclusivePerSweep(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := AcquireSweepLock(dir, "team/sweep-1")
	if err != nil {
		t.Fatalf("AcquireSweepLock: %v", err)
	}

	// flock is per open file description, so a second open in the same
	// process conflicts just like another process would.
	if _, err := AcquireSweepLock(dir, "team/sweep-1"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	other, err := AcquireSweepLock(dir, "sweep-2")
	if err != nil {
		t.Fatalf("lock for another sweep: %v", err)
	}
	_ = other.Release()

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := AcquireSweepLock(dir, "team/sweep-1")
	if err != nil {
		t.Fatalf("re-acquire after release: %v", err)
	}
	_ = again.Release()
}

func TestSweepLockPathSanitizes(t *testing.T) {
	got := SweepLockPath("/run/lb", "ent/proj/abc 12")
	want := filepath.Join("/run/lb", "sweep-ent_proj_abc_12.lock")
	if got != want {
		t.Fatalf("SweepLockPath = %q, want %q", got, want)
	}
}

func TestAcquireSweepLockRejectsEmptyID(t *testing.T) {
	if _, err := AcquireSweepLock(t.TempDir(), " "); err == nil {
		t.Fatal("expected error for empty sweep id")
	}
}

func TestReleaseNilIsSafe(t *testing.T) {
	var l *PIDLock
	if err := l.Release(); err != nil {
		t.Fatalf("Release on nil: %v", err)
	}
}
