package lockfile

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
)

// Each Acquire opens its own file description, so flock contention is
// observable within a single test process.

func TestAcquireAndContend(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir, "sunbridge-192.168.1.102")
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer first.Release()

	_, err = Acquire(dir, "sunbridge-192.168.1.102")
	if !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("second Acquire() error = %v, want ErrAlreadyLocked", err)
	}
}

func TestReleaseFreesLock(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir, "sunbridge")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	second, err := Acquire(dir, "sunbridge")
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	second.Release()
}

func TestDifferentNamesDoNotContend(t *testing.T) {
	dir := t.TempDir()

	a, err := Acquire(dir, "sunbridge-a")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release()

	b, err := Acquire(dir, "sunbridge-b")
	if err != nil {
		t.Fatalf("Acquire() on a distinct name error = %v", err)
	}
	b.Release()
}

func TestLockFileRecordsPID(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir, "sunbridge")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file contents = %q, want this PID", got)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir, "sunbridge")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v, want nil", err)
	}
}
