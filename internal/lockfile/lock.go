package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrAlreadyLocked indicates another process holds the lock. Callers must
// treat this as fatal and exit; retrying would race two instances against
// the same device.
var ErrAlreadyLocked = errors.New("lock already held by another process")

// Lock is an exclusive, kernel-enforced advisory lock on a named file.
// It is held for the process lifetime and released automatically by the
// kernel on exit, clean or not.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the named lock without blocking.
//
// The lock file persists between runs; ownership is the flock, not the
// file's existence, so a stale file from a crashed process never wedges
// startup. The holder's PID is written into the file for diagnostics.
//
// Parameters:
//   - dir: Directory for lock files, e.g. /run or /tmp
//   - name: Lock name, typically derived from the device target
//
// Returns:
//   - *Lock: Held lock, release with Release or process exit
//   - error: ErrAlreadyLocked if contended, otherwise filesystem errors
func Acquire(dir, name string) (*Lock, error) {
	path := filepath.Join(dir, name+".lock")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyLocked, path)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	// PID for whoever goes looking; ignore write errors, the flock is
	// what matters.
	_ = file.Truncate(0)
	_, _ = file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)

	return &Lock{file: file, path: path}, nil
}

// Path returns the lock file's location.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock explicitly. Normally unnecessary, the kernel
// releases it when the process exits.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return closeErr
}
