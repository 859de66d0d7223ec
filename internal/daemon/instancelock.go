package daemon

import (
	"fmt"

	"github.com/gofrs/flock"
)

// InstanceLock wraps an advisory file lock that guarantees only one daemon
// instance binds a given socket at a time (original spec §4.7 "instance
// exclusivity").
type InstanceLock struct {
	fl *flock.Flock
}

// AcquireInstanceLock tries to take an exclusive, non-blocking lock on path.
// A second daemon racing for the same worktree fails fast here rather than
// discovering the conflict later at bind time.
func AcquireInstanceLock(path string) (*InstanceLock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("another daemon instance already holds the lock at %s", path)
	}
	return &InstanceLock{fl: fl}, nil
}

// Release drops the lock. The lock file itself is left in place;
// Daemon.cleanup removes it.
func (l *InstanceLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
