// Package lock prevents concurrent runs of treeaudit from operating on the
// same tree.
package lock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/treeaudit/pkg/errors"
)

// Lock is an exclusive, advisory lock held on a file.
type Lock struct {
	flock *flock.Flock
}

// Acquire takes the lock at `path` without blocking. If another process holds
// the lock, a friendly error is returned.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.WithContext(err, "create lock directory")
	}

	fl := flock.New(path)
	acquired, err := fl.TryLock()
	if err != nil {
		return nil, errors.WithContext(err, "lock")
	}

	if !acquired {
		return nil, errors.NewFriendlyError("Another treeaudit process is already running.\n"+
			"If that's not the case, remove the lock file at %q and try again.", path)
	}
	log.WithField("path", path).Debug("Acquired lock")
	return &Lock{flock: fl}, nil
}

// Release releases the lock. The lock file is left in place so that it
// doesn't race with processes waiting to acquire it.
func (l *Lock) Release() {
	if err := l.flock.Unlock(); err != nil {
		log.WithError(err).WithField("path", l.flock.Path()).Warn("Failed to release lock")
	}
}
