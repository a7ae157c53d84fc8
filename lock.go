package cryptfile

import (
	"github.com/gofrs/flock"
)

// acquireLock takes a whole-file advisory lock on path: shared for
// read-only handles, exclusive for write-capable ones. The call blocks
// until the lock is granted; callers needing a bounded wait must layer a
// timeout externally. The lock is held until File.Close.
func acquireLock(path string, mode Mode) (*flock.Flock, error) {
	lock := flock.New(path)

	var err error
	if mode.writable() {
		err = lock.Lock()
	} else {
		err = lock.RLock()
	}
	if err != nil {
		return nil, &IOError{Op: "lock", Path: path, Err: err}
	}
	return lock, nil
}
