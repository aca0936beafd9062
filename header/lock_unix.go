//go:build unix

package header

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned when another process already owns the header.
var ErrLocked = errors.New("header is locked by another sweep")

// Lock takes an exclusive, non-blocking flock on path. The returned
// function releases it.
func Lock(path string) (func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s for lock: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()

		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}

		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	release := func() error {
		if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
			f.Close()

			return fmt.Errorf("unlock %s: %w", path, err)
		}

		return f.Close()
	}

	return release, nil
}
