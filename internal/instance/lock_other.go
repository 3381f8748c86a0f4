//go:build !unix

package instance

import (
	"errors"
	"os"
)

var errWouldBlock = errors.New("instance: lock held")

// Without flock the pid file is advisory only.
func tryLock(f *os.File) error { return nil }

func unlock(f *os.File) error { return nil }
