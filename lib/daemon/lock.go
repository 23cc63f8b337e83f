// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by AcquireLock when another process holds the
// lock.
var ErrLocked = errors.New("another harmd holds the lock")

// Lock is an exclusive flock on a file. The lock is released when
// Release is called or the process exits.
type Lock struct {
	file *os.File
}

// AcquireLock takes the lock at path without blocking and writes the
// holder's pid into the file.
func AcquireLock(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	if err := file.Truncate(0); err == nil {
		file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{file: file}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("unlocking: %w", err)
	}
	return l.file.Close()
}
