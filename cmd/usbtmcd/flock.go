// Single-instance locking, so two usbtmcd processes never claim the same
// USBTMC interfaces concurrently.
package main

import (
	"errors"
	"os"
	"syscall"
)

// ErrLockIsBusy is returned by FileLock when the lock is already held
var ErrLockIsBusy = errors.New("usbtmcd: already running")

// FileLock attempts to acquire an exclusive, non-blocking advisory lock
// on file
func FileLock(file *os.File) error {
	err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == syscall.EWOULDBLOCK {
		return ErrLockIsBusy
	}
	return err
}

// FileUnlock releases a lock acquired by FileLock
func FileUnlock(file *os.File) error {
	return syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
}
