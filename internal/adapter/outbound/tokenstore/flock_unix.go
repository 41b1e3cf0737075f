//go:build !windows

package tokenstore

import "golang.org/x/sys/unix"

// flockLock blocks until it holds an exclusive advisory lock on fd.
func flockLock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_EX)
}

// flockUnlock releases the lock taken by flockLock.
func flockUnlock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}
