//go:build unix

package pidfile

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isProcessRunning checks if a process with the given PID is running
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	// Signal 0 performs the permission and existence checks only.
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	// Process exists but we don't have permission to signal it
	return errors.Is(err, unix.EPERM)
}
