//go:build !unix

package pidfile

import "os"

// isProcessRunning reports whether FindProcess can open pid. Without signal 0
// this is the best available check.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
