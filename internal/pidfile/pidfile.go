package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrAlreadyRunning is returned by New when a live process owns the file.
var ErrAlreadyRunning = errors.New("another instance is already running")

// PIDFile manages a PID file for preventing duplicate instances
type PIDFile struct {
	path string
	pid  int
}

// New creates a new PID file at the specified path
// Returns an error if a PID file already exists with a running process
func New(path string) (*PIDFile, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create PID directory: %w", err)
	}

	// Check if PID file already exists
	if _, err := os.Stat(path); err == nil {
		if existingPID, err := read(path); err == nil {
			if isProcessRunning(existingPID) {
				return nil, fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, existingPID)
			}
			// Process not running, remove stale PID file
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("failed to remove stale PID file: %w", err)
			}
		}
	}

	// Write current process PID
	currentPID := os.Getpid()
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", currentPID)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}

	return &PIDFile{
		path: path,
		pid:  currentPID,
	}, nil
}

// Remove deletes the PID file
func (p *PIDFile) Remove() error {
	if p == nil {
		return nil
	}

	// Only remove if it contains our PID
	if pid, err := read(p.path); err == nil && pid == p.pid {
		return os.Remove(p.path)
	}

	return nil
}

// Running reports the pid recorded at path and whether that process is
// alive. A missing or unparsable file reports (0, false).
func Running(path string) (int, bool) {
	pid, err := read(path)
	if err != nil {
		return 0, false
	}
	return pid, isProcessRunning(pid)
}

func read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// GetPIDFilePath returns the standard PID file path for a given application name
func GetPIDFilePath(stateDir, appName string) string {
	return filepath.Join(stateDir, appName+".pid")
}

// Path returns the file path.
func (p *PIDFile) Path() string {
	return p.path
}
