package ipc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// StatusFile is the name of the status snapshot file inside the state dir.
const StatusFile = "status.json"

// StatusSnapshot is the daemon state as last published to the status file.
type StatusSnapshot struct {
	Recording  bool      `json:"recording"`            // Session active
	SessionID  string    `json:"session_id,omitempty"` // Active session id
	OutputPath string    `json:"output_path,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	Elapsed    string    `json:"elapsed,omitempty"` // MM:SS shown in the notification
	Title      string    `json:"title,omitempty"`   // Notification title
	Text       string    `json:"text,omitempty"`    // Notification body
	StopAction Action    `json:"stop_action,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	Timestamp  time.Time `json:"timestamp"` // Snapshot time
}

// StatusPath returns the status file path inside dir.
func StatusPath(dir string) string {
	return filepath.Join(dir, StatusFile)
}

// WriteStatus persists StatusSnapshot to <dir>/status.json using atomic write
func WriteStatus(dir string, status *StatusSnapshot) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return atomicWriteJSON(StatusPath(dir), status)
}

// ReadStatus loads StatusSnapshot from <dir>/status.json
func ReadStatus(dir string) (*StatusSnapshot, error) {
	data, err := os.ReadFile(StatusPath(dir))
	if err != nil {
		return nil, err
	}

	var status StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// atomicWriteJSON writes data to a file atomically using temp file + rename
func atomicWriteJSON(path string, data interface{}) error {
	// Create temp file in same directory
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	// Ensure cleanup on error
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}

	if err := tmpFile.Sync(); err != nil {
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil // Prevent defer cleanup

	return os.Rename(tmpPath, path)
}
