// Package diaglog provides structured NDJSON diagnostic logging for the
// recorder daemon. Activated by HTT_DEBUG_RECORDING=true. When the env var is
// absent, all Log calls are no-ops and no file is created.
package diaglog

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvDebug enables the diagnostic log when set to "true".
const EnvDebug = "HTT_DEBUG_RECORDING"

// maxSizeMB caps the diagnostic log before lumberjack rotates it.
const maxSizeMB = 10

// Component labels.
const (
	ComponentSession    = "session"
	ComponentRecorder   = "recorder"
	ComponentNotifier   = "notifier"
	ComponentCommands   = "command-watcher"
	ComponentAPI        = "api"
	ComponentDiagExport = "diag-export"
	ComponentDaemon     = "htt-recorder"
)

// Event names.
const (
	EventCommandReceived       = "command_received"
	EventCommandIgnored        = "command_ignored"
	EventRecordingStart        = "recording_start"
	EventRecordingStartFailed  = "recording_start_failed"
	EventRecordingStartIgnored = "recording_start_ignored"
	EventRecordingStop         = "recording_stop"
	EventRecordingStopFailed   = "recording_stop_failed"
	EventRecordingStopIgnored  = "recording_stop_ignored"
	EventInterrupt             = "interrupt"
	EventResidencyFailed       = "residency_failed"
	EventShutdown              = "shutdown"
)

// LogEntry is one structured event record written as a single JSON line.
type LogEntry struct {
	Timestamp string      `json:"ts"`                   // RFC3339Nano
	Component string      `json:"component"`            // see Component* constants
	Event     string      `json:"event"`                // see Event* constants
	SessionID string      `json:"session_id,omitempty"` // recording session uuid
	Reason    string      `json:"reason,omitempty"`
	Payload   interface{} `json:"payload,omitempty"` // redacted before write
}

// Logger writes LogEntry values to a size-rotated NDJSON file. When debug mode
// is disabled every Log call is a no-op.
type Logger struct {
	w       *lumberjack.Logger
	mu      sync.Mutex
	enabled bool
}

// New opens (or creates) the NDJSON log file at path. If debug mode is
// disabled, path is ignored and a no-op logger is returned.
func New(path string) (*Logger, error) {
	if !IsDebugEnabled() {
		return &Logger{enabled: false}, nil
	}
	// Surface permission problems now rather than on the first write.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	_ = f.Close()

	return &Logger{
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: 1,
		},
		enabled: true,
	}, nil
}

// Log serialises entry to JSON, appends a newline, and writes it. Sensitive
// payload fields are redacted before serialisation.
func (l *Logger) Log(entry LogEntry) {
	if l == nil || !l.enabled {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if entry.Payload != nil {
		entry.Payload = Redact(entry.Payload)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(data)
}

// Enabled reports whether entries are being written.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// Close closes the underlying file. Safe on nil/disabled logger.
func (l *Logger) Close() error {
	if l == nil || !l.enabled || l.w == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Close()
}

// IsDebugEnabled reports whether HTT_DEBUG_RECORDING is set to "true".
func IsDebugEnabled() bool {
	return os.Getenv(EnvDebug) == "true"
}

// NewNoOp returns a logger where every Log call is a no-op. Use as a safe
// fallback when New fails (e.g., disk full, permissions error).
func NewNoOp() *Logger {
	return &Logger{enabled: false}
}
