// Package recorder abstracts the platform audio recorder behind a common
// interface. A Recorder is a single capture handle: configured once, started
// once, stopped at most once and released exactly once.
package recorder

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStartFailed wraps every failure to configure or begin capture.
	ErrStartFailed = errors.New("recorder: start failed")
	// ErrStopFailed wraps every failure to halt capture and finalize output.
	ErrStopFailed = errors.New("recorder: stop failed")
	// ErrNotStarted is returned by Stop on a handle that never started.
	ErrNotStarted = errors.New("recorder: not started")
)

// RecordingResult contains the outcome of a completed recording.
type RecordingResult struct {
	OutputPath string
	Duration   time.Duration
	StartedAt  time.Time
	Bytes      int64
}

// RecorderState represents the current state of a capture handle.
type RecorderState struct {
	Recording   bool
	BackendName string // "ffmpeg" | "fake"
	OutputPath  string
	StartTime   time.Time
}

// Recorder is the interface that capture backends must implement.
type Recorder interface {
	Start(ctx context.Context, path string) error
	Stop(ctx context.Context) (RecordingResult, error)
	Release() error
	State() RecorderState
	Name() string
}

// Factory configures a fresh capture handle for one session.
type Factory func(format Format) (Recorder, error)
