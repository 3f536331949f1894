package statemachine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// State is the recording state of the daemon.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// ErrAlreadyRecording is returned by Begin while a session is active.
var ErrAlreadyRecording = errors.New("already recording")

// Session is one contiguous recording attempt.
type Session struct {
	ID         string
	OutputPath string
	StartedAt  time.Time
}

// IsZero reports whether s holds no session.
func (s Session) IsZero() bool {
	return s.ID == "" && s.OutputPath == "" && s.StartedAt.IsZero()
}

// StateMachine tracks the single recording session. The active flag is
// atomic so status queries and the notifier never block on the command path;
// session fields are written only by the command path.
type StateMachine struct {
	active  atomic.Bool
	mu      sync.RWMutex
	session Session
	now     func() time.Time
}

// NewStateMachine creates a state machine in the idle state.
func NewStateMachine() *StateMachine {
	return &StateMachine{now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (sm *StateMachine) SetClock(now func() time.Time) {
	sm.now = now
}

// Begin marks a session active. It must be called only after capture has
// started so that the active flag implies a running recorder.
func (sm *StateMachine) Begin(id, outputPath string) (Session, error) {
	if !sm.active.CompareAndSwap(false, true) {
		return Session{}, ErrAlreadyRecording
	}
	s := Session{ID: id, OutputPath: outputPath, StartedAt: sm.now()}
	sm.mu.Lock()
	sm.session = s
	sm.mu.Unlock()
	return s, nil
}

// End flips the active flag off and returns the session being ended. ok is
// false when no session was active, in which case End is a no-op. Session
// fields stay readable until Clear.
func (sm *StateMachine) End() (s Session, ok bool) {
	if !sm.active.CompareAndSwap(true, false) {
		return Session{}, false
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.session, true
}

// Clear drops the session fields once the stop sequence has completed.
func (sm *StateMachine) Clear() {
	sm.mu.Lock()
	sm.session = Session{}
	sm.mu.Unlock()
}

// IsRecording returns current recording status
func (sm *StateMachine) IsRecording() bool {
	return sm.active.Load()
}

// CurrentState returns the state derived from the active flag.
func (sm *StateMachine) CurrentState() State {
	if sm.active.Load() {
		return StateRecording
	}
	return StateIdle
}

// Session returns a copy of the current session fields.
func (sm *StateMachine) Session() Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.session
}

// SessionID returns the active session id, or "" when idle.
func (sm *StateMachine) SessionID() string {
	if !sm.active.Load() {
		return ""
	}
	return sm.Session().ID
}

// RecordingDuration returns how long current recording has been active
func (sm *StateMachine) RecordingDuration() time.Duration {
	if !sm.active.Load() {
		return 0
	}
	return sm.now().Sub(sm.Session().StartedAt)
}
