package statemachine

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBegin(t *testing.T) {
	sm := NewStateMachine()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	sm.SetClock(func() time.Time { return start })

	if sm.IsRecording() {
		t.Fatal("expected idle initially")
	}

	s, err := sm.Begin("sess-1", "/tmp/a.m4a")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if !sm.IsRecording() {
		t.Error("recording should be active after Begin")
	}
	if sm.CurrentState() != StateRecording {
		t.Errorf("state = %v, want %v", sm.CurrentState(), StateRecording)
	}
	if s.OutputPath != "/tmp/a.m4a" || !s.StartedAt.Equal(start) {
		t.Errorf("unexpected session %+v", s)
	}
	if sm.SessionID() != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", sm.SessionID())
	}

	// Second Begin should fail and leave the first session intact
	_, err = sm.Begin("sess-2", "/tmp/b.m4a")
	if !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Begin error = %v, want ErrAlreadyRecording", err)
	}
	if got := sm.Session().OutputPath; got != "/tmp/a.m4a" {
		t.Errorf("OutputPath = %q after rejected Begin, want /tmp/a.m4a", got)
	}
}

func TestEnd(t *testing.T) {
	sm := NewStateMachine()

	// End should be a no-op when not recording
	if _, ok := sm.End(); ok {
		t.Error("End should report ok=false when idle")
	}

	if _, err := sm.Begin("sess-1", "/tmp/a.m4a"); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	s, ok := sm.End()
	if !ok {
		t.Fatal("End should report ok=true when recording")
	}
	if s.ID != "sess-1" {
		t.Errorf("ended session id = %q, want sess-1", s.ID)
	}
	if sm.IsRecording() {
		t.Error("recording should be inactive after End")
	}
	if sm.SessionID() != "" {
		t.Error("SessionID should be empty once inactive")
	}

	// Fields survive until Clear
	if sm.Session().OutputPath != "/tmp/a.m4a" {
		t.Error("session fields should remain until Clear")
	}
	sm.Clear()
	if !sm.Session().IsZero() {
		t.Errorf("session not cleared: %+v", sm.Session())
	}

	if _, ok := sm.End(); ok {
		t.Error("second End should be a no-op")
	}
}

func TestRecordingDuration(t *testing.T) {
	sm := NewStateMachine()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	sm.SetClock(func() time.Time { return now })

	if d := sm.RecordingDuration(); d != 0 {
		t.Errorf("idle duration = %v, want 0", d)
	}

	if _, err := sm.Begin("s", "/tmp/a.m4a"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(90 * time.Second)

	if d := sm.RecordingDuration(); d != 90*time.Second {
		t.Errorf("duration = %v, want 90s", d)
	}
}

func TestEnd_ConcurrentOnlyOneWins(t *testing.T) {
	sm := NewStateMachine()
	if _, err := sm.Begin("s", "/tmp/a.m4a"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := sm.End(); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("End succeeded %d times, want exactly 1", wins)
	}
}
