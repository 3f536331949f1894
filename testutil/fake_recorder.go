package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/holdthatthought/htt-recorder/internal/recorder"
)

// FakeRecorder stands in for the ffmpeg backend. Start creates the output
// file (failing like a real encoder when the directory is missing) and a
// goroutine appends a chunk of bytes every ChunkEvery until Stop.
type FakeRecorder struct {
	ChunkEvery time.Duration

	// Injected failures. StartErr and StopErr are wrapped with the matching
	// recorder sentinel.
	StartErr error
	StopErr  error

	mu        sync.Mutex
	path      string
	file      *os.File
	startedAt time.Time
	started   bool
	stopped   bool
	released  bool
	quit      chan struct{}
	wg        sync.WaitGroup
}

// NewFakeRecorder returns a fake that writes a chunk every 50ms.
func NewFakeRecorder() *FakeRecorder {
	return &FakeRecorder{ChunkEvery: 50 * time.Millisecond}
}

func (f *FakeRecorder) Name() string { return "fake" }

func (f *FakeRecorder) Start(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StartErr != nil {
		return fmt.Errorf("%w: %v", recorder.ErrStartFailed, f.StartErr)
	}
	if f.started {
		return fmt.Errorf("%w: handle already started", recorder.ErrStartFailed)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open output: %v", recorder.ErrStartFailed, err)
	}
	// Container header, so even an instant stop leaves a non-empty file.
	if _, err := file.Write([]byte("ftypM4A ")); err != nil {
		_ = file.Close()
		return fmt.Errorf("%w: %v", recorder.ErrStartFailed, err)
	}

	f.path = path
	f.file = file
	f.startedAt = time.Now()
	f.started = true
	f.quit = make(chan struct{})

	f.wg.Add(1)
	go f.write(file, f.quit)
	return nil
}

func (f *FakeRecorder) write(file *os.File, quit chan struct{}) {
	defer f.wg.Done()
	every := f.ChunkEvery
	if every <= 0 {
		every = 50 * time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	chunk := make([]byte, 512)
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			_, _ = file.Write(chunk)
		}
	}
}

func (f *FakeRecorder) Stop(context.Context) (recorder.RecordingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.started || f.stopped {
		return recorder.RecordingResult{}, fmt.Errorf("%w: %w", recorder.ErrStopFailed, recorder.ErrNotStarted)
	}
	f.stopped = true
	f.halt()

	if f.StopErr != nil {
		return recorder.RecordingResult{}, fmt.Errorf("%w: %v", recorder.ErrStopFailed, f.StopErr)
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return recorder.RecordingResult{}, fmt.Errorf("%w: %v", recorder.ErrStopFailed, err)
	}
	return recorder.RecordingResult{
		OutputPath: f.path,
		Duration:   time.Since(f.startedAt),
		StartedAt:  f.startedAt,
		Bytes:      info.Size(),
	}, nil
}

// halt stops the writer goroutine and closes the file. Caller holds f.mu.
func (f *FakeRecorder) halt() {
	if f.quit != nil {
		close(f.quit)
		f.quit = nil
		f.wg.Wait()
	}
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
	}
}

func (f *FakeRecorder) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.halt()
	f.released = true
	return nil
}

func (f *FakeRecorder) State() recorder.RecorderState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return recorder.RecorderState{
		Recording:   f.started && !f.stopped && !f.released,
		BackendName: f.Name(),
		OutputPath:  f.path,
		StartTime:   f.startedAt,
	}
}

// Released reports whether Release has been called.
func (f *FakeRecorder) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// Started reports whether Start succeeded.
func (f *FakeRecorder) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// FakeFactory hands out a fresh FakeRecorder per session and remembers them.
type FakeFactory struct {
	ChunkEvery time.Duration
	// FactoryErr fails configuration before a handle exists.
	FactoryErr error
	StartErr   error
	StopErr    error

	mu   sync.Mutex
	made []*FakeRecorder
}

// New implements recorder.Factory.
func (ff *FakeFactory) New(format recorder.Format) (recorder.Recorder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", recorder.ErrStartFailed, err)
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.FactoryErr != nil {
		return nil, fmt.Errorf("%w: %v", recorder.ErrStartFailed, ff.FactoryErr)
	}
	f := NewFakeRecorder()
	if ff.ChunkEvery > 0 {
		f.ChunkEvery = ff.ChunkEvery
	}
	f.StartErr = ff.StartErr
	f.StopErr = ff.StopErr
	ff.made = append(ff.made, f)
	return f, nil
}

// Last returns the most recently created recorder, or nil.
func (ff *FakeFactory) Last() *FakeRecorder {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if len(ff.made) == 0 {
		return nil
	}
	return ff.made[len(ff.made)-1]
}

// Count returns how many recorders were created.
func (ff *FakeFactory) Count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.made)
}
