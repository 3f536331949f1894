package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	defaultStartGrace  = 300 * time.Millisecond
	defaultStopTimeout = 5 * time.Second
	stderrTailSize     = 4096
)

// FFmpegConfig selects the ffmpeg binary and capture input.
type FFmpegConfig struct {
	Binary      string // default "ffmpeg"
	InputFormat string // ffmpeg -f for the input, e.g. "pulse", "avfoundation"
	InputDevice string // ffmpeg -i for the input, e.g. "default", ":default"
	StartGrace  time.Duration
	StopTimeout time.Duration
	Logger      *slog.Logger
}

// FFmpegRecorder captures microphone audio by running ffmpeg as a child
// process. Stop asks ffmpeg to quit through stdin so it can finalize the
// container, then kills it after StopTimeout.
type FFmpegRecorder struct {
	cfg    FFmpegConfig
	format Format
	binary string
	log    *slog.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stderr    *tailBuffer
	done      chan struct{}
	waitErr   error
	path      string
	startedAt time.Time
	stopped   bool
	released  bool
}

// NewFFmpegFactory returns a Factory that configures an FFmpegRecorder per session.
func NewFFmpegFactory(cfg FFmpegConfig) Factory {
	return func(format Format) (Recorder, error) {
		return NewFFmpeg(cfg, format)
	}
}

// NewFFmpeg configures a capture handle. It fails when the format is invalid,
// the binary cannot be found or no capture input is known for this platform.
func NewFFmpeg(cfg FFmpegConfig, format Format) (*FFmpegRecorder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid format: %v", ErrStartFailed, err)
	}
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.InputFormat == "" && cfg.InputDevice == "" {
		cfg.InputFormat, cfg.InputDevice = defaultCaptureInput()
	}
	if cfg.InputFormat == "" || cfg.InputDevice == "" {
		return nil, fmt.Errorf("%w: no default capture input on this platform; set recorder.input_format and recorder.input_device", ErrStartFailed)
	}
	if cfg.StartGrace <= 0 {
		cfg.StartGrace = defaultStartGrace
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	bin, err := exec.LookPath(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrStartFailed, cfg.Binary, err)
	}

	return &FFmpegRecorder{
		cfg:    cfg,
		format: format,
		binary: bin,
		log:    cfg.Logger.With("component", "recorder", "backend", "ffmpeg"),
	}, nil
}

// CheckBinary reports whether the ffmpeg binary is resolvable.
func CheckBinary(binary string) error {
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%s not found: install ffmpeg or set recorder.binary", binary)
	}
	return nil
}

// Name implements Recorder.
func (r *FFmpegRecorder) Name() string { return "ffmpeg" }

// Args returns the full ffmpeg argument list for recording to path.
func (r *FFmpegRecorder) Args(path string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", r.cfg.InputFormat,
		"-i", r.cfg.InputDevice,
	}
	args = append(args, r.format.EncoderArgs()...)
	return append(args, "-y", path)
}

// Start opens the output file, launches ffmpeg and waits StartGrace for an
// early exit (busy device, bad input) before declaring capture started.
func (r *FFmpegRecorder) Start(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return fmt.Errorf("%w: handle already released", ErrStartFailed)
	}
	if r.cmd != nil {
		return fmt.Errorf("%w: handle already started", ErrStartFailed)
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: output path is empty", ErrStartFailed)
	}

	// Fail fast on unwritable paths before a child process exists.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open output: %v", ErrStartFailed, err)
	}
	_ = f.Close()

	cmd := exec.Command(r.binary, r.Args(path)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %v", ErrStartFailed, err)
	}
	stderr := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("%w: launch %s: %v", ErrStartFailed, r.binary, err)
	}

	done := make(chan struct{})
	r.cmd = cmd
	r.stdin = stdin
	r.stderr = stderr
	r.done = done
	r.path = path

	go func() {
		err := cmd.Wait()
		r.mu.Lock()
		r.waitErr = err
		r.mu.Unlock()
		close(done)
	}()

	r.log.Debug("ffmpeg launched", "pid", cmd.Process.Pid, "path", path)

	grace := time.NewTimer(r.cfg.StartGrace)
	defer grace.Stop()

	// The wait goroutine takes r.mu, so drop it while waiting.
	r.mu.Unlock()
	var startErr error
	select {
	case <-done:
		startErr = fmt.Errorf("%w: ffmpeg exited during startup: %s", ErrStartFailed, r.stderrTail())
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		startErr = fmt.Errorf("%w: %v", ErrStartFailed, ctx.Err())
	case <-grace.C:
	}
	r.mu.Lock()

	if startErr != nil {
		return startErr
	}
	r.startedAt = time.Now()
	return nil
}

// Stop asks ffmpeg to quit, waits for it and verifies that audio reached the
// output file.
func (r *FFmpegRecorder) Stop(ctx context.Context) (RecordingResult, error) {
	r.mu.Lock()
	if r.cmd == nil || r.stopped {
		r.mu.Unlock()
		return RecordingResult{}, fmt.Errorf("%w: %w", ErrStopFailed, ErrNotStarted)
	}
	r.stopped = true
	cmd, stdin, done := r.cmd, r.stdin, r.done
	path, startedAt := r.path, r.startedAt
	r.mu.Unlock()

	select {
	case <-done:
		return RecordingResult{}, fmt.Errorf("%w: ffmpeg exited before stop: %s", ErrStopFailed, r.stderrTail())
	default:
	}

	// "q" is ffmpeg's interactive quit key and works on every platform.
	if _, err := io.WriteString(stdin, "q"); err != nil {
		r.log.Warn("could not send quit to ffmpeg, interrupting", "error", err)
		_ = cmd.Process.Signal(os.Interrupt)
	}
	_ = stdin.Close()

	timer := time.NewTimer(r.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		_ = cmd.Process.Kill()
		<-done
		return RecordingResult{}, fmt.Errorf("%w: ffmpeg did not exit within %s", ErrStopFailed, r.cfg.StopTimeout)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return RecordingResult{}, fmt.Errorf("%w: %v", ErrStopFailed, ctx.Err())
	}

	info, err := os.Stat(path)
	if err != nil {
		return RecordingResult{}, fmt.Errorf("%w: stat output: %v", ErrStopFailed, err)
	}
	if info.Size() == 0 {
		return RecordingResult{}, fmt.Errorf("%w: no audio data captured: %s", ErrStopFailed, r.stderrTail())
	}

	r.mu.Lock()
	waitErr := r.waitErr
	r.mu.Unlock()
	if waitErr != nil {
		r.log.Warn("ffmpeg exited with error after stop", "error", waitErr, "stderr", r.stderrTail())
	}

	return RecordingResult{
		OutputPath: path,
		Duration:   time.Since(startedAt),
		StartedAt:  startedAt,
		Bytes:      info.Size(),
	}, nil
}

// Release kills a still running ffmpeg and frees the handle. Safe to call
// more than once and on handles that never started.
func (r *FFmpegRecorder) Release() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil
	}
	r.released = true
	cmd, stdin, done := r.cmd, r.stdin, r.done
	r.mu.Unlock()

	if cmd == nil {
		return nil
	}
	_ = stdin.Close()

	select {
	case <-done:
		return nil
	default:
	}
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill ffmpeg: %w", err)
	}
	<-done
	return nil
}

// State implements Recorder.
func (r *FFmpegRecorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()

	running := false
	if r.done != nil && !r.stopped {
		select {
		case <-r.done:
		default:
			running = true
		}
	}
	return RecorderState{
		Recording:   running,
		BackendName: r.Name(),
		OutputPath:  r.path,
		StartTime:   r.startedAt,
	}
}

func (r *FFmpegRecorder) stderrTail() string {
	if r.stderr == nil {
		return ""
	}
	return r.stderr.String()
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
