// Package residency keeps the host awake while a recording is active by
// holding a platform sleep inhibitor (systemd-inhibit or caffeinate).
package residency

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

// ErrUnsupported is returned when no inhibitor exists for the platform.
var ErrUnsupported = errors.New("sleep inhibitor not supported on this platform")

// Inhibitor holds at most one sleep inhibitor process.
type Inhibitor struct {
	goos    string
	pid     int
	log     *slog.Logger
	enabled bool

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// New creates an inhibitor for the running process. A disabled inhibitor
// accepts Acquire and Release but never spawns anything.
func New(enabled bool, log *slog.Logger) *Inhibitor {
	if log == nil {
		log = slog.Default()
	}
	return &Inhibitor{
		goos:    runtime.GOOS,
		pid:     os.Getpid(),
		log:     log.With("component", "residency"),
		enabled: enabled,
	}
}

// Acquire starts the inhibitor. Failures are logged and returned but must
// not prevent recording.
func (in *Inhibitor) Acquire(reason string) error {
	if !in.enabled {
		return nil
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.cmd != nil {
		return nil
	}

	name, args, ok := inhibitCommand(in.goos, in.pid, reason)
	if !ok {
		in.log.Warn("no sleep inhibitor for platform", "goos", in.goos)
		return ErrUnsupported
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		in.log.Warn("sleep inhibitor unavailable, host may suspend during recording", "tool", name, "error", err)
		return fmt.Errorf("%s not found: %w", name, err)
	}

	cmd := exec.Command(bin, args...)
	if err := cmd.Start(); err != nil {
		in.log.Warn("failed to start sleep inhibitor", "tool", name, "error", err)
		return fmt.Errorf("start %s: %w", name, err)
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	in.cmd = cmd
	in.done = done
	in.log.Info("sleep inhibitor held", "tool", name, "pid", cmd.Process.Pid)
	return nil
}

// Release stops the inhibitor if one is held.
func (in *Inhibitor) Release() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.cmd == nil {
		return nil
	}
	cmd, done := in.cmd, in.done
	in.cmd, in.done = nil, nil

	select {
	case <-done:
		return nil
	default:
	}
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill inhibitor: %w", err)
	}
	<-done
	in.log.Info("sleep inhibitor released")
	return nil
}

// Held reports whether an inhibitor process is currently running.
func (in *Inhibitor) Held() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.cmd == nil {
		return false
	}
	select {
	case <-in.done:
		return false
	default:
		return true
	}
}

// Tool returns the inhibitor binary used on goos, or "".
func Tool(goos string) string {
	name, _, _ := inhibitCommand(goos, 0, "")
	return name
}

func inhibitCommand(goos string, pid int, reason string) (string, []string, bool) {
	switch goos {
	case "linux":
		return "systemd-inhibit", []string{
			"--what=sleep:idle",
			"--who=htt-recorder",
			"--why=" + reason,
			"--mode=block",
			"sleep", "infinity",
		}, true
	case "darwin":
		// -w ties the assertion to our pid so it ends if the daemon dies.
		return "caffeinate", []string{"-i", "-s", "-w", strconv.Itoa(pid)}, true
	default:
		return "", nil, false
	}
}
