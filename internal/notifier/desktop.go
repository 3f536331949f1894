package notifier

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// StopHint tells the user how to end the recording from a notification.
const StopHint = "Stop: htt-recorder stop"

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Desktop posts native notifications through notify-send (Linux) or
// osascript (macOS). Desktop notifications cannot be edited in place on
// either platform, so it posts once per session and relies on the status
// file for the ticking duration.
type Desktop struct {
	goos string
	run  Runner

	mu     sync.Mutex
	posted string
}

// NewDesktop creates a desktop surface for the current platform.
func NewDesktop() *Desktop {
	return &Desktop{goos: runtime.GOOS, run: execRunner}
}

// NewDesktopWithRunner creates a desktop surface with an injected command
// runner, for tests.
func NewDesktopWithRunner(goos string, run Runner) *Desktop {
	return &Desktop{goos: goos, run: run}
}

func (d *Desktop) Name() string { return "desktop" }

func (d *Desktop) Show(ctx context.Context, s Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := s.SessionID + "\x00" + s.Title
	if d.posted == key {
		return nil
	}

	name, args, ok := desktopCommand(d.goos, s.Title, s.Text+"\n"+StopHint)
	if !ok {
		return nil
	}
	if out, err := d.run(ctx, name, args...); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	d.posted = key
	return nil
}

func (d *Desktop) Dismiss(context.Context) error {
	d.mu.Lock()
	d.posted = ""
	d.mu.Unlock()
	return nil
}

// DesktopTool returns the notification binary used on goos, or "".
func DesktopTool(goos string) string {
	name, _, _ := desktopCommand(goos, "", "")
	return name
}

func desktopCommand(goos, title, body string) (string, []string, bool) {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return "notify-send", []string{"--app-name=htt-recorder", "--urgency=low", title, body}, true
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(body),
			escapeAppleScript(title))
		return "osascript", []string{"-e", script}, true
	default:
		return "", nil, false
	}
}

// escapeAppleScript escapes special characters in AppleScript strings
func escapeAppleScript(s string) string {
	var b strings.Builder
	for _, ch := range s {
		switch ch {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}
