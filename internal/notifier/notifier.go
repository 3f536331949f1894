// Package notifier keeps the user informed that a recording is in progress.
// While a session is active it renders "Recording in progress" with the
// elapsed time once per interval and pushes it to every surface.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/holdthatthought/htt-recorder/internal/statemachine"
)

const (
	DefaultInterval = time.Second
	Title           = "Recording in progress"
)

// Status is one rendering of the in-progress notification.
type Status struct {
	SessionID  string
	OutputPath string
	StartedAt  time.Time
	Elapsed    string
	Title      string
	Text       string
}

// FormatElapsed renders d as MM:SS. Minutes are not capped at 59.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Render builds the notification for sess at time now.
func Render(sess statemachine.Session, now time.Time) Status {
	elapsed := FormatElapsed(now.Sub(sess.StartedAt))
	return Status{
		SessionID:  sess.ID,
		OutputPath: sess.OutputPath,
		StartedAt:  sess.StartedAt,
		Elapsed:    elapsed,
		Title:      Title,
		Text:       "Duration: " + elapsed,
	}
}

// Surface is somewhere the notification is shown.
type Surface interface {
	Name() string
	Show(ctx context.Context, s Status) error
	Dismiss(ctx context.Context) error
}

// Notifier drives the periodic refresh for one session at a time.
type Notifier struct {
	surfaces []Surface
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a notifier pushing to the given surfaces.
func New(log *slog.Logger, surfaces ...Surface) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		surfaces: surfaces,
		log:      log.With("component", "notifier"),
		interval: DefaultInterval,
		now:      time.Now,
	}
}

// SetInterval changes the refresh period. Takes effect on the next Begin.
func (n *Notifier) SetInterval(d time.Duration) {
	if d > 0 {
		n.interval = d
	}
}

// SetClock overrides the time source. Tests only.
func (n *Notifier) SetClock(now func() time.Time) {
	n.now = now
}

// Begin shows the notification for sess and refreshes it every interval
// until End is called or active reports false.
func (n *Notifier) Begin(sess statemachine.Session, active func() bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	n.cancel = cancel
	n.done = done

	n.show(ctx, sess)
	go n.run(ctx, done, sess, active)
}

func (n *Notifier) run(ctx context.Context, done chan struct{}, sess statemachine.Session, active func() bool) {
	defer close(done)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if active != nil && !active() {
				return
			}
			n.show(ctx, sess)
		}
	}
}

func (n *Notifier) show(ctx context.Context, sess statemachine.Session) {
	st := Render(sess, n.now())
	for _, s := range n.surfaces {
		if err := s.Show(ctx, st); err != nil {
			n.log.Warn("failed to update notification", "surface", s.Name(), "error", err)
		}
	}
}

// End stops the refresh loop, waits for it to exit and dismisses the
// notification on every surface. Safe to call when nothing is running.
func (n *Notifier) End(ctx context.Context) {
	n.mu.Lock()
	n.stopLocked()
	n.mu.Unlock()

	for _, s := range n.surfaces {
		if err := s.Dismiss(ctx); err != nil {
			n.log.Warn("failed to dismiss notification", "surface", s.Name(), "error", err)
		}
	}
}

// Running reports whether a refresh loop is active.
func (n *Notifier) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done == nil {
		return false
	}
	select {
	case <-n.done:
		return false
	default:
		return true
	}
}

func (n *Notifier) stopLocked() {
	if n.cancel == nil {
		return
	}
	n.cancel()
	<-n.done
	n.cancel = nil
	n.done = nil
}
