package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdthatthought/htt-recorder/internal/ipc"
	"github.com/holdthatthought/htt-recorder/internal/statemachine"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{999 * time.Millisecond, "00:00"},
		{5 * time.Second, "00:05"},
		{65 * time.Second, "01:05"},
		{59*time.Minute + 59*time.Second, "59:59"},
		{2*time.Hour + 3*time.Second, "120:03"},
		{-time.Second, "00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatElapsed(tt.d))
		})
	}
}

func TestRender(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	sess := statemachine.Session{ID: "s1", OutputPath: "/tmp/a.m4a", StartedAt: start}

	st := Render(sess, start.Add(42*time.Second))
	assert.Equal(t, "Recording in progress", st.Title)
	assert.Equal(t, "Duration: 00:42", st.Text)
	assert.Equal(t, "s1", st.SessionID)
}

type recordingSurface struct {
	mu        sync.Mutex
	shown     []Status
	dismissed int
	failShow  bool
}

func (r *recordingSurface) Name() string { return "recording" }

func (r *recordingSurface) Show(_ context.Context, s Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, s)
	if r.failShow {
		return errors.New("surface unavailable")
	}
	return nil
}

func (r *recordingSurface) Dismiss(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dismissed++
	return nil
}

func (r *recordingSurface) shows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shown)
}

func TestNotifier_ShowsImmediatelyThenTicks(t *testing.T) {
	surf := &recordingSurface{}
	n := New(nil, surf)
	n.SetInterval(20 * time.Millisecond)

	n.Begin(statemachine.Session{ID: "s", StartedAt: time.Now()}, func() bool { return true })
	assert.GreaterOrEqual(t, surf.shows(), 1, "initial notification is shown synchronously")
	assert.True(t, n.Running())

	assert.Eventually(t, func() bool { return surf.shows() >= 3 }, 2*time.Second, 5*time.Millisecond)

	n.End(context.Background())
	assert.False(t, n.Running())
	assert.Equal(t, 1, surf.dismissed)

	after := surf.shows()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, surf.shows(), "no updates after End")
}

func TestNotifier_StopsWhenSessionInactive(t *testing.T) {
	surf := &recordingSurface{}
	n := New(nil, surf)
	n.SetInterval(10 * time.Millisecond)

	var active atomic.Bool
	active.Store(true)
	n.Begin(statemachine.Session{ID: "s", StartedAt: time.Now()}, active.Load)

	active.Store(false)
	assert.Eventually(t, func() bool { return !n.Running() }, time.Second, 5*time.Millisecond)

	n.End(context.Background())
}

func TestNotifier_SurfaceErrorsDoNotStopLoop(t *testing.T) {
	surf := &recordingSurface{failShow: true}
	n := New(nil, surf)
	n.SetInterval(10 * time.Millisecond)

	n.Begin(statemachine.Session{ID: "s", StartedAt: time.Now()}, nil)
	assert.Eventually(t, func() bool { return surf.shows() >= 3 }, time.Second, 5*time.Millisecond)
	n.End(context.Background())
}

func TestNotifier_EndWithoutBegin(t *testing.T) {
	surf := &recordingSurface{}
	n := New(nil, surf)
	n.End(context.Background())
	assert.Equal(t, 1, surf.dismissed)
}

func TestStatusFile(t *testing.T) {
	dir := t.TempDir()
	f := NewStatusFile(dir)
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	st := Render(statemachine.Session{ID: "s1", OutputPath: "/tmp/a.m4a", StartedAt: start}, start.Add(3*time.Second))
	require.NoError(t, f.Show(context.Background(), st))

	snap, err := ipc.ReadStatus(dir)
	require.NoError(t, err)
	assert.True(t, snap.Recording)
	assert.Equal(t, "Duration: 00:03", snap.Text)
	assert.Equal(t, ipc.ActionStop, snap.StopAction)

	require.NoError(t, f.Dismiss(context.Background()))
	snap, err = ipc.ReadStatus(dir)
	require.NoError(t, err)
	assert.False(t, snap.Recording)
	assert.Empty(t, snap.Title)
}

func TestDesktop_PostsOncePerSession(t *testing.T) {
	var calls [][]string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		return nil, nil
	}
	d := NewDesktopWithRunner("linux", run)
	ctx := context.Background()
	start := time.Now()
	sess := statemachine.Session{ID: "s1", StartedAt: start}

	require.NoError(t, d.Show(ctx, Render(sess, start)))
	require.NoError(t, d.Show(ctx, Render(sess, start.Add(time.Second))))
	require.Len(t, calls, 1)
	assert.Equal(t, "notify-send", calls[0][0])
	assert.Contains(t, calls[0], "Recording in progress")
	assert.Contains(t, calls[0][len(calls[0])-1], StopHint)

	require.NoError(t, d.Dismiss(ctx))
	require.NoError(t, d.Show(ctx, Render(sess, start)))
	assert.Len(t, calls, 2, "posts again after dismiss")
}

func TestDesktop_RunnerErrorRetries(t *testing.T) {
	fail := true
	calls := 0
	run := func(context.Context, string, ...string) ([]byte, error) {
		calls++
		if fail {
			return []byte("no bus"), errors.New("exit status 1")
		}
		return nil, nil
	}
	d := NewDesktopWithRunner("linux", run)
	st := Render(statemachine.Session{ID: "s"}, time.Now())

	err := d.Show(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bus")

	fail = false
	require.NoError(t, d.Show(context.Background(), st))
	assert.Equal(t, 2, calls)
}

func TestDesktopCommand(t *testing.T) {
	name, args, ok := desktopCommand("darwin", `Say "hi"`, "line1\nline2")
	require.True(t, ok)
	assert.Equal(t, "osascript", name)
	assert.Equal(t, "-e", args[0])
	assert.True(t, strings.Contains(args[1], `with title "Say \"hi\""`))
	assert.True(t, strings.Contains(args[1], `line1\nline2`))

	_, _, ok = desktopCommand("windows", "t", "b")
	assert.False(t, ok)
	assert.Equal(t, "", DesktopTool("plan9"))
	assert.Equal(t, "notify-send", DesktopTool("linux"))
}

func TestEscapeAppleScript(t *testing.T) {
	assert.Equal(t, `a\\b\"c\td`, escapeAppleScript("a\\b\"c\td"))
}
