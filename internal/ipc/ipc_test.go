package ipc

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "htt")

	require.NoError(t, WriteCommand(dir, Command{Action: ActionStart, FilePath: "/tmp/a.m4a"}))

	cmd, ok, err := ReadCommand(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ActionStart, cmd.Action)
	assert.Equal(t, "/tmp/a.m4a", cmd.FilePath)
	assert.True(t, cmd.Known())

	// File is cleared after reading
	_, ok, err = ReadCommand(dir)
	require.NoError(t, err)
	assert.False(t, ok, "command should only be delivered once")
}

func TestReadCommand_Missing(t *testing.T) {
	_, ok, err := ReadCommand(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadCommand_UnknownActionReturned(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(CommandPath(dir), []byte(`{"action":" Toggle "}`), 0644))

	cmd, ok, err := ReadCommand(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Action("toggle"), cmd.Action)
	assert.False(t, cmd.Known())
}

func TestReadCommand_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(CommandPath(dir), []byte("start"), 0644))

	_, ok, err := ReadCommand(dir)
	assert.Error(t, err)
	assert.False(t, ok)

	data, err := os.ReadFile(CommandPath(dir))
	require.NoError(t, err)
	assert.Empty(t, data, "malformed command should still be cleared")
}

func TestWriteReadStatus(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	in := &StatusSnapshot{
		Recording:  true,
		SessionID:  "abc",
		OutputPath: "/tmp/a.m4a",
		StartedAt:  started,
		Elapsed:    "01:05",
		Title:      "Recording in progress",
		Text:       "Duration: 01:05",
		StopAction: ActionStop,
		Timestamp:  started.Add(65 * time.Second),
	}
	require.NoError(t, WriteStatus(dir, in))

	out, err := ReadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, in.SessionID, out.SessionID)
	assert.True(t, out.StartedAt.Equal(started))
	assert.Equal(t, "Duration: 01:05", out.Text)
	assert.Equal(t, ActionStop, out.StopAction)

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWatch_DeliversCommands(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []Command
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, 100*time.Millisecond, nil, func(_ context.Context, c Command) {
			mu.Lock()
			got = append(got, c)
			mu.Unlock()
		})
	}()

	// Let the watcher register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, WriteCommand(dir, Command{Action: ActionStart, FilePath: "/tmp/x.m4a"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/tmp/x.m4a", got[0].FilePath)
}

func TestWatch_DrainsPendingCommandOnStart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteCommand(dir, Command{Action: ActionStop}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Command, 1)
	go func() {
		_ = Watch(ctx, dir, time.Second, nil, func(_ context.Context, c Command) { got <- c })
	}()

	select {
	case c := <-got:
		assert.Equal(t, ActionStop, c.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("pending command not delivered")
	}
}
