package ipc

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay gives a writer time to finish before the command is read.
const settleDelay = 50 * time.Millisecond

// Handler is called once per command read from the channel.
type Handler func(ctx context.Context, cmd Command)

// Watch delivers commands written to <dir>/cmd.json until ctx is done. It
// uses fsnotify with a polling ticker as a fallback, and switches to pure
// polling when fsnotify is unavailable.
func Watch(ctx context.Context, dir string, poll time.Duration, log *slog.Logger, handle Handler) error {
	if poll <= 0 {
		poll = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	w := &watcher{dir: dir, path: CommandPath(dir), poll: poll, log: log, handle: handle}

	// Drain anything written while the daemon was down.
	w.read(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify not available, falling back to polling", "error", err)
		return w.pollOnly(ctx)
	}
	defer func() {
		if err := fw.Close(); err != nil {
			log.Error("failed to close watcher", "error", err)
		}
	}()

	if err := fw.Add(dir); err != nil {
		log.Warn("failed to watch command directory, falling back to polling", "error", err)
		return w.pollOnly(ctx)
	}

	log.Info("command watcher started (using fsnotify)", "path", w.path)

	pollTicker := time.NewTicker(poll)
	defer pollTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				log.Warn("fsnotify watcher closed, switching to polling")
				return w.pollOnly(ctx)
			}
			if event.Name == w.path && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.settle(ctx)
				w.read(ctx)
			}

		case <-pollTicker.C:
			w.pollOnce(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				log.Warn("fsnotify error channel closed, switching to polling")
				return w.pollOnly(ctx)
			}
			log.Error("file watcher error", "error", err)
		}
	}
}

type watcher struct {
	dir       string
	path      string
	poll      time.Duration
	log       *slog.Logger
	handle    Handler
	lastCheck time.Time
}

func (w *watcher) pollOnly(ctx context.Context) error {
	w.log.Info("command watcher started (using polling fallback)", "interval", w.poll)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

// pollOnce reads the command file if it changed since the last read.
func (w *watcher) pollOnce(ctx context.Context) {
	info, err := os.Stat(w.path)
	if err != nil || info.Size() == 0 {
		return
	}
	if info.ModTime().After(w.lastCheck) {
		w.settle(ctx)
		w.read(ctx)
	}
}

func (w *watcher) read(ctx context.Context) {
	cmd, ok, err := ReadCommand(w.dir)
	w.lastCheck = time.Now()
	if err != nil {
		w.log.Error("failed to read command", "error", err)
		return
	}
	if !ok {
		return
	}
	w.handle(ctx, cmd)
}

func (w *watcher) settle(ctx context.Context) {
	t := time.NewTimer(settleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
