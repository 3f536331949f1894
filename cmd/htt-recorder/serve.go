package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/holdthatthought/htt-recorder/internal/api"
	"github.com/holdthatthought/htt-recorder/internal/config"
	"github.com/holdthatthought/htt-recorder/internal/diaglog"
	"github.com/holdthatthought/htt-recorder/internal/events"
	"github.com/holdthatthought/htt-recorder/internal/ipc"
	"github.com/holdthatthought/htt-recorder/internal/logging"
	"github.com/holdthatthought/htt-recorder/internal/metrics"
	"github.com/holdthatthought/htt-recorder/internal/notifier"
	"github.com/holdthatthought/htt-recorder/internal/pidfile"
	"github.com/holdthatthought/htt-recorder/internal/recorder"
	"github.com/holdthatthought/htt-recorder/internal/residency"
	"github.com/holdthatthought/htt-recorder/internal/session"
)

const stopOnExitTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the recorder daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts.cfg, cmd.ErrOrStderr())
		},
	}
}

// daemon holds everything serve wires together.
type daemon struct {
	cfg     *config.Config
	log     *slog.Logger
	diag    *diaglog.Logger
	bus     *events.Bus
	metrics *metrics.Metrics
	ctrl    *session.Controller
}

func newDaemon(cfg *config.Config, log *slog.Logger, diag *diaglog.Logger, factory recorder.Factory) (*daemon, error) {
	m := metrics.New()
	bus := events.NewBus()
	bus.OnDrop = func(e events.Event) {
		m.EventDropped()
		log.Warn("status event dropped, subscriber too slow", "event", e.Name)
	}

	surfaces := []notifier.Surface{notifier.NewStatusFile(cfg.StateDir)}
	if cfg.Notifier.Desktop {
		surfaces = append(surfaces, notifier.NewDesktop())
	}
	n := notifier.New(log, surfaces...)
	n.SetInterval(cfg.Notifier.Interval)

	ctrl, err := session.New(session.Options{
		Factory:   factory,
		Format:    recorder.DefaultFormat,
		Bus:       bus,
		Notifier:  n,
		Residency: residency.New(cfg.Residency.Enabled, log),
		Metrics:   m,
		Logger:    log,
		Diag:      diag,
	})
	if err != nil {
		return nil, err
	}
	return &daemon{cfg: cfg, log: log, diag: diag, bus: bus, metrics: m, ctrl: ctrl}, nil
}

// run serves commands until ctx is done or a fatal transport error occurs,
// then stops any active session.
func (d *daemon) run(ctx context.Context, signals <-chan os.Signal) error {
	if err := ipc.WriteStatus(d.cfg.StateDir, &ipc.StatusSnapshot{Timestamp: time.Now()}); err != nil {
		d.log.Warn("failed to write initial status", "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := ipc.Watch(ctx, d.cfg.StateDir, d.cfg.CommandPoll, d.log.With("component", "command-watcher"),
			func(ctx context.Context, cmd ipc.Command) {
				d.log.Info("[EVENT] command received", "action", cmd.Action, "source", "file")
				if err := d.ctrl.Dispatch(ctx, "file", cmd); err != nil {
					d.log.Error("command failed", "action", cmd.Action, "error", err)
				}
			})
		if err != nil {
			errCh <- fmt.Errorf("command watcher: %w", err)
		}
	}()

	if d.cfg.API.Enabled {
		h := api.NewHandler(d.ctrl, d.bus, d.log, d.metrics, d.cfg.API.EventBuffer)
		router := api.NewRouter(h, d.metrics, d.log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := api.Serve(ctx, d.cfg.API.Addr, router, d.log, nil); err != nil {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
	}

	d.log.Info("[RUNNING] htt-recorder is ready", "state_dir", d.cfg.StateDir)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errCh:
			runErr = err
			break loop
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				d.ctrl.Interrupt("hangup")
				continue
			}
			d.log.Info("[SHUTDOWN] signal received", "signal", sig.String())
			break loop
		}
	}

	cancel()

	sctx, scancel := context.WithTimeout(context.Background(), stopOnExitTimeout)
	defer scancel()
	if err := d.ctrl.Shutdown(sctx); err != nil {
		d.log.Error("[SHUTDOWN] failed to finalize active recording", "error", err)
	}
	d.bus.Close()
	wg.Wait()

	if err := ipc.WriteStatus(d.cfg.StateDir, &ipc.StatusSnapshot{Timestamp: time.Now()}); err != nil {
		d.log.Warn("failed to write final status", "error", err)
	}
	d.log.Info("[SHUTDOWN] htt-recorder stopped")
	return runErr
}

func serve(ctx context.Context, cfg *config.Config, console io.Writer) error {
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	log, closer := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}, console)
	defer closer.Close()
	slog.SetDefault(log)

	log.Info("===========================================")
	log.Info("[STARTUP] starting htt-recorder", "version", Version, "pid", os.Getpid())

	diag, err := diaglog.New(cfg.DebugLog)
	if err != nil {
		log.Warn("[STARTUP] diagnostic log unavailable, continuing without it", "path", cfg.DebugLog, "error", err)
		diag = diaglog.NewNoOp()
	} else if diag.Enabled() {
		log.Info("[STARTUP] diagnostic log enabled", "path", cfg.DebugLog)
	}
	defer diag.Close()

	pidPath := cfg.PIDPath()
	pf, err := pidfile.New(pidPath)
	if err != nil {
		log.Error("[STARTUP] failed to create PID file", "path", pidPath, "error", err)
		return fmt.Errorf("%w; if no other instance is running, remove %s", err, pidPath)
	}
	defer func() {
		if err := pf.Remove(); err != nil {
			log.Warn("failed to remove PID file", "error", err)
		}
	}()

	if err := recorder.CheckBinary(cfg.Recorder.Binary); err != nil {
		// Not fatal: each start reports the failure as an error event.
		log.Warn("[STARTUP] recorder binary check failed", "error", err)
	}

	factory := recorder.NewFFmpegFactory(recorder.FFmpegConfig{
		Binary:      cfg.Recorder.Binary,
		InputFormat: cfg.Recorder.InputFormat,
		InputDevice: cfg.Recorder.InputDevice,
		StartGrace:  cfg.Recorder.StartGrace,
		StopTimeout: cfg.Recorder.StopTimeout,
		Logger:      log,
	})

	d, err := newDaemon(cfg, log, diag, factory)
	if err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)
	log.Info("[STARTUP] signal handlers registered (SIGINT, SIGTERM, SIGHUP)")

	return d.run(ctx, signals)
}
