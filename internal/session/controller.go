// Package session owns the single recording session: it turns start and
// stop commands into recorder calls, keeps the notifier and sleep inhibitor
// in step with the session, and publishes status events.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/holdthatthought/htt-recorder/internal/diaglog"
	"github.com/holdthatthought/htt-recorder/internal/events"
	"github.com/holdthatthought/htt-recorder/internal/ipc"
	"github.com/holdthatthought/htt-recorder/internal/metrics"
	"github.com/holdthatthought/htt-recorder/internal/notifier"
	"github.com/holdthatthought/htt-recorder/internal/recorder"
	"github.com/holdthatthought/htt-recorder/internal/statemachine"
)

var (
	// ErrPathRequired is returned by Start when no output path is given.
	ErrPathRequired = errors.New("file path is required")
	// ErrUnknownAction is returned by Dispatch for actions it does not handle.
	ErrUnknownAction = errors.New("unknown action")
)

// Residency keeps the host awake while recording.
type Residency interface {
	Acquire(reason string) error
	Release() error
}

// Options wires the controller's collaborators. Factory is required; the
// rest are optional.
type Options struct {
	Factory   recorder.Factory
	Format    recorder.Format
	Bus       *events.Bus
	Notifier  *notifier.Notifier
	Residency Residency
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Diag      *diaglog.Logger
}

// Controller serializes every command through one mutex so at most one
// session exists. IsRecording reads an atomic flag and never blocks.
type Controller struct {
	factory   recorder.Factory
	format    recorder.Format
	bus       *events.Bus
	notifier  *notifier.Notifier
	residency Residency
	metrics   *metrics.Metrics
	log       *slog.Logger
	diag      *diaglog.Logger

	sm *statemachine.StateMachine

	mu  sync.Mutex
	rec recorder.Recorder
}

// New creates an idle controller.
func New(opts Options) (*Controller, error) {
	if opts.Factory == nil {
		return nil, errors.New("session: recorder factory is required")
	}
	if opts.Format == (recorder.Format{}) {
		opts.Format = recorder.DefaultFormat
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Diag == nil {
		opts.Diag = diaglog.NewNoOp()
	}
	return &Controller{
		factory:   opts.Factory,
		format:    opts.Format,
		bus:       opts.Bus,
		notifier:  opts.Notifier,
		residency: opts.Residency,
		metrics:   opts.Metrics,
		log:       opts.Logger.With("component", "session"),
		diag:      opts.Diag,
		sm:        statemachine.NewStateMachine(),
	}, nil
}

// Bus returns the event bus the controller publishes to.
func (c *Controller) Bus() *events.Bus { return c.bus }

// IsRecording reports whether a session is active.
func (c *Controller) IsRecording() bool {
	return c.sm.IsRecording()
}

// Current returns the active session, or a zero Session when idle.
func (c *Controller) Current() statemachine.Session {
	if !c.sm.IsRecording() {
		return statemachine.Session{}
	}
	return c.sm.Session()
}

// Elapsed returns how long the active session has been recording.
func (c *Controller) Elapsed() time.Duration {
	return c.sm.RecordingDuration()
}

// Start begins recording to path. Starting while a session is active is a
// no-op. Configuration failures are published as an Error event, counted,
// and returned; the controller stays idle.
func (c *Controller) Start(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(path) == "" {
		c.failStart("", ErrPathRequired)
		return ErrPathRequired
	}

	if c.sm.IsRecording() {
		c.log.Warn("recording already in progress", "requested_path", path, "session_id", c.sm.SessionID())
		c.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentSession,
			Event:     diaglog.EventRecordingStartIgnored,
			SessionID: c.sm.SessionID(),
			Reason:    "already_recording",
		})
		return nil
	}

	rec, err := c.factory(c.format)
	if err != nil {
		c.failStart(path, err)
		return err
	}
	if err := rec.Start(ctx, path); err != nil {
		if rerr := rec.Release(); rerr != nil {
			c.log.Warn("failed to release recorder after start failure", "error", rerr)
		}
		c.failStart(path, err)
		return err
	}

	sess, err := c.sm.Begin(uuid.NewString(), path)
	if err != nil {
		// Unreachable while c.mu is held; keep the recorder from leaking.
		_ = rec.Release()
		return err
	}
	c.rec = rec

	if c.residency != nil {
		if err := c.residency.Acquire("recording audio to " + path); err != nil {
			c.diag.Log(diaglog.LogEntry{
				Component: diaglog.ComponentSession,
				Event:     diaglog.EventResidencyFailed,
				SessionID: sess.ID,
				Reason:    err.Error(),
			})
		}
	}
	if c.notifier != nil {
		c.notifier.Begin(sess, c.sm.IsRecording)
	}
	c.metrics.SessionStarted()

	c.log.Info("[EVENT] recording started", "session_id", sess.ID, "path", path, "backend", rec.Name())
	c.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventRecordingStart,
		SessionID: sess.ID,
		Payload:   map[string]interface{}{"path": path, "backend": rec.Name()},
	})
	c.publish(events.Started())
	return nil
}

func (c *Controller) failStart(path string, err error) {
	c.log.Error("failed to start recording", "path", path, "error", err)
	c.metrics.Failure(metrics.KindConfiguration)
	c.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventRecordingStartFailed,
		Reason:    err.Error(),
		Payload:   map[string]interface{}{"path": path},
	})
	c.publish(events.Failure(err.Error()))
}

// Stop ends the active session. Stopping while idle is a no-op. On success a
// Completed event carries the path and elapsed milliseconds; on failure an
// Error event is published first and cleanup runs afterwards either way.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(ctx, "stop")
}

func (c *Controller) stopLocked(ctx context.Context, reason string) error {
	sess, ok := c.sm.End()
	if !ok {
		c.log.Debug("stop ignored, not recording", "reason", reason)
		c.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentSession,
			Event:     diaglog.EventRecordingStopIgnored,
			Reason:    reason,
		})
		return nil
	}
	rec := c.rec
	defer c.cleanup(ctx)

	if rec == nil {
		err := fmt.Errorf("%w: %w", recorder.ErrStopFailed, recorder.ErrNotStarted)
		c.failStop(sess, err)
		return err
	}

	if _, err := rec.Stop(ctx); err != nil {
		c.failStop(sess, err)
		return err
	}

	duration := time.Since(sess.StartedAt)
	c.metrics.SessionCompleted(duration.Seconds())
	c.log.Info("[EVENT] recording stopped", "session_id", sess.ID, "path", sess.OutputPath, "duration_ms", duration.Milliseconds(), "reason", reason)
	c.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventRecordingStop,
		SessionID: sess.ID,
		Reason:    reason,
		Payload:   map[string]interface{}{"path": sess.OutputPath, "duration_ms": duration.Milliseconds()},
	})
	c.publish(events.Completion(sess.OutputPath, duration))
	return nil
}

func (c *Controller) failStop(sess statemachine.Session, err error) {
	c.log.Error("error stopping recording", "session_id", sess.ID, "path", sess.OutputPath, "error", err)
	c.metrics.Failure(metrics.KindStop)
	c.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventRecordingStopFailed,
		SessionID: sess.ID,
		Reason:    err.Error(),
	})
	c.publish(events.Failure(err.Error()))
}

// cleanup releases everything the session held. Caller holds c.mu.
func (c *Controller) cleanup(ctx context.Context) {
	if c.rec != nil {
		if err := c.rec.Release(); err != nil {
			c.log.Warn("error cleaning up recorder", "error", err)
		}
		c.rec = nil
	}
	if c.notifier != nil {
		c.notifier.End(ctx)
	}
	if c.residency != nil {
		if err := c.residency.Release(); err != nil {
			c.log.Warn("failed to release sleep inhibitor", "error", err)
		}
	}
	c.metrics.SetRecording(false)
	c.sm.Clear()
}

// Dispatch routes a command from any transport. source labels metrics and
// logs ("file", "api", "cli").
func (c *Controller) Dispatch(ctx context.Context, source string, cmd ipc.Command) error {
	c.metrics.CommandReceived(source, string(cmd.Action))
	c.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentCommands,
		Event:     diaglog.EventCommandReceived,
		Reason:    source,
		Payload:   map[string]interface{}{"action": string(cmd.Action), "file_path": cmd.FilePath},
	})

	switch cmd.Action {
	case ipc.ActionStart:
		return c.Start(ctx, cmd.FilePath)
	case ipc.ActionStop:
		return c.Stop(ctx)
	default:
		c.log.Error("unknown action", "action", cmd.Action, "source", source)
		c.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentCommands,
			Event:     diaglog.EventCommandIgnored,
			Reason:    "unknown_action",
			Payload:   map[string]interface{}{"action": string(cmd.Action)},
		})
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

// Interrupt records an external event such as a screen lock or SIGHUP. The
// session keeps recording.
func (c *Controller) Interrupt(reason string) {
	sessionID := c.sm.SessionID()
	c.log.Info("interrupt received, recording continues", "reason", reason, "recording", sessionID != "", "session_id", sessionID)
	c.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventInterrupt,
		SessionID: sessionID,
		Reason:    reason,
	})
}

// Shutdown stops any active session so the output file is finalized before
// the daemon exits.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventShutdown,
		SessionID: c.sm.SessionID(),
	})
	return c.stopLocked(ctx, "shutdown")
}

func (c *Controller) publish(e events.Event) {
	c.bus.Publish(e)
}
