package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/holdthatthought/htt-recorder/internal/diaglog"
	"github.com/holdthatthought/htt-recorder/internal/ipc"
	"github.com/holdthatthought/htt-recorder/internal/pidfile"
)

func newStartCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Ask the daemon to start recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			abs, err := filepath.Abs(file)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", file, err)
			}
			return sendCommand(cmd.OutOrStdout(), opts.cfg.StateDir, opts.cfg.PIDPath(),
				ipc.Command{Action: ipc.ActionStart, FilePath: abs})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "output .m4a path")
	return cmd
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the daemon to stop recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd.OutOrStdout(), opts.cfg.StateDir, opts.cfg.PIDPath(),
				ipc.Command{Action: ipc.ActionStop})
		},
	}
}

func sendCommand(out io.Writer, stateDir, pidPath string, cmd ipc.Command) error {
	if err := ipc.WriteCommand(stateDir, cmd); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	fmt.Fprintf(out, "✓ %s command written to %s\n", cmd.Action, ipc.CommandPath(stateDir))
	if _, ok := pidfile.Running(pidPath); !ok {
		fmt.Fprintln(out, "⚠ daemon is not running; the command will run when `htt-recorder serve` starts")
	}
	return nil
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and recording status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(cmd.OutOrStdout(), opts.cfg.StateDir, opts.cfg.PIDPath(), time.Now())
		},
	}
}

func printStatus(out io.Writer, stateDir, pidPath string, now time.Time) error {
	if pid, ok := pidfile.Running(pidPath); ok {
		fmt.Fprintf(out, "Daemon:    running (PID %d)\n", pid)
	} else {
		fmt.Fprintln(out, "Daemon:    not running")
	}

	st, err := ipc.ReadStatus(stateDir)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "Recording: no status published yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	if !st.Recording {
		fmt.Fprintln(out, "Recording: idle")
	} else {
		fmt.Fprintln(out, "Recording: active")
		fmt.Fprintf(out, "  Session: %s\n", st.SessionID)
		fmt.Fprintf(out, "  File:    %s\n", st.OutputPath)
		fmt.Fprintf(out, "  Elapsed: %s\n", st.Elapsed)
	}
	if st.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", st.LastError)
	}
	if !st.Timestamp.IsZero() {
		fmt.Fprintf(out, "Updated:   %s ago\n", now.Sub(st.Timestamp).Round(time.Second))
	}
	return nil
}

func newExportDiagCmd(opts *rootOptions) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "export-diag",
		Short: "Export the diagnostic log as a support bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dest == "" {
				dest = opts.cfg.StateDir
			}
			path, lines, err := diaglog.Export(opts.cfg.DebugLog, dest,
				diaglog.WithStatusFile(ipc.StatusPath(opts.cfg.StateDir)))
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Diagnostics exported to: %s (%d lines)\n", path, lines)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "destination directory (default state dir)")
	return cmd
}
