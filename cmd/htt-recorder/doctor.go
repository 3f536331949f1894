package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/holdthatthought/htt-recorder/internal/config"
	"github.com/holdthatthought/htt-recorder/internal/notifier"
	"github.com/holdthatthought/htt-recorder/internal/pidfile"
	"github.com/holdthatthought/htt-recorder/internal/recorder"
	"github.com/holdthatthought/htt-recorder/internal/residency"
)

// check is one line of doctor output. Required checks fail the command.
type check struct {
	Name     string
	OK       bool
	Detail   string
	Required bool
}

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that recording can work on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := runChecks(opts.cfg, runtime.GOOS, exec.LookPath)
			if failed := printChecks(cmd.OutOrStdout(), checks); failed > 0 {
				return fmt.Errorf("%d required check(s) failed", failed)
			}
			return nil
		},
	}
}

func runChecks(cfg *config.Config, goos string, lookPath func(string) (string, error)) []check {
	var checks []check

	if err := recorder.CheckBinary(cfg.Recorder.Binary); err != nil {
		checks = append(checks, check{Name: "ffmpeg", Detail: err.Error(), Required: true})
	} else {
		checks = append(checks, check{Name: "ffmpeg", OK: true, Detail: cfg.Recorder.Binary, Required: true})

		r, err := recorder.NewFFmpeg(recorder.FFmpegConfig{
			Binary:      cfg.Recorder.Binary,
			InputFormat: cfg.Recorder.InputFormat,
			InputDevice: cfg.Recorder.InputDevice,
		}, recorder.DefaultFormat)
		if err != nil {
			checks = append(checks, check{Name: "capture input", Detail: err.Error(), Required: true})
		} else {
			args := r.Args(filepath.Join(cfg.StateDir, "doctor.m4a"))
			checks = append(checks, check{Name: "capture input", OK: true, Detail: fmt.Sprint(args), Required: true})
		}
	}

	checks = append(checks, toolCheck("desktop notifications", notifier.DesktopTool(goos), lookPath, cfg.Notifier.Desktop))
	checks = append(checks, toolCheck("sleep inhibitor", residency.Tool(goos), lookPath, cfg.Residency.Enabled))
	checks = append(checks, stateDirCheck(cfg.StateDir))

	if pid, ok := pidfile.Running(cfg.PIDPath()); ok {
		checks = append(checks, check{Name: "daemon", OK: true, Detail: fmt.Sprintf("running (PID %d)", pid)})
	} else {
		checks = append(checks, check{Name: "daemon", Detail: "not running, start it with `htt-recorder serve`"})
	}
	return checks
}

func toolCheck(name, tool string, lookPath func(string) (string, error), enabled bool) check {
	switch {
	case !enabled:
		return check{Name: name, OK: true, Detail: "disabled"}
	case tool == "":
		return check{Name: name, Detail: "unsupported on this platform"}
	}
	path, err := lookPath(tool)
	if err != nil {
		return check{Name: name, Detail: tool + " not found in PATH"}
	}
	return check{Name: name, OK: true, Detail: path}
}

func stateDirCheck(dir string) check {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return check{Name: "state dir", Detail: err.Error(), Required: true}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return check{Name: "state dir", Detail: "not writable: " + err.Error(), Required: true}
	}
	f.Close()
	os.Remove(f.Name())
	return check{Name: "state dir", OK: true, Detail: dir, Required: true}
}

// printChecks writes one line per check and returns the number of failed
// required checks.
func printChecks(out io.Writer, checks []check) int {
	failed := 0
	for _, c := range checks {
		mark := "✓"
		if !c.OK {
			mark = "⚠"
			if c.Required {
				mark = "✗"
				failed++
			}
		}
		fmt.Fprintf(out, "%s %-22s %s\n", mark, c.Name, c.Detail)
	}
	return failed
}
