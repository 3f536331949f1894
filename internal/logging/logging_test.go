package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_TextConsole(t *testing.T) {
	var buf bytes.Buffer
	log, closer := New(Config{Level: "info"}, &buf)
	defer closer.Close()

	log.Debug("hidden")
	log.Info("[STARTUP] ready", "pid", 42)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if !strings.Contains(out, "[STARTUP] ready") || !strings.Contains(out, "pid=42") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestNew_JSONAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "htt.log")
	log, closer := New(Config{Level: "debug", Format: "json", File: path}, &buf)

	log.Debug("recording started", "path", "/tmp/a.m4a")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("console output is not JSON: %v", err)
	}
	if line["msg"] != "recording started" {
		t.Errorf("msg = %v", line["msg"])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "recording started") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestNew_FileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "htt.log")
	log, closer := New(Config{File: path}, nil)
	log.Info("hello")
	_ = closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing entry: %s", data)
	}
}
