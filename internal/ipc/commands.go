package ipc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Action names a command sent from a UI layer to the daemon.
type Action string

const (
	ActionStart Action = "start" // Start recording to FilePath
	ActionStop  Action = "stop"  // Stop the active recording
)

// CommandFile is the name of the command channel file inside the state dir.
const CommandFile = "cmd.json"

// Command is one request on the file command channel.
type Command struct {
	Action   Action `json:"action"`
	FilePath string `json:"filePath,omitempty"`
}

// Known reports whether the action is one the daemon handles.
func (c Command) Known() bool {
	return c.Action == ActionStart || c.Action == ActionStop
}

// DefaultDir returns ~/.cache/htt, the default state directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "htt")
	}
	return filepath.Join(home, ".cache", "htt")
}

// CommandPath returns the command file path inside dir.
func CommandPath(dir string) string {
	return filepath.Join(dir, CommandFile)
}

// WriteCommand writes a command to <dir>/cmd.json
func WriteCommand(dir string, cmd Command) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return atomicWriteJSON(CommandPath(dir), cmd)
}

// ReadCommand reads and clears <dir>/cmd.json.
// ok is false if there is no command pending. Commands with an unknown
// action are still returned so the caller can log them.
func ReadCommand(dir string) (cmd Command, ok bool, err error) {
	cmdPath := CommandPath(dir)

	data, err := os.ReadFile(cmdPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Command{}, false, nil // No command pending
		}
		return Command{}, false, err
	}

	// Clear the file immediately to prevent re-execution
	if err := os.WriteFile(cmdPath, []byte(""), 0644); err != nil {
		return Command{}, false, err
	}

	if strings.TrimSpace(string(data)) == "" {
		return Command{}, false, nil // Empty file
	}

	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, false, fmt.Errorf("parse command: %w", err)
	}
	cmd.Action = Action(strings.ToLower(strings.TrimSpace(string(cmd.Action))))
	return cmd, true, nil
}
