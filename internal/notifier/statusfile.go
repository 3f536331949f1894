package notifier

import (
	"context"
	"time"

	"github.com/holdthatthought/htt-recorder/internal/ipc"
)

// StatusFile mirrors the notification into <dir>/status.json so UI layers
// and `htt-recorder status` can render it.
type StatusFile struct {
	Dir string
	now func() time.Time
}

// NewStatusFile creates a status file surface writing into dir.
func NewStatusFile(dir string) *StatusFile {
	return &StatusFile{Dir: dir, now: time.Now}
}

func (f *StatusFile) Name() string { return "status-file" }

func (f *StatusFile) Show(_ context.Context, s Status) error {
	return ipc.WriteStatus(f.Dir, &ipc.StatusSnapshot{
		Recording:  true,
		SessionID:  s.SessionID,
		OutputPath: s.OutputPath,
		StartedAt:  s.StartedAt,
		Elapsed:    s.Elapsed,
		Title:      s.Title,
		Text:       s.Text,
		StopAction: ipc.ActionStop,
		Timestamp:  f.now(),
	})
}

func (f *StatusFile) Dismiss(_ context.Context) error {
	return ipc.WriteStatus(f.Dir, &ipc.StatusSnapshot{Timestamp: f.now()})
}
