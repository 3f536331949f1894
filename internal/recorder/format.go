package recorder

import (
	"fmt"
	"strconv"
)

// Format describes the encoded output. Callers only choose the output path;
// the session always records with DefaultFormat.
type Format struct {
	Container  string // ffmpeg muxer name
	Extension  string
	Codec      string
	BitRate    int // bits per second
	SampleRate int // Hz
	Channels   int
}

// DefaultFormat is MPEG-4 audio (AAC, 128 kbps, 44.1 kHz, mono).
var DefaultFormat = Format{
	Container:  "mp4",
	Extension:  ".m4a",
	Codec:      "aac",
	BitRate:    128000,
	SampleRate: 44100,
	Channels:   1,
}

// Validate rejects formats ffmpeg cannot be asked to produce.
func (f Format) Validate() error {
	if f.Container == "" {
		return fmt.Errorf("container is required")
	}
	if f.Codec == "" {
		return fmt.Errorf("codec is required")
	}
	if f.BitRate <= 0 {
		return fmt.Errorf("bit rate must be positive, got %d", f.BitRate)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", f.Channels)
	}
	return nil
}

// EncoderArgs returns the ffmpeg output options for f. MP4 output is written
// with an empty moov atom and one-second fragments so a partially written
// file still holds playable audio.
func (f Format) EncoderArgs() []string {
	args := []string{
		"-c:a", f.Codec,
		"-b:a", strconv.Itoa(f.BitRate),
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
	}
	if f.Container == "mp4" {
		args = append(args, "-movflags", "+empty_moov", "-frag_duration", "1000000")
	}
	return append(args, "-f", f.Container)
}
