//go:build linux

package recorder

// defaultCaptureInput records from the PulseAudio/PipeWire default source.
func defaultCaptureInput() (format, device string) {
	return "pulse", "default"
}
