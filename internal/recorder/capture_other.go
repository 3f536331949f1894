//go:build !linux && !darwin

package recorder

// defaultCaptureInput has no safe default here; DirectShow needs a device name.
func defaultCaptureInput() (format, device string) {
	return "", ""
}
