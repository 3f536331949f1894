//go:build darwin

package recorder

// defaultCaptureInput records from the system default input device.
func defaultCaptureInput() (format, device string) {
	return "avfoundation", ":default"
}
