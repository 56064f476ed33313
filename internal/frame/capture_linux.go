//go:build linux

package frame

import (
	"bytes"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

type linuxBackend struct{ tempDir string }

func (l *linuxBackend) captureRaw() []byte {
	tmpFile := filepath.Join(l.tempDir, "capture.png")
	// Try gnome-screenshot first, fall back to scrot. Both skip override-
	// redirect overlay windows that opt out of compositing.
	var cmd *exec.Cmd
	if _, err := exec.LookPath("gnome-screenshot"); err == nil {
		cmd = exec.Command("gnome-screenshot", "-f", tmpFile)
	} else if _, err := exec.LookPath("scrot"); err == nil {
		cmd = exec.Command("scrot", "-o", tmpFile)
	} else {
		slog.Error("no screenshot tool found (install gnome-screenshot or scrot)")
		return nil
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Error("screenshot failed", "error", err, "stderr", stderr.String())
		return nil
	}
	data, err := os.ReadFile(tmpFile)
	if err != nil {
		slog.Error("failed to read capture", "error", err)
		return nil
	}
	os.Remove(tmpFile)
	return data
}

func (l *linuxBackend) cleanup() {}

// NewSource creates a platform-specific frame source for the given region.
func NewSource(region image.Rectangle) Source {
	tmpDir, err := os.MkdirTemp("", "lenslate-capture-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return newBase(&linuxBackend{tempDir: tmpDir}, region, tmpDir)
}
