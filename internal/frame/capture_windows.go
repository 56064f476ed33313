//go:build windows

package frame

import (
	"image"
	"log/slog"
	"os"
)

type windowsBackend struct{ tempDir string }

func (w *windowsBackend) captureRaw() []byte {
	// TODO: implement with DXGI duplication honoring WDA_EXCLUDEFROMCAPTURE
	slog.Warn("Windows screen capture not yet implemented")
	return nil
}

func (w *windowsBackend) cleanup() {}

// NewSource creates a platform-specific frame source for the given region.
func NewSource(region image.Rectangle) Source {
	tmpDir, err := os.MkdirTemp("", "lenslate-capture-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return newBase(&windowsBackend{tempDir: tmpDir}, region, tmpDir)
}
