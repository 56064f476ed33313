// Package frame provides screen-region snapshots for the pipeline.
package frame

import (
	"image"
	"time"
)

// Frame is an immutable snapshot of the capture region. It is owned by
// whichever pipeline stage currently holds it and passed by value.
type Frame struct {
	Img       image.Image
	Region    image.Rectangle // capture region in screen coordinates
	Seq       uint64
	Timestamp time.Time
}

// Bounds returns the pixel bounds of the snapshot.
func (f Frame) Bounds() image.Rectangle {
	if f.Img == nil {
		return image.Rectangle{}
	}
	return f.Img.Bounds()
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	b := f.Bounds()
	return b.Dx() == 0 || b.Dy() == 0
}
