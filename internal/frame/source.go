package frame

import (
	"bytes"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"log/slog"
	"os"
	"time"
)

// Source yields successive screen-region snapshots.
//
// Boundary contract: the platform backend must exclude the overlay's own
// window from the composited image it returns. Capturing the overlay would
// feed rendered translations back into the pipeline as new source content.
type Source interface {
	Capture() (Frame, error)
	Close()
}

// backend implements platform-specific raw capture, returning encoded image
// bytes for the full display.
type backend interface {
	captureRaw() []byte
	cleanup()
}

// baseSource decodes backend output, crops to the configured region and
// stamps each snapshot with a monotonically increasing sequence number.
type baseSource struct {
	backend
	region  image.Rectangle // zero rect means full display
	seq     uint64
	tempDir string
}

func newBase(b backend, region image.Rectangle, tempDir string) *baseSource {
	return &baseSource{backend: b, region: region, tempDir: tempDir}
}

func (s *baseSource) Capture() (Frame, error) {
	data := s.captureRaw()
	if data == nil {
		return Frame{}, ErrCaptureFailed
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Error("failed to decode capture", "error", err)
		return Frame{}, ErrCaptureFailed
	}

	region := s.region
	if region.Empty() {
		region = img.Bounds()
	} else if cropped := crop(img, region); cropped != nil {
		img = cropped
	}

	s.seq++
	return Frame{
		Img:       img,
		Region:    region,
		Seq:       s.seq,
		Timestamp: time.Now(),
	}, nil
}

func (s *baseSource) Close() {
	s.cleanup()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

// subImager is implemented by the stdlib raster image types.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// crop returns the region view of img, or nil if img cannot be cropped or
// the region misses it entirely.
func crop(img image.Image, region image.Rectangle) image.Image {
	si, ok := img.(subImager)
	if !ok {
		return nil
	}
	r := region.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	return si.SubImage(r)
}
