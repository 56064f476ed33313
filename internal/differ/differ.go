// Package differ decides whether a captured frame changed enough to re-run
// text extraction. It runs on every captured frame, so the metric works on a
// downsampled grayscale view rather than full-resolution pixels.
package differ

import (
	"image"
	"image/color"

	"github.com/corona10/goimagehash"
	"github.com/nfnt/resize"

	"github.com/lenslate/lenslate/internal/frame"
)

// Defaults tuned for ~1s capture intervals on text-heavy regions.
const (
	DefaultThreshold       = 0.02 // fraction of changed pixels
	DefaultPixelDelta      = 16   // gray delta for a pixel to count as changed
	DefaultDownsampleWidth = 320
	DefaultMaxHashDistance = 3 // pHash Hamming distance treated as identical
)

// Config holds the differ thresholds.
type Config struct {
	// Threshold is the changed-pixel fraction above which a frame is
	// considered materially different.
	Threshold float64
	// PixelDelta is the minimum grayscale difference for a pixel to count
	// as changed.
	PixelDelta uint8
	// DownsampleWidth bounds the width of the compared views.
	DownsampleWidth int
	// MaxHashDistance is the perceptual-hash Hamming distance at or below
	// which two frames are accepted as unchanged without the pixel pass.
	MaxHashDistance int
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.PixelDelta == 0 {
		c.PixelDelta = DefaultPixelDelta
	}
	if c.DownsampleWidth <= 0 {
		c.DownsampleWidth = DefaultDownsampleWidth
	}
	if c.MaxHashDistance < 0 {
		c.MaxHashDistance = DefaultMaxHashDistance
	}
	return c
}

// Differ compares successive frames. It holds no frame state; the decision
// is a pure function of the two frames and the configured thresholds.
type Differ struct {
	cfg Config
}

// New creates a differ, applying defaults for zero config fields.
func New(cfg Config) *Differ {
	return &Differ{cfg: cfg.withDefaults()}
}

// ShouldProcess reports whether cur differs materially from prev. The first
// frame (empty prev) and any dimension change (region or resolution changed)
// are unconditionally treated as changed.
func (d *Differ) ShouldProcess(prev, cur frame.Frame) bool {
	if cur.Empty() {
		return false
	}
	if prev.Empty() {
		return true
	}
	pb, cb := prev.Bounds(), cur.Bounds()
	if pb.Dx() != cb.Dx() || pb.Dy() != cb.Dy() {
		return true
	}

	prevGray := grayView(prev.Img, d.cfg.DownsampleWidth)
	curGray := grayView(cur.Img, d.cfg.DownsampleWidth)

	// Fast accept: near-zero perceptual distance means no material change
	// even when antialiasing jitter trips a few pixels.
	if d.hashSimilar(prevGray, curGray) {
		return false
	}

	return d.changedRatio(prevGray, curGray) > d.cfg.Threshold
}

// changedRatio counts pixels whose gray delta exceeds PixelDelta.
func (d *Differ) changedRatio(a, b *image.Gray) float64 {
	bounds := a.Bounds()
	if bounds != b.Bounds() {
		return 1
	}
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 1
	}

	changed := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		rowA := a.Pix[(y-bounds.Min.Y)*a.Stride:]
		rowB := b.Pix[(y-bounds.Min.Y)*b.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			if absDiff(rowA[x], rowB[x]) > d.cfg.PixelDelta {
				changed++
			}
		}
	}
	return float64(changed) / float64(total)
}

func (d *Differ) hashSimilar(a, b *image.Gray) bool {
	ha, err := goimagehash.PerceptionHash(a)
	if err != nil {
		return false
	}
	hb, err := goimagehash.PerceptionHash(b)
	if err != nil {
		return false
	}
	dist, err := ha.Distance(hb)
	if err != nil {
		return false
	}
	return dist <= d.cfg.MaxHashDistance
}

// grayView returns a grayscale copy of img, downsampled to at most maxWidth.
func grayView(img image.Image, maxWidth int) *image.Gray {
	if img.Bounds().Dx() > maxWidth {
		img = resize.Resize(uint(maxWidth), 0, img, resize.Bilinear)
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
