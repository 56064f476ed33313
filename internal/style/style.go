// Package style derives display colors for a text block from the frame
// pixels around it: the dominant color just outside the box is the page
// background, the dominant inside color contrasting most with it is the
// text foreground.
package style

import (
	"image"
	"image/color"
	"sort"

	"github.com/nfnt/resize"

	"github.com/lenslate/lenslate/internal/block"
	"github.com/lenslate/lenslate/internal/frame"
)

const (
	// bucketShift quantizes each channel to 32 levels; fine enough to
	// separate text from page, coarse enough that antialiased edges fall
	// into the glyph's bucket.
	bucketShift = 3

	// maxSampleWidth caps the histogrammed region; wider block interiors
	// are downsampled before counting.
	maxSampleWidth = 256

	// noiseShare gates the foreground pick on a fraction of the total
	// interior samples, not of the top bucket. Glyph pixels are a small
	// minority of a line box (often well under 10%), dwarfed by the page
	// bucket; a threshold relative to the mode would exclude them.
	noiseShare = 64

	// minContrast is the squared channel distance below which the best
	// candidate is considered indistinguishable from the background and
	// the default foreground is used instead.
	minContrast = 32 * 32
)

// Config holds the fallback colors used when a block's box falls outside
// the frame (stale geometry after a resize).
type Config struct {
	DefaultFG color.RGBA
	DefaultBG color.RGBA
}

// DefaultConfig is light-on-dark, readable on most content.
func DefaultConfig() Config {
	return Config{
		DefaultFG: color.RGBA{R: 0xF0, G: 0xF0, B: 0xF0, A: 0xFF},
		DefaultBG: color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xFF},
	}
}

// Extractor computes per-block colors. Deterministic given identical pixel
// data.
type Extractor struct {
	cfg Config
}

// New creates an extractor. Zero-value colors fall back to DefaultConfig.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.DefaultFG == (color.RGBA{}) {
		cfg.DefaultFG = def.DefaultFG
	}
	if cfg.DefaultBG == (color.RGBA{}) {
		cfg.DefaultBG = def.DefaultBG
	}
	return &Extractor{cfg: cfg}
}

// Extract returns the foreground and background colors for a block. A box
// outside the frame bounds yields the configured default pair rather than
// an error; the pipeline must not fail on stale geometry.
func (e *Extractor) Extract(f frame.Frame, b block.TextBlock) (fg, bg color.RGBA) {
	bounds := f.Bounds()
	box := b.Box.Intersect(bounds)
	if f.Img == nil || box.Empty() {
		return e.cfg.DefaultFG, e.cfg.DefaultBG
	}

	margin := b.Box.Dy() / 2
	if margin < 4 {
		margin = 4
	}
	outer := box.Inset(-margin).Intersect(bounds)

	border := newHist()
	for _, strip := range borderStrips(outer, box) {
		border.count(f.Img, strip)
	}
	bg, ok := border.mode()
	if !ok {
		bg = e.cfg.DefaultBG
	}

	inner := newHist()
	img, region := sampled(f.Img, box)
	inner.count(img, region)
	fg, ok = inner.contrasting(bg)
	if !ok {
		fg = e.cfg.DefaultFG
	}
	return fg, bg
}

// Apply sets colors on each block in place.
func (e *Extractor) Apply(f frame.Frame, blocks []block.TextBlock) {
	for i := range blocks {
		blocks[i].FG, blocks[i].BG = e.Extract(f, blocks[i])
	}
}

// borderStrips returns the four regions between the expanded box and the
// block box: everything sampled as "outside the border".
func borderStrips(outer, inner image.Rectangle) []image.Rectangle {
	strips := []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y), // top
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y), // bottom
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y), // left
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y), // right
	}
	out := strips[:0]
	for _, r := range strips {
		if !r.Empty() {
			out = append(out, r)
		}
	}
	return out
}

// sampled returns the image and region to histogram for a block interior,
// downsampling wide boxes first.
func sampled(img image.Image, box image.Rectangle) (image.Image, image.Rectangle) {
	if box.Dx() <= maxSampleWidth {
		return img, box
	}
	si, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return img, box
	}
	small := resize.Resize(maxSampleWidth, 0, si.SubImage(box), resize.NearestNeighbor)
	return small, small.Bounds()
}

// hist is a coarse RGB bucket histogram tracking per-bucket counts and
// channel sums so a bucket can report its mean color.
type hist struct {
	counts map[uint32]int
	sums   map[uint32][3]uint64
}

func newHist() *hist {
	return &hist{counts: make(map[uint32]int), sums: make(map[uint32][3]uint64)}
}

func (h *hist) count(img image.Image, region image.Rectangle) {
	region = region.Intersect(img.Bounds())
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(b>>8)
			key := uint32(r8>>bucketShift)<<16 | uint32(g8>>bucketShift)<<8 | uint32(b8>>bucketShift)
			h.counts[key]++
			sum := h.sums[key]
			sum[0] += uint64(r8)
			sum[1] += uint64(g8)
			sum[2] += uint64(b8)
			h.sums[key] = sum
		}
	}
}

// keys returns bucket keys in ascending order; map iteration order must not
// leak into color picks.
func (h *hist) keys() []uint32 {
	keys := make([]uint32, 0, len(h.counts))
	for k := range h.counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// mode returns the mean color of the most populated bucket.
func (h *hist) mode() (color.RGBA, bool) {
	bestKey, bestCount := uint32(0), 0
	for _, k := range h.keys() {
		if c := h.counts[k]; c > bestCount {
			bestKey, bestCount = k, c
		}
	}
	if bestCount == 0 {
		return color.RGBA{}, false
	}
	return h.meanOf(bestKey), true
}

// contrasting returns the mean color farthest from bg among buckets above
// the noise floor. The background bucket is always a candidate but its
// distance is near zero, so any real glyph bucket beats it; when nothing
// beats it (a uniform interior), the caller falls back to defaults.
func (h *hist) contrasting(bg color.RGBA) (color.RGBA, bool) {
	total := 0
	for _, c := range h.counts {
		total += c
	}
	if total == 0 {
		return color.RGBA{}, false
	}
	floor := total / noiseShare
	if floor < 1 {
		floor = 1
	}

	var best color.RGBA
	bestDist := int64(-1)
	for _, k := range h.keys() {
		if h.counts[k] < floor {
			continue
		}
		mean := h.meanOf(k)
		if d := colorDist(mean, bg); d > bestDist {
			best, bestDist = mean, d
		}
	}
	if bestDist < minContrast {
		return color.RGBA{}, false
	}
	return best, true
}

func (h *hist) meanOf(key uint32) color.RGBA {
	count := h.counts[key]
	if count == 0 {
		return color.RGBA{}
	}
	sum := h.sums[key]
	return color.RGBA{
		R: uint8(sum[0] / uint64(count)),
		G: uint8(sum[1] / uint64(count)),
		B: uint8(sum[2] / uint64(count)),
		A: 0xFF,
	}
}

func colorDist(a, b color.RGBA) int64 {
	dr := int64(a.R) - int64(b.R)
	dg := int64(a.G) - int64(b.G)
	db := int64(a.B) - int64(b.B)
	return dr*dr + dg*dg + db*db
}
