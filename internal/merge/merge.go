// Package merge groups line-level detections into paragraph blocks and
// assigns stable block identities across frames.
package merge

import (
	"image"
	"sort"
	"strings"

	"github.com/lenslate/lenslate/internal/block"
)

// Defaults match the tolerances the original overlay app shipped with.
const (
	DefaultMinHorizontalOverlap = 0.3 // fraction of the narrower line's width
	DefaultWrapGapRatio         = 0.8 // gap below this × line height joins with a space
	DefaultMaxGapRatio          = 1.5 // gap below this × line height stays in the block
	minFontSize                 = 8
)

// Config holds the paragraph grouping tolerances.
type Config struct {
	// MinHorizontalOverlap is the horizontal overlap fraction two lines
	// need to belong to the same block.
	MinHorizontalOverlap float64
	// WrapGapRatio separates wrapped lines (joined with a space) from
	// paragraph breaks within a block (joined with a newline).
	WrapGapRatio float64
	// MaxGapRatio is the vertical gap, as a multiple of line height, above
	// which a line starts a new block.
	MaxGapRatio float64
}

func (c Config) withDefaults() Config {
	if c.MinHorizontalOverlap <= 0 {
		c.MinHorizontalOverlap = DefaultMinHorizontalOverlap
	}
	if c.WrapGapRatio <= 0 {
		c.WrapGapRatio = DefaultWrapGapRatio
	}
	if c.MaxGapRatio <= 0 {
		c.MaxGapRatio = DefaultMaxGapRatio
	}
	return c
}

// Merger groups detections into paragraph blocks. Stateless; identity
// assignment across frames is the Matcher's job.
type Merger struct {
	cfg Config
}

// New creates a merger, applying defaults for zero config fields.
func New(cfg Config) *Merger {
	return &Merger{cfg: cfg.withDefaults()}
}

// group is an open paragraph accumulating lines top to bottom.
type group struct {
	lines []block.RawDetection
	joins []string // join token between line i and i+1
	box   image.Rectangle
}

func (g *group) last() block.RawDetection {
	return g.lines[len(g.lines)-1]
}

func (g *group) add(line block.RawDetection, join string) {
	if len(g.lines) > 0 {
		g.joins = append(g.joins, join)
	}
	g.lines = append(g.lines, line)
	g.box = g.box.Union(line.Box)
}

// Merge groups lines into paragraph blocks. Deterministic: identical input
// geometry and ordering always yields identical groupings. Zero input lines
// yields empty output.
func (m *Merger) Merge(lines []block.RawDetection) []block.TextBlock {
	if len(lines) == 0 {
		return nil
	}

	sorted := make([]block.RawDetection, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Box.Min.Y != sorted[j].Box.Min.Y {
			return sorted[i].Box.Min.Y < sorted[j].Box.Min.Y
		}
		return sorted[i].Box.Min.X < sorted[j].Box.Min.X
	})

	var groups []*group
	for _, line := range sorted {
		g, join := m.pick(groups, line)
		if g == nil {
			g = &group{box: line.Box}
			g.lines = []block.RawDetection{line}
			groups = append(groups, g)
			continue
		}
		g.add(line, join)
	}

	blocks := make([]block.TextBlock, 0, len(groups))
	for _, g := range groups {
		blocks = append(blocks, m.finish(g))
	}
	return blocks
}

// pick selects the open group a line joins, or nil for a new group. When a
// line could join either of two groups (ambiguous column layout), the one
// with greater horizontal overlap wins; on equal overlap, the group above.
func (m *Merger) pick(groups []*group, line block.RawDetection) (*group, string) {
	var best *group
	var bestOverlap float64

	for _, g := range groups {
		last := g.last()
		overlap := horizontalOverlap(last.Box, line.Box)
		if overlap <= m.cfg.MinHorizontalOverlap {
			continue
		}
		gap := line.Box.Min.Y - last.Box.Max.Y
		lineH := last.Box.Dy()
		if lineH <= 0 || float64(gap) >= m.cfg.MaxGapRatio*float64(lineH) {
			continue
		}
		// Strictly greater keeps the earlier (upper) group on ties:
		// groups are appended in top-to-bottom order.
		if best == nil || overlap > bestOverlap {
			best = g
			bestOverlap = overlap
		}
	}

	if best == nil {
		return nil, ""
	}

	join := " "
	last := best.last()
	gap := line.Box.Min.Y - last.Box.Max.Y
	if float64(gap) >= m.cfg.WrapGapRatio*float64(last.Box.Dy()) {
		// Gap too wide for a wrapped line: genuine paragraph break kept
		// inside the block.
		join = "\n"
	}
	return best, join
}

// finish turns an open group into a TextBlock. Identity and colors are
// assigned by later stages.
func (m *Merger) finish(g *group) block.TextBlock {
	var sb strings.Builder
	boxes := make([]image.Rectangle, len(g.lines))
	heightSum := 0
	for i, line := range g.lines {
		if i > 0 {
			sb.WriteString(g.joins[i-1])
		}
		sb.WriteString(line.Text)
		boxes[i] = line.Box
		heightSum += line.Box.Dy()
	}

	fontSize := minFontSize
	if len(g.lines) > 0 {
		if fs := heightSum * 3 / (len(g.lines) * 4); fs > fontSize {
			fontSize = fs
		}
	}

	return block.TextBlock{
		Box:      g.box,
		Lines:    boxes,
		Text:     sb.String(),
		FontSize: fontSize,
	}
}

// horizontalOverlap returns the shared horizontal extent of two boxes as a
// fraction of the narrower box's width.
func horizontalOverlap(a, b image.Rectangle) float64 {
	left := max(a.Min.X, b.Min.X)
	right := min(a.Max.X, b.Max.X)
	if right <= left {
		return 0
	}
	narrower := min(a.Dx(), b.Dx())
	if narrower <= 0 {
		return 0
	}
	return float64(right-left) / float64(narrower)
}
