package merge

import (
	"image"

	"github.com/lenslate/lenslate/internal/block"
)

// DefaultMinIdentityOverlap is the box overlap fraction below which two
// blocks cannot share an identity.
const DefaultMinIdentityOverlap = 0.5

// Matcher assigns stable identities to blocks across frames by spatial and
// text continuity. It is the overlay's handle for updating only moved or
// changed blocks instead of redrawing everything.
type Matcher struct {
	minOverlap float64
	prev       []prevBlock
}

type prevBlock struct {
	id   block.Identity
	box  image.Rectangle
	text string // normalized
}

// NewMatcher creates a matcher. A non-positive overlap uses the default.
func NewMatcher(minOverlap float64) *Matcher {
	if minOverlap <= 0 {
		minOverlap = DefaultMinIdentityOverlap
	}
	return &Matcher{minOverlap: minOverlap}
}

// Assign sets each block's identity in place: a block inherits a prior
// frame's identity when their boxes overlap above the configured fraction
// AND their normalized texts are identical; otherwise a new identity is
// minted. Each prior identity is claimed at most once per frame.
func (m *Matcher) Assign(blocks []block.TextBlock) {
	claimed := make(map[block.Identity]bool, len(m.prev))
	next := make([]prevBlock, 0, len(blocks))

	for i := range blocks {
		norm := block.Normalize(blocks[i].Text)
		id := m.match(blocks[i].Box, norm, claimed)
		if id == "" {
			id = block.NewIdentity()
		}
		claimed[id] = true
		blocks[i].ID = id
		next = append(next, prevBlock{id: id, box: blocks[i].Box, text: norm})
	}

	m.prev = next
}

func (m *Matcher) match(box image.Rectangle, norm string, claimed map[block.Identity]bool) block.Identity {
	var bestID block.Identity
	var bestOverlap float64

	for _, p := range m.prev {
		if claimed[p.id] || p.text != norm {
			continue
		}
		overlap := boxOverlap(p.box, box)
		if overlap <= m.minOverlap {
			continue
		}
		if overlap > bestOverlap {
			bestID = p.id
			bestOverlap = overlap
		}
	}
	return bestID
}

// Reset drops all tracked identities. Used after a region or resolution
// change, when stale boxes no longer relate to the new frame geometry.
func (m *Matcher) Reset() {
	m.prev = nil
}

// boxOverlap returns the intersection area as a fraction of the smaller
// box's area.
func boxOverlap(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	smaller := min(area(a), area(b))
	if smaller == 0 {
		return 0
	}
	return float64(area(inter)) / float64(smaller)
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}
