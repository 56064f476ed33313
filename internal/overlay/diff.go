// Package overlay tracks what the render client currently shows and
// computes the minimal visual diff for each published block set. The actual
// window drawing happens in an external client; the diff's op ordering
// carries the two-pass contract (all backgrounds, then all text) so no
// block's background can paint over a sibling's already-drawn glyphs.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/lenslate/lenslate/internal/block"
)

// Rect is the wire form of a box.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func toRect(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// PaintOp draws one block's background rectangle.
type PaintOp struct {
	ID    block.Identity `json:"id"`
	Box   Rect           `json:"box"`
	Color string         `json:"color"`
}

// TextOp draws one block's text.
type TextOp struct {
	ID         block.Identity `json:"id"`
	Box        Rect           `json:"box"`
	Text       string         `json:"text"`
	SourceText string         `json:"source_text"` // client clamps runaway translations against this
	Pending    bool           `json:"pending"`
	Color      string         `json:"color"`
	FontSize   int            `json:"font_size"`
}

// RenderDiff is the incremental update for one published block set. Ops are
// pre-ordered: removals, then every background, then every text.
type RenderDiff struct {
	Generation  uint64           `json:"generation"`
	Removals    []block.Identity `json:"removals,omitempty"`
	Backgrounds []PaintOp        `json:"backgrounds,omitempty"`
	Texts       []TextOp         `json:"texts,omitempty"`
}

// Empty reports whether the diff changes nothing on screen.
func (d RenderDiff) Empty() bool {
	return len(d.Removals) == 0 && len(d.Backgrounds) == 0 && len(d.Texts) == 0
}

// rendered is the last applied visual for one identity.
type rendered struct {
	box      image.Rectangle
	text     string
	pending  bool
	fg, bg   color.RGBA
	fontSize int
}

func renderedOf(b block.TextBlock) rendered {
	return rendered{
		box:      b.Box,
		text:     b.DisplayText(),
		pending:  b.Pending,
		fg:       b.FG,
		bg:       b.BG,
		fontSize: b.FontSize,
	}
}

// State tracks the currently rendered block set. Not safe for concurrent
// use: only the renderer goroutine may touch it (single designated
// execution context; everything else communicates through RenderDiff
// values).
type State struct {
	current map[block.Identity]rendered
}

// NewState creates an empty render state.
func NewState() *State {
	return &State{current: make(map[block.Identity]rendered)}
}

// Apply matches the new block set against what is rendered and returns the
// minimal diff: absent blocks are removed, unchanged blocks (same box, text,
// colors) are left alone, changed or new blocks are redrawn.
func (s *State) Apply(generation uint64, blocks []block.TextBlock) RenderDiff {
	diff := RenderDiff{Generation: generation}
	next := make(map[block.Identity]rendered, len(blocks))

	for _, b := range blocks {
		r := renderedOf(b)
		next[b.ID] = r

		if prev, ok := s.current[b.ID]; ok && prev == r {
			continue
		}
		diff.Backgrounds = append(diff.Backgrounds, PaintOp{
			ID:    b.ID,
			Box:   toRect(b.Box),
			Color: hexColor(b.BG),
		})
		diff.Texts = append(diff.Texts, TextOp{
			ID:         b.ID,
			Box:        toRect(b.Box),
			Text:       r.text,
			SourceText: b.Text,
			Pending:    b.Pending,
			Color:      hexColor(b.FG),
			FontSize:   b.FontSize,
		})
	}

	for id := range s.current {
		if _, ok := next[id]; !ok {
			diff.Removals = append(diff.Removals, id)
		}
	}
	sortIdentities(diff.Removals)

	s.current = next
	return diff
}

// Clear removes everything from the render state, returning the diff that
// wipes the screen.
func (s *State) Clear() RenderDiff {
	diff := RenderDiff{}
	for id := range s.current {
		diff.Removals = append(diff.Removals, id)
	}
	sortIdentities(diff.Removals)
	s.current = make(map[block.Identity]rendered)
	return diff
}

// sortIdentities keeps removal order deterministic; map iteration order
// must not reach the wire.
func sortIdentities(ids []block.Identity) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Size returns the number of blocks currently rendered.
func (s *State) Size() int {
	return len(s.current)
}
