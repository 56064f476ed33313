package merge

import (
	"image"
	"testing"

	"github.com/lenslate/lenslate/internal/block"
)

func textBlock(text string, x, y, w, h int) block.TextBlock {
	return block.TextBlock{Text: text, Box: image.Rect(x, y, x+w, y+h)}
}

func TestMatcherMintsNewIdentities(t *testing.T) {
	m := NewMatcher(0)
	blocks := []block.TextBlock{
		textBlock("hello", 10, 10, 200, 20),
		textBlock("world", 10, 100, 200, 20),
	}
	m.Assign(blocks)

	if blocks[0].ID == "" || blocks[1].ID == "" {
		t.Fatal("all blocks should receive identities")
	}
	if blocks[0].ID == blocks[1].ID {
		t.Error("distinct blocks should receive distinct identities")
	}
}

func TestMatcherPersistsIdentityAcrossFrames(t *testing.T) {
	m := NewMatcher(0)

	first := []block.TextBlock{textBlock("hello world", 10, 10, 200, 20)}
	m.Assign(first)

	// Same text, box shifted two pixels.
	second := []block.TextBlock{textBlock("hello world", 12, 11, 200, 20)}
	m.Assign(second)

	if second[0].ID != first[0].ID {
		t.Errorf("identity changed across frames: %s vs %s", second[0].ID, first[0].ID)
	}
}

func TestMatcherNewIdentityOnTextChange(t *testing.T) {
	m := NewMatcher(0)

	first := []block.TextBlock{textBlock("loading...", 10, 10, 200, 20)}
	m.Assign(first)

	second := []block.TextBlock{textBlock("done", 10, 10, 200, 20)}
	m.Assign(second)

	if second[0].ID == first[0].ID {
		t.Error("changed text in the same box should mint a new identity")
	}
}

func TestMatcherNewIdentityOnMove(t *testing.T) {
	m := NewMatcher(0)

	first := []block.TextBlock{textBlock("hello", 10, 10, 200, 20)}
	m.Assign(first)

	// Same text far away: no box overlap, so a different block.
	second := []block.TextBlock{textBlock("hello", 400, 300, 200, 20)}
	m.Assign(second)

	if second[0].ID == first[0].ID {
		t.Error("disjoint boxes should not share an identity")
	}
}

func TestMatcherIgnoresWhitespaceDifferences(t *testing.T) {
	m := NewMatcher(0)

	first := []block.TextBlock{textBlock("hello  world", 10, 10, 200, 20)}
	m.Assign(first)

	second := []block.TextBlock{textBlock("hello world", 10, 10, 200, 20)}
	m.Assign(second)

	if second[0].ID != first[0].ID {
		t.Error("whitespace-only text differences should preserve identity")
	}
}

func TestMatcherClaimsIdentityOnce(t *testing.T) {
	m := NewMatcher(0)

	first := []block.TextBlock{textBlock("dup", 10, 10, 200, 20)}
	m.Assign(first)

	// Two candidates overlap the prior block with identical text; only one
	// may inherit its identity.
	second := []block.TextBlock{
		textBlock("dup", 10, 10, 200, 20),
		textBlock("dup", 15, 12, 200, 20),
	}
	m.Assign(second)

	if second[0].ID == second[1].ID {
		t.Error("one prior identity claimed by two blocks")
	}
	if second[0].ID != first[0].ID && second[1].ID != first[0].ID {
		t.Error("the prior identity should survive in one of the blocks")
	}
}

func TestMatcherBestOverlapWins(t *testing.T) {
	m := NewMatcher(0)

	first := []block.TextBlock{
		textBlock("same", 0, 0, 100, 20),
		textBlock("same", 200, 0, 100, 20),
	}
	m.Assign(first)

	// One new block sits exactly on the second prior block.
	second := []block.TextBlock{textBlock("same", 200, 0, 100, 20)}
	m.Assign(second)

	if second[0].ID != first[1].ID {
		t.Errorf("ID = %s, want the exactly-overlapping prior identity %s", second[0].ID, first[1].ID)
	}
}

func TestMatcherReset(t *testing.T) {
	m := NewMatcher(0)

	first := []block.TextBlock{textBlock("hello", 10, 10, 200, 20)}
	m.Assign(first)
	m.Reset()

	second := []block.TextBlock{textBlock("hello", 10, 10, 200, 20)}
	m.Assign(second)

	if second[0].ID == first[0].ID {
		t.Error("Reset should drop tracked identities")
	}
}

func TestBoxOverlap(t *testing.T) {
	a := image.Rect(0, 0, 100, 100)

	if got := boxOverlap(a, a); got != 1 {
		t.Errorf("boxOverlap(self) = %f, want 1", got)
	}
	if got := boxOverlap(a, image.Rect(50, 0, 150, 100)); got != 0.5 {
		t.Errorf("boxOverlap(half) = %f, want 0.5", got)
	}
	if got := boxOverlap(a, image.Rect(200, 200, 300, 300)); got != 0 {
		t.Errorf("boxOverlap(disjoint) = %f, want 0", got)
	}
}
