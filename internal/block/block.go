// Package block defines the text units flowing through the pipeline.
package block

import (
	"image"
	"image/color"
	"strings"

	"github.com/google/uuid"
)

// Identity is a stable handle for a paragraph that persists across frames.
type Identity string

// NewIdentity mints a fresh block identity.
func NewIdentity() Identity {
	return Identity(uuid.NewString())
}

// RawDetection is one OCR line result, region-relative.
type RawDetection struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// TextBlock is a paragraph-level unit. The merger sets Box/Lines/Text, the
// style extractor sets FG/BG, the orchestrator attaches the translation and
// final generation.
type TextBlock struct {
	ID         Identity
	Box        image.Rectangle
	Lines      []image.Rectangle // constituent line boxes, top to bottom
	Text       string
	SourceLang string
	TargetLang string

	// Translation is empty while Pending; a failed request leaves it empty
	// and clears Pending so the source text stays displayed.
	Translation string
	Pending     bool

	FG       color.RGBA
	BG       color.RGBA
	FontSize int

	Generation uint64
}

// DisplayText returns what the overlay should show for this block.
func (b *TextBlock) DisplayText() string {
	if b.Translation != "" {
		return b.Translation
	}
	return b.Text
}

// Normalize folds whitespace for cache keys and identity matching: leading
// and trailing whitespace is trimmed and internal runs collapse to a single
// space. Case is preserved; it can carry meaning in addressed text.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
