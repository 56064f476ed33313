// Package extract is the text-detection boundary. The engine is an opaque
// collaborator returning line-level bounding boxes and strings; an
// unavailable engine means "no detections this cycle", never a crashed
// pipeline.
package extract

import (
	"context"
	"regexp"
	"unicode/utf8"

	"github.com/lenslate/lenslate/internal/block"
	"github.com/lenslate/lenslate/internal/frame"
)

// Engine detects text lines in a frame.
type Engine interface {
	// Detect returns line-level detections with region-relative boxes.
	Detect(ctx context.Context, f frame.Frame) ([]block.RawDetection, error)
	// SetLanguage switches recognition to the given BCP-47 tag. Called
	// when the user changes the source language mid-session.
	SetLanguage(lang string) error
	Close() error
}

// Line filtering: skip fragments not worth translating.
const (
	// MinTextLength is the minimum rune count for a line to survive.
	MinTextLength = 5
	// minBoxSide drops speck detections.
	minBoxSide = 5
)

// junkLine matches lines made only of digits, punctuation and whitespace.
var junkLine = regexp.MustCompile(`^[\d\s.,;:!?\-—–|@#$%^&*()\[\]{}/\\]+$`)

// Filter drops detections that are too short, too small, or contentless.
// Applied by engines after recognition so every implementation behaves the
// same at the boundary.
func Filter(dets []block.RawDetection, minConfidence float64) []block.RawDetection {
	out := dets[:0]
	for _, d := range dets {
		if utf8.RuneCountInString(d.Text) < MinTextLength {
			continue
		}
		if junkLine.MatchString(d.Text) {
			continue
		}
		if d.Box.Dx() < minBoxSide || d.Box.Dy() < minBoxSide {
			continue
		}
		if minConfidence > 0 && d.Confidence > 0 && d.Confidence < minConfidence {
			continue
		}
		out = append(out, d)
	}
	return out
}
