package extract

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/lenslate/lenslate/internal/errors"
	"github.com/lenslate/lenslate/internal/block"
	"github.com/lenslate/lenslate/internal/frame"
)

// tesseractLangs maps BCP-47 primary subtags to Tesseract traineddata
// names for the languages the overlay ships presets for.
var tesseractLangs = map[string]string{
	"en": "eng",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"pt": "por",
	"nl": "nld",
	"ru": "rus",
	"ja": "jpn",
	"ko": "kor",
	"zh": "chi_sim",
}

// Tesseract runs local OCR via gosseract. One client, serialized calls:
// the underlying Tesseract API is not reentrant.
type Tesseract struct {
	mu            sync.Mutex
	client        *gosseract.Client
	lang          string
	minConfidence float64
}

// NewTesseract creates an engine for the given BCP-47 language tag.
// Unknown tags fall back to English.
func NewTesseract(lang string, minConfidence float64) (*Tesseract, error) {
	tess := tessLang(lang)
	client := gosseract.NewClient()
	if err := client.SetLanguage(tess); err != nil {
		client.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeTransientEngine, "tesseract language unavailable")
	}
	return &Tesseract{client: client, lang: tess, minConfidence: minConfidence}, nil
}

// SetLanguage switches the traineddata used for recognition. A tag mapping
// to the already-loaded language is a no-op.
func (t *Tesseract) SetLanguage(lang string) error {
	tess := tessLang(lang)
	t.mu.Lock()
	defer t.mu.Unlock()
	if tess == t.lang {
		return nil
	}
	if err := t.client.SetLanguage(tess); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeTransientEngine, "tesseract language %s unavailable", tess)
	}
	t.lang = tess
	return nil
}

func tessLang(bcp47 string) string {
	primary := strings.ToLower(strings.SplitN(bcp47, "-", 2)[0])
	if l, ok := tesseractLangs[primary]; ok {
		return l
	}
	return "eng"
}

// Detect runs line-level recognition on the frame. The encoded image hands
// Tesseract a zero-origin view, so boxes come back translated into the
// frame's own coordinate space.
func (t *Tesseract) Detect(ctx context.Context, f frame.Frame) ([]block.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Empty() {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Img); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode frame")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransientEngine, "tesseract rejected frame")
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransientEngine, "tesseract recognition failed")
	}

	origin := f.Bounds().Min
	dets := make([]block.RawDetection, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		dets = append(dets, block.RawDetection{
			Text:       text,
			Box:        b.Box.Add(origin),
			Confidence: b.Confidence / 100,
		})
	}
	return Filter(dets, t.minConfidence), nil
}

// Close releases the Tesseract client.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
