package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/lenslate/lenslate/internal/errors"
)

// DefaultRequestTimeout bounds a single sidecar round trip. Generous: model
// inference on CPU takes seconds for long paragraphs.
const DefaultRequestTimeout = 30 * time.Second

// Client talks to a local translation sidecar speaking the LibreTranslate
// REST protocol (POST /translate, GET /languages).
type Client struct {
	baseURL string
	http    *http.Client
	apiKey  string
}

// NewClient creates a sidecar client. addr is the base URL, e.g.
// "http://localhost:5000".
func NewClient(addr, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{Timeout: DefaultRequestTimeout},
		apiKey:  apiKey,
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

// Translate sends one text to the sidecar.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	body, err := json.Marshal(translateRequest{
		Q:      text,
		Source: sourceLang,
		Target: targetLang,
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", apperrors.Wrapf(err, apperrors.CodeModelUnavailable, "translation sidecar unreachable at %s", c.baseURL)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTransientEngine, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, data)
	}

	var out translateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTransientEngine, "malformed sidecar response")
	}
	if out.Error != "" {
		return "", apperrors.New(apperrors.CodeModelUnavailable, out.Error)
	}
	return out.TranslatedText, nil
}

// Health checks the sidecar's language listing endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/languages", nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeModelUnavailable, "translation sidecar unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperrors.Newf(apperrors.CodeModelUnavailable, "sidecar health status %d", resp.StatusCode)
	}
	return nil
}

// statusError maps sidecar HTTP statuses onto the boundary's failure modes.
func statusError(status int, body []byte) error {
	var out translateResponse
	msg := http.StatusText(status)
	if json.Unmarshal(body, &out) == nil && out.Error != "" {
		msg = out.Error
	}

	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.New(apperrors.CodeRateLimited, msg)
	case status == http.StatusBadRequest:
		return apperrors.New(apperrors.CodeInvalidArgument, msg)
	case status == http.StatusInsufficientStorage,
		strings.Contains(strings.ToLower(msg), "memory"):
		return apperrors.New(apperrors.CodeOutOfMemory, msg)
	case status >= 500:
		return apperrors.New(apperrors.CodeModelUnavailable, msg)
	default:
		return apperrors.Newf(apperrors.CodeTransientEngine, "unexpected status %d: %s", status, msg)
	}
}
