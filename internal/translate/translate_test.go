package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	apperrors "github.com/lenslate/lenslate/internal/errors"
)

func sidecar(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "")
}

func TestClientTranslate(t *testing.T) {
	c := sidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Q != "hello" || req.Source != "en" || req.Target != "es" {
			t.Errorf("request = %+v", req)
		}
		if req.Format != "text" {
			t.Errorf("format = %q, want text", req.Format)
		}
		_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: "hola"})
	})

	got, err := c.Translate(context.Background(), "hello", "en", "es")
	if err != nil {
		t.Fatalf("Translate() = %v", err)
	}
	if got != "hola" {
		t.Errorf("Translate() = %q, want %q", got, "hola")
	}
}

func TestClientTranslateErrorBody(t *testing.T) {
	c := sidecar(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(translateResponse{Error: "unsupported language pair"})
	})

	_, err := c.Translate(context.Background(), "hello", "en", "xx")
	if apperrors.CodeOf(err) != apperrors.CodeModelUnavailable {
		t.Errorf("CodeOf = %v, want CodeModelUnavailable", apperrors.CodeOf(err))
	}
}

func TestClientTranslateUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")

	_, err := c.Translate(context.Background(), "hello", "en", "es")
	if apperrors.CodeOf(err) != apperrors.CodeModelUnavailable {
		t.Errorf("CodeOf = %v, want CodeModelUnavailable", apperrors.CodeOf(err))
	}
}

func TestClientHealth(t *testing.T) {
	c := sidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/languages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[{"code":"en"},{"code":"es"}]`))
	})

	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health() = %v", err)
	}
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   apperrors.Code
	}{
		{http.StatusTooManyRequests, "", apperrors.CodeRateLimited},
		{http.StatusBadRequest, "", apperrors.CodeInvalidArgument},
		{http.StatusInsufficientStorage, "", apperrors.CodeOutOfMemory},
		{http.StatusInternalServerError, `{"error":"cannot allocate memory"}`, apperrors.CodeOutOfMemory},
		{http.StatusInternalServerError, "", apperrors.CodeModelUnavailable},
		{http.StatusBadGateway, "", apperrors.CodeModelUnavailable},
		{http.StatusTeapot, "", apperrors.CodeTransientEngine},
	}

	for _, tt := range tests {
		err := statusError(tt.status, []byte(tt.body))
		if got := apperrors.CodeOf(err); got != tt.want {
			t.Errorf("statusError(%d, %q) code = %v, want %v", tt.status, tt.body, got, tt.want)
		}
	}
}

func TestResilientRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	c := sidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: "hola"})
	})

	res := NewResilient(c)
	got, err := res.Translate(context.Background(), "hello", "en", "es")
	if err != nil {
		t.Fatalf("Translate() = %v", err)
	}
	if got != "hola" {
		t.Errorf("Translate() = %q, want %q", got, "hola")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestResilientDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	c := sidecar(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	res := NewResilient(c)
	_, err := res.Translate(context.Background(), "hello", "en", "es")
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Errorf("CodeOf = %v, want CodeInvalidArgument", apperrors.CodeOf(err))
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", calls.Load())
	}
}
