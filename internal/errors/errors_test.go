package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewCarriesCode(t *testing.T) {
	err := New(CodeTimeout, "deadline hit")
	if CodeOf(err) != CodeTimeout {
		t.Errorf("CodeOf = %v, want %v", CodeOf(err), CodeTimeout)
	}
	if err.Error() == "" {
		t.Error("Error() should not be empty")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeModelUnavailable, "sidecar down")

	if !errors.Is(err, cause) {
		t.Error("wrapped error should match cause with errors.Is")
	}
	if CodeOf(err) != CodeModelUnavailable {
		t.Errorf("CodeOf = %v, want %v", CodeOf(err), CodeModelUnavailable)
	}
}

func TestWrapfFormatsAndPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrapf(cause, CodeModelUnavailable, "sidecar unreachable at %s", "http://127.0.0.1:5000")

	if !errors.Is(err, cause) {
		t.Error("wrapped error should match cause with errors.Is")
	}
	if CodeOf(err) != CodeModelUnavailable {
		t.Errorf("CodeOf = %v, want %v", CodeOf(err), CodeModelUnavailable)
	}
	if err.Message != "sidecar unreachable at http://127.0.0.1:5000" {
		t.Errorf("Message = %q, want the formatted address", err.Message)
	}
}

func TestCodeOfWalksChain(t *testing.T) {
	inner := New(CodeRateLimited, "too many requests")
	outer := fmt.Errorf("translate: %w", inner)

	if CodeOf(outer) != CodeRateLimited {
		t.Errorf("CodeOf = %v, want %v", CodeOf(outer), CodeRateLimited)
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if CodeOf(errors.New("plain")) != CodeUnknown {
		t.Error("plain error should map to CodeUnknown")
	}
	if CodeOf(nil) != CodeUnknown {
		t.Error("nil should map to CodeUnknown")
	}
}

func TestIsCode(t *testing.T) {
	err := New(CodeStaleResult, "generation superseded")
	if !IsCode(err, CodeStaleResult) {
		t.Error("IsCode should match the error's code")
	}
	if IsCode(err, CodeTimeout) {
		t.Error("IsCode should not match a different code")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{CodeTransientEngine, true},
		{CodeTimeout, true},
		{CodeRateLimited, true},
		{CodeStaleResult, false},
		{CodeGeometryMismatch, false},
		{CodeCacheCorruption, false},
		{CodeInvalidArgument, false},
		{CodeInternal, false},
	}

	for _, tt := range tests {
		err := New(tt.code, "x")
		if got := IsRetryable(err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestWithMetadata(t *testing.T) {
	err := New(CodeGeometryMismatch, "box outside frame").
		WithMetadata("generation", "7")

	if err.Metadata["generation"] != "7" {
		t.Errorf("Metadata[generation] = %v, want 7", err.Metadata["generation"])
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeInternal, "cycle %d failed", 3)
	if err.Message != "cycle 3 failed" {
		t.Errorf("Message = %q, want formatted message", err.Message)
	}
}
