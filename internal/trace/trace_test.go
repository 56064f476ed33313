package trace

import (
	"context"
	"testing"
)

func TestGenerateTraceID(t *testing.T) {
	id := generateTraceID()
	if len(id) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(id))
	}
}

func TestGenerateSpanID(t *testing.T) {
	id := generateSpanID()
	if len(id) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(id))
	}
}

func TestIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateTraceID()
		if seen[id] {
			t.Error("generated duplicate trace ID")
		}
		seen[id] = true
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have new span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}
}

func TestContextPropagation(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)

	extracted, ok := FromContext(ctx)
	if !ok {
		t.Fatal("should extract trace context")
	}
	if extracted.TraceID != tc.TraceID {
		t.Error("extracted trace ID mismatch")
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	if len(tc.TraceID) != 32 {
		t.Error("should create trace ID")
	}

	_, tc2 := EnsureContext(ctx)
	if tc2.TraceID != tc.TraceID {
		t.Error("should return existing trace")
	}
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()
	_, span := StartSpan(ctx, "pipeline_cycle")

	if span.Name != "pipeline_cycle" {
		t.Error("span name mismatch")
	}
	if span.StartTime.IsZero() {
		t.Error("span should have start time")
	}

	span.SetAttr("blocks", 3)
	span.End()

	if span.EndTime.IsZero() {
		t.Error("span should have end time")
	}
	if span.Duration() < 0 {
		t.Error("span duration should not be negative")
	}
	if span.Attrs["blocks"] != 3 {
		t.Error("span attribute mismatch")
	}
}

func TestSpanParentage(t *testing.T) {
	ctx := context.Background()
	ctx, parent := StartSpan(ctx, "cycle")
	_, child := StartSpan(ctx, "extract")

	if child.Ctx.TraceID != parent.Ctx.TraceID {
		t.Error("child span should share trace ID")
	}
	if child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Error("child span should point at parent span")
	}
}

func TestExtractFromJSON(t *testing.T) {
	tc, ok := ExtractFromJSON([]byte(`{"trace_id":"abc123"}`))
	if !ok {
		t.Fatal("should find trace_id")
	}
	if tc.TraceID != "abc123" {
		t.Errorf("trace ID = %q, want abc123", tc.TraceID)
	}

	if _, ok := ExtractFromJSON([]byte(`{}`)); ok {
		t.Error("should not find trace_id in empty message")
	}
}
