package agent

import (
	"errors"
	"testing"
)

func TestTracerRecordsSpans(t *testing.T) {
	tr := NewTracer()
	end := tr.StartSpan("sess-1", "llm.call")
	end(nil)

	end2 := tr.StartSpan("sess-1", "tool:linter_tool")
	end2(errors.New("boom"))

	spans := tr.Spans("sess-1")
	if len(spans) != 2 {
		t.Fatalf("want 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "llm.call" || spans[0].Err != "" {
		t.Errorf("unexpected first span: %+v", spans[0])
	}
	if spans[1].Name != "tool:linter_tool" || spans[1].Err != "boom" {
		t.Errorf("unexpected second span: %+v", spans[1])
	}
}

func TestNilTracerIsNoop(t *testing.T) {
	var tr *Tracer
	end := tr.StartSpan("sess-1", "llm.call")
	end(nil) // must not panic
	if got := tr.Spans("sess-1"); got != nil {
		t.Errorf("want nil spans from nil tracer, got %v", got)
	}
}

func TestTracerRingBound(t *testing.T) {
	tr := NewTracer()
	for i := 0; i < maxSpansPerSession+10; i++ {
		tr.StartSpan("sess-1", "llm.call")(nil)
	}
	if got := len(tr.Spans("sess-1")); got != maxSpansPerSession {
		t.Errorf("want ring bounded at %d, got %d", maxSpansPerSession, got)
	}
}
