package agent

import (
	"crypto/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Span is one recorded unit of work within a turn: an LLM call or a tool
// invocation.
type Span struct {
	TraceID string
	SpanID  string
	Name    string // "llm.call" or "tool:<name>"
	Start   time.Time
	End     time.Time
	Err     string
}

// Duration reports the span's wall-clock length.
func (s Span) Duration() time.Duration { return s.End.Sub(s.Start) }

const maxSpansPerSession = 200

// Tracer collects in-process spans for one turn's model and tool calls: a
// per-process, per-session ring of recently completed spans. No OTLP
// collector endpoint is configured anywhere, so otel/trace is used purely
// for its TraceID/SpanID value types, not for export. A nil *Tracer is a
// valid no-op: every method tolerates it so callers (and existing tests)
// don't need to construct one.
type Tracer struct {
	mu    sync.Mutex
	spans map[string][]Span
}

// NewTracer constructs an empty Tracer.
func NewTracer() *Tracer {
	return &Tracer{spans: make(map[string][]Span)}
}

// StartSpan begins tracking a span named name for sessionID, returning a
// finish function that records the span's end time and any error.
func (t *Tracer) StartSpan(sessionID, name string) func(err error) {
	if t == nil {
		return func(error) {}
	}
	traceID, spanID := newSpanIDs()
	start := time.Now()
	return func(err error) {
		s := Span{TraceID: traceID, SpanID: spanID, Name: name, Start: start, End: time.Now()}
		if err != nil {
			s.Err = err.Error()
		}
		t.record(sessionID, s)
	}
}

func (t *Tracer) record(sessionID string, s Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	spans := append(t.spans[sessionID], s)
	if len(spans) > maxSpansPerSession {
		spans = spans[len(spans)-maxSpansPerSession:]
	}
	t.spans[sessionID] = spans
}

// Spans returns a copy of sessionID's recorded spans, oldest first.
func (t *Tracer) Spans(sessionID string) []Span {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Span, len(t.spans[sessionID]))
	copy(out, t.spans[sessionID])
	return out
}

// newSpanIDs mints a fresh trace/span id pair using otel/trace's TraceID/
// SpanID value types for identifier shape and string rendering, without any
// SDK tracer provider or exporter behind them.
func newSpanIDs() (traceID, spanID string) {
	var tid trace.TraceID
	var sid trace.SpanID
	_, _ = rand.Read(tid[:])
	_, _ = rand.Read(sid[:])
	return tid.String(), sid.String()
}
