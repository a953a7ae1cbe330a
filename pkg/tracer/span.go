package tracer

import (
	"sync"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

// ActiveSpan is the mutable handle for an open span. All mutators are
// serialized by an internal mutex, so concurrent paths sharing the same span
// append events atomically. Once End has been called every mutator is a no-op
// that reports ErrSpanCompleted through the tracer's operational logger; the
// exported record is never touched again.
type ActiveSpan struct {
	span   model.Span
	tracer *Tracer
	ended  bool
	mu     sync.Mutex
}

// SetAttribute upserts an attribute with last-write-wins semantics per key.
func (a *ActiveSpan) SetAttribute(key string, value model.Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		a.tracer.reportCompletedSpanUse("SetAttribute", &a.span)
		return
	}
	if a.span.Attributes == nil {
		a.span.Attributes = make(map[string]model.Value)
	}
	a.span.Attributes[key] = value
}

// AddEvent appends a named event stamped with the tracer clock's current time.
// Events are append-only and never reordered.
func (a *ActiveSpan) AddEvent(name string, attributes map[string]model.Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		a.tracer.reportCompletedSpanUse("AddEvent", &a.span)
		return
	}
	a.span.Events = append(a.span.Events, model.SpanEvent{
		Name:       name,
		Timestamp:  a.tracer.clock.Now(),
		Attributes: attributes,
	})
}

// AddLink appends a reference to a span in another trace.
func (a *ActiveSpan) AddLink(link model.SpanLink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		a.tracer.reportCompletedSpanUse("AddLink", &a.span)
		return
	}
	a.span.Links = append(a.span.Links, link)
}

// SetStatus marks the span outcome. Last write wins.
func (a *ActiveSpan) SetStatus(code model.StatusCode, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		a.tracer.reportCompletedSpanUse("SetStatus", &a.span)
		return
	}
	a.span.Status = model.Status{Code: code, Message: message}
}

// RecordError sets an Error status from err and appends an exception event.
func (a *ActiveSpan) RecordError(err error) {
	if err == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		a.tracer.reportCompletedSpanUse("RecordError", &a.span)
		return
	}
	a.span.Status = model.Status{Code: model.StatusError, Message: err.Error()}
	a.span.Events = append(a.span.Events, model.SpanEvent{
		Name:      "exception",
		Timestamp: a.tracer.clock.Now(),
		Attributes: map[string]model.Value{
			"exception.message": model.StringValue(err.Error()),
		},
	})
}

// End completes the span: stamps EndTime, freezes the record and hands a copy
// to the span processor. Safe to call multiple times; only the first call has
// an effect. End never blocks on the exporter.
func (a *ActiveSpan) End() {
	a.mu.Lock()
	if a.ended {
		a.mu.Unlock()
		return
	}
	a.ended = true
	a.span.EndTime = a.tracer.clock.Now()
	completed := a.span.Clone()
	a.mu.Unlock()

	a.tracer.finishSpan(completed)
}

func (a *ActiveSpan) TraceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.TraceID
}

func (a *ActiveSpan) SpanID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.SpanID
}

func (a *ActiveSpan) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.Name
}

// Snapshot returns a copy of the span's current state.
func (a *ActiveSpan) Snapshot() model.Span {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.Clone()
}
