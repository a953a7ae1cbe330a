package model

import "time"

type StatusCode int

const (
	StatusUnset StatusCode = 0
	StatusOk    StatusCode = 1
	StatusError StatusCode = 2
)

type Status struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"message,omitempty"`
}

type SpanKind string

const (
	SpanKindInternal SpanKind = "INTERNAL"
	SpanKindServer   SpanKind = "SERVER"
	SpanKindClient   SpanKind = "CLIENT"
	SpanKindProducer SpanKind = "PRODUCER"
	SpanKindConsumer SpanKind = "CONSUMER"
)

// Span is the completed record of one unit of work. TraceID is 16 bytes and
// SpanID 8 bytes, both hex encoded. An empty ParentSpanID marks a root span.
type Span struct {
	TraceID      string           `json:"trace_id"`
	SpanID       string           `json:"span_id"`
	ParentSpanID string           `json:"parent_span_id,omitempty"`
	ServiceName  string           `json:"service_name"`
	Name         string           `json:"name"`
	Kind         SpanKind         `json:"kind"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      time.Time        `json:"end_time"`
	Attributes   map[string]Value `json:"attributes"`
	Events       []SpanEvent      `json:"events"`
	Links        []SpanLink       `json:"links"`
	Status       Status           `json:"status"`
}

type SpanEvent struct {
	Name                   string           `json:"name"`
	Timestamp              time.Time        `json:"timestamp"`
	Attributes             map[string]Value `json:"attributes"`
	DroppedAttributesCount int              `json:"dropped_attributes_count"`
}

// SpanLink references a span in another trace.
type SpanLink struct {
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
}

func (s *Span) IsRoot() bool {
	return s.ParentSpanID == ""
}

func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Clone returns a deep copy so a handed-off span can never be mutated through
// the original's maps and slices.
func (s *Span) Clone() Span {
	out := *s
	if s.Attributes != nil {
		out.Attributes = make(map[string]Value, len(s.Attributes))
		for k, v := range s.Attributes {
			out.Attributes[k] = v
		}
	}
	if s.Events != nil {
		out.Events = make([]SpanEvent, len(s.Events))
		copy(out.Events, s.Events)
		for i, ev := range s.Events {
			if ev.Attributes != nil {
				attrs := make(map[string]Value, len(ev.Attributes))
				for k, v := range ev.Attributes {
					attrs[k] = v
				}
				out.Events[i].Attributes = attrs
			}
		}
	}
	if s.Links != nil {
		out.Links = make([]SpanLink, len(s.Links))
		copy(out.Links, s.Links)
	}
	return out
}
