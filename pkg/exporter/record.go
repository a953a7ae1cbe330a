package exporter

import (
	"time"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

// SpanRecord is the wire shape written by console-style sinks. Timestamps and
// durations are floating-point microseconds since epoch.
type SpanRecord struct {
	TraceID    string                 `json:"traceId"`
	ParentID   string                 `json:"parentId,omitempty"`
	Name       string                 `json:"name"`
	ID         string                 `json:"id"`
	Kind       string                 `json:"kind"`
	Timestamp  float64                `json:"timestamp"`
	Duration   float64                `json:"duration"`
	Attributes map[string]model.Value `json:"attributes"`
	Status     StatusRecord           `json:"status"`
	Events     []EventRecord          `json:"events"`
	Links      []LinkRecord           `json:"links"`
}

type StatusRecord struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type EventRecord struct {
	Name                   string                 `json:"name"`
	Attributes             map[string]model.Value `json:"attributes"`
	Time                   float64                `json:"time"`
	DroppedAttributesCount int                    `json:"droppedAttributesCount"`
}

type LinkRecord struct {
	TraceID string `json:"traceId"`
	SpanID  string `json:"spanId"`
}

func toMicros(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Microsecond)
}

func durationMicros(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / float64(time.Microsecond)
}

// ToSpanRecord maps a completed span onto the exported record shape. Events
// and links are always present in the output, as possibly empty arrays.
func ToSpanRecord(span model.Span) SpanRecord {
	events := make([]EventRecord, len(span.Events))
	for i, event := range span.Events {
		attributes := event.Attributes
		if attributes == nil {
			attributes = map[string]model.Value{}
		}
		events[i] = EventRecord{
			Name:                   event.Name,
			Attributes:             attributes,
			Time:                   toMicros(event.Timestamp),
			DroppedAttributesCount: event.DroppedAttributesCount,
		}
	}

	links := make([]LinkRecord, len(span.Links))
	for i, link := range span.Links {
		links[i] = LinkRecord{TraceID: link.TraceID, SpanID: link.SpanID}
	}

	attributes := span.Attributes
	if attributes == nil {
		attributes = map[string]model.Value{}
	}

	return SpanRecord{
		TraceID:    span.TraceID,
		ParentID:   span.ParentSpanID,
		Name:       span.Name,
		ID:         span.SpanID,
		Kind:       string(span.Kind),
		Timestamp:  toMicros(span.StartTime),
		Duration:   durationMicros(span.Duration()),
		Attributes: attributes,
		Status: StatusRecord{
			Code:    int(span.Status.Code),
			Message: span.Status.Message,
		},
		Events: events,
		Links:  links,
	}
}
