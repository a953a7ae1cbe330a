package handler

import (
	"time"

	"github.com/opentrail/opentrail/pkg/assembler"
	"github.com/opentrail/opentrail/pkg/tracer/model"
)

// TraceNodeDTO is one node of the assembled trace tree.
type TraceNodeDTO struct {
	Span     SpanDTO        `json:"span"`
	Children []TraceNodeDTO `json:"children"`
}

type SpanDTO struct {
	TraceID      string              `json:"trace_id"`
	SpanID       string              `json:"span_id"`
	ParentSpanID string              `json:"parent_span_id,omitempty"`
	ServiceName  string              `json:"service_name"`
	Name         string              `json:"name"`
	Kind         string              `json:"kind"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	DurationUs   float64             `json:"duration_us"`
	Attributes   map[string]any      `json:"attributes"`
	Events       []SpanEventDTO      `json:"events"`
	Status       SpanStatusDTO       `json:"status"`
	Links        []map[string]string `json:"links"`
}

type SpanEventDTO struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes"`
}

type SpanStatusDTO struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

func mapTraceNodeToDTO(node *assembler.TraceNode) TraceNodeDTO {
	children := make([]TraceNodeDTO, len(node.Children))
	for i, child := range node.Children {
		children[i] = mapTraceNodeToDTO(child)
	}
	return TraceNodeDTO{
		Span:     mapSpanToDTO(node.Span),
		Children: children,
	}
}

func mapSpanToDTO(span model.Span) SpanDTO {
	events := make([]SpanEventDTO, len(span.Events))
	for i, event := range span.Events {
		events[i] = SpanEventDTO{
			Name:       event.Name,
			Timestamp:  event.Timestamp,
			Attributes: mapAttributes(event.Attributes),
		}
	}

	links := make([]map[string]string, len(span.Links))
	for i, link := range span.Links {
		links[i] = map[string]string{"trace_id": link.TraceID, "span_id": link.SpanID}
	}

	return SpanDTO{
		TraceID:      span.TraceID,
		SpanID:       span.SpanID,
		ParentSpanID: span.ParentSpanID,
		ServiceName:  span.ServiceName,
		Name:         span.Name,
		Kind:         string(span.Kind),
		StartTime:    span.StartTime,
		EndTime:      span.EndTime,
		DurationUs:   float64(span.Duration().Nanoseconds()) / 1000.0,
		Attributes:   mapAttributes(span.Attributes),
		Events:       events,
		Status: SpanStatusDTO{
			Code:    int(span.Status.Code),
			Message: span.Status.Message,
		},
		Links: links,
	}
}

func mapAttributes(attributes map[string]model.Value) map[string]any {
	mapped := make(map[string]any, len(attributes))
	for key, value := range attributes {
		mapped[key] = value.Emit()
	}
	return mapped
}
