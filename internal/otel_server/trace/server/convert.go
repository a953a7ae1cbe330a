package server

import (
	"encoding/hex"
	"time"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	"go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

func getServiceName(resourceSpan *v1.ResourceSpans) string {
	var serviceName string
	if resourceSpan.Resource == nil {
		return serviceName
	}
	for _, attr := range resourceSpan.Resource.Attributes {
		if attr.Key == "service.name" {
			serviceName = attr.Value.GetStringValue()
		}
	}
	return serviceName
}

func getTypedSpans(resourceSpan *v1.ResourceSpans, serviceName string) []model.Span {
	var typedSpans []model.Span
	for _, scopeSpan := range resourceSpan.ScopeSpans {
		for _, span := range scopeSpan.Spans {
			typedSpans = append(typedSpans, getTypedSpan(span, serviceName))
		}
	}
	return typedSpans
}

func getTypedSpan(span *v1.Span, serviceName string) model.Span {
	return model.Span{
		TraceID:      hex.EncodeToString(span.TraceId),
		SpanID:       hex.EncodeToString(span.SpanId),
		ParentSpanID: hex.EncodeToString(span.ParentSpanId),
		ServiceName:  serviceName,
		Name:         span.Name,
		Kind:         getKind(span),
		StartTime:    time.Unix(0, int64(span.StartTimeUnixNano)),
		EndTime:      time.Unix(0, int64(span.EndTimeUnixNano)),
		Attributes:   getAttributes(span.Attributes),
		Events:       getEvents(span),
		Links:        getLinks(span),
		Status:       getStatus(span),
	}
}

func getEvents(span *v1.Span) []model.SpanEvent {
	events := make([]model.SpanEvent, len(span.Events))
	for i, event := range span.Events {
		events[i] = model.SpanEvent{
			Name:                   event.Name,
			Attributes:             getAttributes(event.Attributes),
			Timestamp:              time.Unix(0, int64(event.TimeUnixNano)),
			DroppedAttributesCount: int(event.DroppedAttributesCount),
		}
	}
	return events
}

func getLinks(span *v1.Span) []model.SpanLink {
	if len(span.Links) == 0 {
		return nil
	}
	links := make([]model.SpanLink, len(span.Links))
	for i, link := range span.Links {
		links[i] = model.SpanLink{
			TraceID: hex.EncodeToString(link.TraceId),
			SpanID:  hex.EncodeToString(link.SpanId),
		}
	}
	return links
}

func getAttributes(keyValues []*commonpb.KeyValue) map[string]model.Value {
	attributes := make(map[string]model.Value)
	for _, attribute := range keyValues {
		attributes[attribute.Key] = getValue(attribute.Value)
	}
	return attributes
}

func getValue(value *commonpb.AnyValue) model.Value {
	switch typed := value.GetValue().(type) {
	case *commonpb.AnyValue_IntValue:
		return model.IntValue(typed.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return model.FloatValue(typed.DoubleValue)
	case *commonpb.AnyValue_BoolValue:
		return model.BoolValue(typed.BoolValue)
	default:
		return model.StringValue(value.GetStringValue())
	}
}

func getKind(span *v1.Span) model.SpanKind {
	switch span.Kind {
	case v1.Span_SPAN_KIND_SERVER:
		return model.SpanKindServer
	case v1.Span_SPAN_KIND_CLIENT:
		return model.SpanKindClient
	case v1.Span_SPAN_KIND_PRODUCER:
		return model.SpanKindProducer
	case v1.Span_SPAN_KIND_CONSUMER:
		return model.SpanKindConsumer
	default:
		return model.SpanKindInternal
	}
}

func getStatus(span *v1.Span) model.Status {
	if span.Status == nil {
		return model.Status{Code: model.StatusUnset}
	}
	switch span.Status.Code {
	case v1.Status_STATUS_CODE_OK:
		return model.Status{Code: model.StatusOk, Message: span.Status.Message}
	case v1.Status_STATUS_CODE_ERROR:
		return model.Status{Code: model.StatusError, Message: span.Status.Message}
	default:
		return model.Status{Code: model.StatusUnset, Message: span.Status.Message}
	}
}
