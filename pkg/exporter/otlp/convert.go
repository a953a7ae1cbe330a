package otlp

import (
	"encoding/hex"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

func toProtoSpans(spans []model.Span) []*tracepb.Span {
	protoSpans := make([]*tracepb.Span, len(spans))
	for i, span := range spans {
		protoSpans[i] = toProtoSpan(span)
	}
	return protoSpans
}

func toProtoSpan(span model.Span) *tracepb.Span {
	return &tracepb.Span{
		TraceId:           decodeID(span.TraceID),
		SpanId:            decodeID(span.SpanID),
		ParentSpanId:      decodeID(span.ParentSpanID),
		Name:              span.Name,
		Kind:              toProtoKind(span.Kind),
		StartTimeUnixNano: uint64(span.StartTime.UnixNano()),
		EndTimeUnixNano:   uint64(span.EndTime.UnixNano()),
		Attributes:        toProtoAttributes(span.Attributes),
		Events:            toProtoEvents(span.Events),
		Links:             toProtoLinks(span.Links),
		Status:            toProtoStatus(span.Status),
	}
}

func decodeID(id string) []byte {
	if id == "" {
		return nil
	}
	decoded, err := hex.DecodeString(id)
	if err != nil {
		return nil
	}
	return decoded
}

func toProtoKind(kind model.SpanKind) tracepb.Span_SpanKind {
	switch kind {
	case model.SpanKindServer:
		return tracepb.Span_SPAN_KIND_SERVER
	case model.SpanKindClient:
		return tracepb.Span_SPAN_KIND_CLIENT
	case model.SpanKindProducer:
		return tracepb.Span_SPAN_KIND_PRODUCER
	case model.SpanKindConsumer:
		return tracepb.Span_SPAN_KIND_CONSUMER
	case model.SpanKindInternal:
		return tracepb.Span_SPAN_KIND_INTERNAL
	default:
		return tracepb.Span_SPAN_KIND_UNSPECIFIED
	}
}

func toProtoAttributes(attributes map[string]model.Value) []*commonpb.KeyValue {
	if len(attributes) == 0 {
		return nil
	}
	keyValues := make([]*commonpb.KeyValue, 0, len(attributes))
	for key, value := range attributes {
		keyValues = append(keyValues, &commonpb.KeyValue{
			Key:   key,
			Value: toProtoValue(value),
		})
	}
	return keyValues
}

func toProtoValue(value model.Value) *commonpb.AnyValue {
	switch value.Kind() {
	case model.KindInt:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: value.AsInt()}}
	case model.KindFloat:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: value.AsFloat()}}
	case model.KindBool:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: value.AsBool()}}
	default:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value.AsString()}}
	}
}

func toProtoEvents(events []model.SpanEvent) []*tracepb.Span_Event {
	if len(events) == 0 {
		return nil
	}
	protoEvents := make([]*tracepb.Span_Event, len(events))
	for i, event := range events {
		protoEvents[i] = &tracepb.Span_Event{
			TimeUnixNano:           uint64(event.Timestamp.UnixNano()),
			Name:                   event.Name,
			Attributes:             toProtoAttributes(event.Attributes),
			DroppedAttributesCount: uint32(event.DroppedAttributesCount),
		}
	}
	return protoEvents
}

func toProtoLinks(links []model.SpanLink) []*tracepb.Span_Link {
	if len(links) == 0 {
		return nil
	}
	protoLinks := make([]*tracepb.Span_Link, len(links))
	for i, link := range links {
		protoLinks[i] = &tracepb.Span_Link{
			TraceId: decodeID(link.TraceID),
			SpanId:  decodeID(link.SpanID),
		}
	}
	return protoLinks
}

func toProtoStatus(status model.Status) *tracepb.Status {
	code := tracepb.Status_STATUS_CODE_UNSET
	switch status.Code {
	case model.StatusOk:
		code = tracepb.Status_STATUS_CODE_OK
	case model.StatusError:
		code = tracepb.Status_STATUS_CODE_ERROR
	}
	return &tracepb.Status{Code: code, Message: status.Message}
}
