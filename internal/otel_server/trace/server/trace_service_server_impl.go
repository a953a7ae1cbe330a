package server

import (
	"context"

	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

// SpanConsumer receives spans converted from an OTLP export request.
type SpanConsumer interface {
	Consume(spans []model.Span)
}

type TraceServiceServerImpl struct {
	protoTrace.UnimplementedTraceServiceServer
	consumers []SpanConsumer
	logger    *zap.Logger
}

func NewTraceServiceServerImpl(
	logger *zap.Logger,
	consumers ...SpanConsumer,
) TraceServiceServerImpl {
	logger.Info("Creating new TraceServiceServerImpl")
	return TraceServiceServerImpl{
		logger:    logger,
		consumers: consumers,
	}
}

func (tss TraceServiceServerImpl) Export(
	_ context.Context,
	req *protoTrace.ExportTraceServiceRequest,
) (*protoTrace.ExportTraceServiceResponse, error) {
	for _, resourceSpan := range req.ResourceSpans {
		serviceName := getServiceName(resourceSpan)
		if serviceName == "" {
			tss.logger.Warn("Service name not found in resource span")
		}

		typedSpans := getTypedSpans(resourceSpan, serviceName)
		for _, consumer := range tss.consumers {
			consumer.Consume(typedSpans)
		}
	}

	return &protoTrace.ExportTraceServiceResponse{}, nil
}
