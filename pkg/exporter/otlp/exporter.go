// Package otlp ships completed spans to an OpenTelemetry collector over gRPC.
package otlp

import (
	"context"
	"fmt"
	"time"

	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

const DefaultExportTimeout = 10 * time.Second

type Exporter struct {
	conn          *grpc.ClientConn
	client        protoTrace.TraceServiceClient
	serviceName   string
	exportTimeout time.Duration
	logger        *zap.Logger
}

func NewExporter(endpoint string, serviceName string, exportTimeout time.Duration, logger *zap.Logger) (*Exporter, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("error connecting to OTLP endpoint %s: %w", endpoint, err)
	}
	if exportTimeout <= 0 {
		exportTimeout = DefaultExportTimeout
	}
	return &Exporter{
		conn:          conn,
		client:        protoTrace.NewTraceServiceClient(conn),
		serviceName:   serviceName,
		exportTimeout: exportTimeout,
		logger:        logger,
	}, nil
}

// Export converts the spans to OTLP and delivers them in a single request
// under one resource carrying service.name.
func (e *Exporter) Export(ctx context.Context, spans []model.Span) error {
	if len(spans) == 0 {
		return nil
	}

	req := &protoTrace.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{
					Attributes: []*commonpb.KeyValue{
						{
							Key: "service.name",
							Value: &commonpb.AnyValue{
								Value: &commonpb.AnyValue_StringValue{StringValue: e.serviceName},
							},
						},
					},
				},
				ScopeSpans: []*tracepb.ScopeSpans{
					{Spans: toProtoSpans(spans)},
				},
			},
		},
	}

	exportCtx, cancel := context.WithTimeout(ctx, e.exportTimeout)
	defer cancel()
	if _, err := e.client.Export(exportCtx, req); err != nil {
		return fmt.Errorf("error exporting spans over OTLP: %w", err)
	}
	return nil
}

func (e *Exporter) Shutdown(context.Context) error {
	if err := e.conn.Close(); err != nil {
		return fmt.Errorf("error closing OTLP connection: %w", err)
	}
	return nil
}
