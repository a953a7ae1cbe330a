package exporter

import (
	"context"

	"go.uber.org/zap"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

// SimpleProcessor forwards each completed span to the exporter synchronously,
// one at a time, in completion order. Export failures are logged and swallowed
// so that tracing stays transparent to the instrumented program.
type SimpleProcessor struct {
	exporter Exporter
	logger   *zap.Logger
}

func NewSimpleProcessor(exporter Exporter, logger *zap.Logger) *SimpleProcessor {
	return &SimpleProcessor{exporter: exporter, logger: logger}
}

func (p *SimpleProcessor) OnEnd(span model.Span) {
	if err := p.exporter.Export(context.Background(), []model.Span{span}); err != nil {
		p.logger.Error(
			"Failed to export span",
			zap.String("trace_id", span.TraceID),
			zap.String("span_id", span.SpanID),
			zap.Error(err),
		)
	}
}

func (p *SimpleProcessor) Shutdown(ctx context.Context) error {
	return p.exporter.Shutdown(ctx)
}
