package exporter

import (
	"context"
	"errors"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

// Exporter delivers completed spans to a sink. Export is best-effort: callers
// treat a returned error as ErrExportFailure and retry or drop per their
// policy; the error is never surfaced to the instrumented code path.
type Exporter interface {
	Export(ctx context.Context, spans []model.Span) error
	Shutdown(ctx context.Context) error
}

var (
	ErrExportFailure    = errors.New("failed to deliver spans to the sink")
	ErrProcessorStopped = errors.New("span processor already stopped")
)
