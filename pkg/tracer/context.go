package tracer

import "context"

type activeSpanKeyType struct{}

var activeSpanKey activeSpanKeyType

// ContextWithSpan returns a context carrying span as the active span. Child
// goroutines started with the returned context see span as their parent; the
// association is a context value, so forked paths hold a snapshot and never
// observe each other's later StartSpan calls.
func ContextWithSpan(ctx context.Context, span *ActiveSpan) context.Context {
	return context.WithValue(ctx, activeSpanKey, span)
}

// SpanFromContext extracts the active span from a context, or nil if none.
func SpanFromContext(ctx context.Context) *ActiveSpan {
	if ctx == nil {
		return nil
	}
	if span, ok := ctx.Value(activeSpanKey).(*ActiveSpan); ok {
		return span
	}
	return nil
}
