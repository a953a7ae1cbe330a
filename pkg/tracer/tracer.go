package tracer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

// ErrSpanCompleted is reported when a mutator is invoked on a span after End.
// The mutation itself is a no-op; the error goes to the operational log, never
// to the instrumented code path.
var ErrSpanCompleted = errors.New("span already completed")

// SpanProcessor consumes completed spans. Implementations must not block the
// caller of End and must never propagate failures back into the traced code.
type SpanProcessor interface {
	OnEnd(span model.Span)
}

// Tracer creates and completes spans. Safe for concurrent use by multiple
// goroutines.
type Tracer struct {
	serviceName string
	processor   SpanProcessor
	clock       clockz.Clock
	logger      *zap.Logger
	live        *liveRegistry
}

func NewTracer(serviceName string, processor SpanProcessor, logger *zap.Logger) *Tracer {
	return &Tracer{
		serviceName: serviceName,
		processor:   processor,
		clock:       clockz.RealClock,
		logger:      logger,
		live:        newLiveRegistry(),
	}
}

// WithClock returns a tracer identical to t but reading time from clock.
// Enables clock injection for deterministic tests.
func (t *Tracer) WithClock(clock clockz.Clock) *Tracer {
	return &Tracer{
		serviceName: t.serviceName,
		processor:   t.processor,
		clock:       clock,
		logger:      t.logger,
		live:        t.live,
	}
}

type startConfig struct {
	kind       model.SpanKind
	attributes map[string]model.Value
	links      []model.SpanLink
}

type StartOption func(*startConfig)

func WithKind(kind model.SpanKind) StartOption {
	return func(c *startConfig) {
		c.kind = kind
	}
}

func WithAttributes(attributes map[string]model.Value) StartOption {
	return func(c *startConfig) {
		c.attributes = attributes
	}
}

func WithLinks(links ...model.SpanLink) StartOption {
	return func(c *startConfig) {
		c.links = append(c.links, links...)
	}
}

// StartSpan opens a new span. If ctx carries an active span the new span joins
// its trace as a child; otherwise a fresh trace id is allocated and the span
// is a root. The returned context carries the new span as active and must be
// used for the duration of the instrumented operation.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...StartOption) (context.Context, *ActiveSpan) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := startConfig{kind: model.SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}

	span := model.Span{
		TraceID:     t.newTraceID(),
		SpanID:      t.newSpanID(),
		ServiceName: t.serviceName,
		Name:        name,
		Kind:        cfg.kind,
		StartTime:   t.clock.Now(),
		Attributes:  cfg.attributes,
		Links:       cfg.links,
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID()
		span.ParentSpanID = parent.SpanID()
	}

	active := &ActiveSpan{span: span, tracer: t}
	t.live.add(active)

	return ContextWithSpan(ctx, active), active
}

// Trace runs fn inside a span named name and guarantees release: the span is
// always ended, even when fn returns an error, panics, or the context is
// cancelled. The outcome of fn is propagated untouched.
func (t *Tracer) Trace(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...StartOption) (err error) {
	spanCtx, span := t.StartSpan(ctx, name, opts...)
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(model.StatusError, fmt.Sprintf("panic: %v", r))
			span.End()
			panic(r)
		}
		span.End()
	}()

	err = fn(spanCtx)
	switch {
	case err != nil:
		span.RecordError(err)
	case spanCtx.Err() != nil:
		span.SetStatus(model.StatusError, spanCtx.Err().Error())
	default:
		span.SetStatus(model.StatusOk, "")
	}
	return err
}

// Close reports spans still open at shutdown. An open span at this point is a
// resource leak: it is logged with its identifiers and left unexported.
func (t *Tracer) Close() {
	leaked := t.live.drain()
	for _, span := range leaked {
		t.logger.Error(
			"Span never completed before tracer shutdown",
			zap.String("trace_id", span.TraceID()),
			zap.String("span_id", span.SpanID()),
			zap.String("name", span.Name()),
		)
	}
}

func (t *Tracer) finishSpan(span model.Span) {
	t.live.remove(span.SpanID)
	if span.EndTime.Before(span.StartTime) {
		// Guards against a misbehaving injected clock.
		span.EndTime = span.StartTime
	}
	if t.processor != nil {
		t.processor.OnEnd(span)
	}
}

func (t *Tracer) reportCompletedSpanUse(operation string, span *model.Span) {
	t.logger.Warn(
		"Mutation of completed span rejected",
		zap.String("operation", operation),
		zap.String("trace_id", span.TraceID),
		zap.String("span_id", span.SpanID),
		zap.Error(ErrSpanCompleted),
	)
}

func (t *Tracer) newTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func (t *Tracer) newSpanID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a time-based id if crypto/rand fails.
		return hex.EncodeToString([]byte(t.clock.Now().Format(time.StampNano)))[:16]
	}
	return hex.EncodeToString(bytes)
}
