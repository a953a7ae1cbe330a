package tracer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/opentrail/opentrail/pkg/tracer"
	"github.com/opentrail/opentrail/pkg/tracer/model"
)

type captureProcessor struct {
	mu    sync.Mutex
	spans []model.Span
}

func (c *captureProcessor) OnEnd(span model.Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, span)
}

func (c *captureProcessor) Spans() []model.Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Span, len(c.spans))
	copy(out, c.spans)
	return out
}

func TestStartSpanIdentifiers(t *testing.T) {
	capture := &captureProcessor{}
	tr := tracer.NewTracer("checkout", capture, zap.NewNop())

	t.Run("should allocate a fresh trace id and span id for a root span", func(t *testing.T) {
		_, span := tr.StartSpan(context.Background(), "root-op")
		assert.Len(t, span.TraceID(), 32)
		assert.Len(t, span.SpanID(), 16)
		snapshot := span.Snapshot()
		assert.Empty(t, snapshot.ParentSpanID)
		assert.Equal(t, "checkout", snapshot.ServiceName)
		assert.Equal(t, model.SpanKindInternal, snapshot.Kind)
		span.End()
	})

	t.Run("should inherit the trace id and parent the child under the active span", func(t *testing.T) {
		ctx, parent := tr.StartSpan(context.Background(), "parent")
		_, child := tr.StartSpan(ctx, "child")
		assert.Equal(t, parent.TraceID(), child.TraceID())
		assert.Equal(t, parent.SpanID(), child.Snapshot().ParentSpanID)
		assert.NotEqual(t, parent.SpanID(), child.SpanID())
		child.End()
		parent.End()
	})

	t.Run("should allocate distinct trace ids for independent roots", func(t *testing.T) {
		_, first := tr.StartSpan(context.Background(), "first")
		_, second := tr.StartSpan(context.Background(), "second")
		assert.NotEqual(t, first.TraceID(), second.TraceID())
		first.End()
		second.End()
	})
}

func TestConcurrentChildrenShareParent(t *testing.T) {
	capture := &captureProcessor{}
	tr := tracer.NewTracer("checkout", capture, zap.NewNop())

	ctx, parent := tr.StartSpan(context.Background(), "parent")

	const children = 16
	var wg sync.WaitGroup
	wg.Add(children)
	for i := 0; i < children; i++ {
		go func() {
			defer wg.Done()
			_, child := tr.StartSpan(ctx, "child")
			child.End()
		}()
	}
	wg.Wait()
	parent.End()

	spans := capture.Spans()
	require.Len(t, spans, children+1)
	for _, span := range spans {
		if span.Name == "child" {
			assert.Equal(t, parent.SpanID(), span.ParentSpanID)
			assert.Equal(t, parent.TraceID(), span.TraceID)
		}
	}
}

func TestSpanCompletionOrdering(t *testing.T) {
	capture := &captureProcessor{}
	fakeClock := clockz.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	tr := tracer.NewTracer("checkout", capture, zap.NewNop()).WithClock(fakeClock)

	ctx, parent := tr.StartSpan(context.Background(), "parent")
	fakeClock.Advance(10 * time.Millisecond)
	_, child := tr.StartSpan(ctx, "child")
	fakeClock.Advance(25 * time.Millisecond)
	child.End()
	fakeClock.Advance(5 * time.Millisecond)
	parent.End()

	spans := capture.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, "child", spans[0].Name)
	assert.Equal(t, "parent", spans[1].Name)
	assert.Equal(t, spans[1].SpanID, spans[0].ParentSpanID)
	assert.Empty(t, spans[1].ParentSpanID)
	for _, span := range spans {
		assert.False(t, span.EndTime.Before(span.StartTime))
	}
	assert.Equal(t, 25*time.Millisecond, spans[0].Duration())
	assert.Equal(t, 40*time.Millisecond, spans[1].Duration())
}

func TestMutationAfterEnd(t *testing.T) {
	capture := &captureProcessor{}
	core, observed := observer.New(zap.WarnLevel)
	tr := tracer.NewTracer("checkout", capture, zap.New(core))

	_, span := tr.StartSpan(context.Background(), "op")
	span.SetAttribute("before", model.StringValue("kept"))
	span.End()

	span.SetAttribute("after", model.StringValue("ignored"))
	span.AddEvent("late-event", nil)
	span.SetStatus(model.StatusError, "too late")
	span.End()

	spans := capture.Spans()
	require.Len(t, spans, 1)
	exported := spans[0]
	assert.Contains(t, exported.Attributes, "before")
	assert.NotContains(t, exported.Attributes, "after")
	assert.Empty(t, exported.Events)
	assert.Equal(t, model.StatusUnset, exported.Status.Code)

	logs := observed.FilterMessage("Mutation of completed span rejected").All()
	assert.Len(t, logs, 3)
}

func TestAttributeAndEventSemantics(t *testing.T) {
	capture := &captureProcessor{}
	tr := tracer.NewTracer("checkout", capture, zap.NewNop())

	t.Run("should apply last write wins per attribute key", func(t *testing.T) {
		_, span := tr.StartSpan(context.Background(), "op")
		span.SetAttribute("retries", model.IntValue(1))
		span.SetAttribute("retries", model.IntValue(2))
		span.End()

		spans := capture.Spans()
		exported := spans[len(spans)-1]
		assert.Equal(t, int64(2), exported.Attributes["retries"].AsInt())
	})

	t.Run("should keep events in append order", func(t *testing.T) {
		_, span := tr.StartSpan(context.Background(), "op")
		span.AddEvent("first", nil)
		span.AddEvent("second", nil)
		span.AddEvent("third", nil)
		span.End()

		spans := capture.Spans()
		exported := spans[len(spans)-1]
		require.Len(t, exported.Events, 3)
		assert.Equal(t, "first", exported.Events[0].Name)
		assert.Equal(t, "second", exported.Events[1].Name)
		assert.Equal(t, "third", exported.Events[2].Name)
	})
}

func TestTraceGuaranteedRelease(t *testing.T) {
	t.Run("should export an error status when the operation fails", func(t *testing.T) {
		capture := &captureProcessor{}
		tr := tracer.NewTracer("checkout", capture, zap.NewNop())

		err := tr.Trace(context.Background(), "failing-op", func(context.Context) error {
			return errors.New("Oh no!")
		})
		require.EqualError(t, err, "Oh no!")

		spans := capture.Spans()
		require.Len(t, spans, 1)
		assert.Equal(t, model.StatusError, spans[0].Status.Code)
		assert.Contains(t, spans[0].Status.Message, "Oh no!")
	})

	t.Run("should export an ok status when the operation succeeds", func(t *testing.T) {
		capture := &captureProcessor{}
		tr := tracer.NewTracer("checkout", capture, zap.NewNop())

		err := tr.Trace(context.Background(), "ok-op", func(context.Context) error {
			return nil
		})
		require.NoError(t, err)

		spans := capture.Spans()
		require.Len(t, spans, 1)
		assert.Equal(t, model.StatusOk, spans[0].Status.Code)
	})

	t.Run("should still end the span when the operation panics", func(t *testing.T) {
		capture := &captureProcessor{}
		tr := tracer.NewTracer("checkout", capture, zap.NewNop())

		require.Panics(t, func() {
			_ = tr.Trace(context.Background(), "panicking-op", func(context.Context) error {
				panic("boom")
			})
		})

		spans := capture.Spans()
		require.Len(t, spans, 1)
		assert.Equal(t, model.StatusError, spans[0].Status.Code)
		assert.Contains(t, spans[0].Status.Message, "boom")
		assert.False(t, spans[0].EndTime.IsZero())
	})

	t.Run("should end the span with an error status when the context is cancelled", func(t *testing.T) {
		capture := &captureProcessor{}
		tr := tracer.NewTracer("checkout", capture, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		err := tr.Trace(ctx, "cancelled-op", func(innerCtx context.Context) error {
			cancel()
			<-innerCtx.Done()
			return nil
		})
		require.NoError(t, err)

		spans := capture.Spans()
		require.Len(t, spans, 1)
		assert.Equal(t, model.StatusError, spans[0].Status.Code)
		assert.Contains(t, spans[0].Status.Message, "context canceled")
	})
}

func TestCloseReportsLeakedSpans(t *testing.T) {
	capture := &captureProcessor{}
	core, observed := observer.New(zap.ErrorLevel)
	tr := tracer.NewTracer("checkout", capture, zap.New(core))

	_, leaked := tr.StartSpan(context.Background(), "never-ended")
	_, finished := tr.StartSpan(context.Background(), "ended")
	finished.End()

	tr.Close()

	logs := observed.FilterMessage("Span never completed before tracer shutdown").All()
	require.Len(t, logs, 1)
	assert.Equal(t, leaked.SpanID(), logs[0].ContextMap()["span_id"])
	// Leaked spans are logged, never exported.
	require.Len(t, capture.Spans(), 1)
	assert.Equal(t, "ended", capture.Spans()[0].Name)
}
