package exporter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opentrail/opentrail/pkg/exporter"
	"github.com/opentrail/opentrail/pkg/tracer/model"
)

type fakeExporter struct {
	mu       sync.Mutex
	batches  [][]model.Span
	failures int
	attempts int
}

func (f *fakeExporter) Export(_ context.Context, spans []model.Span) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return exporter.ErrExportFailure
	}
	batch := make([]model.Span, len(spans))
	copy(batch, spans)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeExporter) Shutdown(context.Context) error {
	return nil
}

func (f *fakeExporter) Batches() [][]model.Span {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]model.Span, len(f.batches))
	copy(out, f.batches)
	return out
}

func (f *fakeExporter) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func spanWithID(id string) model.Span {
	return model.Span{TraceID: "trace", SpanID: id}
}

func TestBatchProcessorFlushesOnBatchSize(t *testing.T) {
	sink := &fakeExporter{}
	processor := exporter.NewBatchProcessor(
		sink,
		exporter.BatchConfig{BatchSize: 3, FlushInterval: time.Hour},
		zap.NewNop(),
		nil,
	)

	processor.OnEnd(spanWithID("a"))
	processor.OnEnd(spanWithID("b"))
	processor.OnEnd(spanWithID("c"))

	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, sink.Batches()[0], 3)
}

func TestBatchProcessorDrainsOnShutdown(t *testing.T) {
	sink := &fakeExporter{}
	processor := exporter.NewBatchProcessor(
		sink,
		exporter.BatchConfig{BatchSize: 100, FlushInterval: time.Hour},
		zap.NewNop(),
		nil,
	)

	processor.OnEnd(spanWithID("a"))
	processor.OnEnd(spanWithID("b"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Shutdown(ctx))

	batches := sink.Batches()
	total := 0
	for _, batch := range batches {
		total += len(batch)
	}
	assert.Equal(t, 2, total)
}

func TestBatchProcessorRetriesThenSucceeds(t *testing.T) {
	sink := &fakeExporter{failures: 2}
	processor := exporter.NewBatchProcessor(
		sink,
		exporter.BatchConfig{
			BatchSize:     1,
			FlushInterval: time.Hour,
			MaxRetries:    3,
			RetryBackoff:  time.Millisecond,
		},
		zap.NewNop(),
		nil,
	)

	processor.OnEnd(spanWithID("a"))

	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, sink.Attempts())
	assert.Zero(t, processor.DroppedSpans())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Shutdown(ctx))
}

func TestBatchProcessorDropsAfterRetriesExhausted(t *testing.T) {
	sink := &fakeExporter{failures: 100}
	processor := exporter.NewBatchProcessor(
		sink,
		exporter.BatchConfig{
			BatchSize:     1,
			FlushInterval: time.Hour,
			MaxRetries:    1,
			RetryBackoff:  time.Millisecond,
		},
		zap.NewNop(),
		nil,
	)

	processor.OnEnd(spanWithID("a"))

	require.Eventually(t, func() bool {
		return processor.DroppedSpans() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, sink.Batches())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Shutdown(ctx))
}

func TestBatchProcessorRejectsSpansAfterShutdown(t *testing.T) {
	sink := &fakeExporter{}
	processor := exporter.NewBatchProcessor(
		sink,
		exporter.BatchConfig{BatchSize: 10, FlushInterval: time.Hour},
		zap.NewNop(),
		nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Shutdown(ctx))
	assert.ErrorIs(t, processor.Shutdown(ctx), exporter.ErrProcessorStopped)

	processor.OnEnd(spanWithID("late"))
	assert.Equal(t, uint64(1), processor.DroppedSpans())
}
