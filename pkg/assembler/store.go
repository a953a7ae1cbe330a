package assembler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

var (
	ErrTraceNotFound = errors.New("trace not found within the store")
	ErrSetFailed     = errors.New("failed to store spans for trace")
)

// storedSpan stamps a span with its ingest time so orphan expiry can be
// decided at read time.
type storedSpan struct {
	Span      model.Span
	ArrivedAt time.Time
}

// spanStore keeps completed spans grouped by trace id in a cost-bounded
// ristretto cache. Entries age out after the retention TTL, so memory stays
// bounded under partial delivery. Put is a read-modify-write and is serialized
// by a mutex.
type spanStore struct {
	cache     *ristretto.Cache
	retention time.Duration
	mu        sync.Mutex
}

func newSpanStore(maxSpans int64, retention time.Duration) (*spanStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxSpans * 10,
		MaxCost:     maxSpans,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating span cache: %w", err)
	}
	return &spanStore{cache: cache, retention: retention}, nil
}

func (s *spanStore) Put(traceID string, span storedSpan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spans := []storedSpan{span}
	if existing, found := s.cache.Get(traceID); found {
		typedExisting, ok := existing.([]storedSpan)
		if !ok {
			return fmt.Errorf("value of unexpected type %T returned from span cache", existing)
		}
		spans = append(typedExisting, span)
	}

	if set := s.cache.SetWithTTL(traceID, spans, int64(len(spans)), s.retention); !set {
		return ErrSetFailed
	}
	// Ristretto applies writes asynchronously; wait so the trace is readable
	// as soon as Put returns.
	s.cache.Wait()
	return nil
}

func (s *spanStore) Get(traceID string) ([]storedSpan, error) {
	value, found := s.cache.Get(traceID)
	if !found {
		return nil, ErrTraceNotFound
	}
	typedValue, ok := value.([]storedSpan)
	if !ok {
		return nil, fmt.Errorf("value of unexpected type %T returned from span cache", value)
	}
	return typedValue, nil
}

func (s *spanStore) Close() {
	s.cache.Close()
}
