package tracer

import "sync"

// liveRegistry tracks spans between StartSpan and End so the tracer can report
// leaked spans at shutdown.
type liveRegistry struct {
	spans map[string]*ActiveSpan
	mu    sync.Mutex
}

func newLiveRegistry() *liveRegistry {
	return &liveRegistry{spans: make(map[string]*ActiveSpan)}
}

func (r *liveRegistry) add(span *ActiveSpan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans[span.span.SpanID] = span
}

func (r *liveRegistry) remove(spanID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.spans, spanID)
}

func (r *liveRegistry) drain() []*ActiveSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	leaked := make([]*ActiveSpan, 0, len(r.spans))
	for _, span := range r.spans {
		leaked = append(leaked, span)
	}
	r.spans = make(map[string]*ActiveSpan)
	return leaked
}
