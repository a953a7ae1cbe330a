// Package assembler reconstructs trace trees from completed spans. It is a
// read-side aggregation for visualization tooling; the recorder never depends
// on it.
package assembler

import (
	"errors"
	"sort"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

var ErrNoRootSpan = errors.New("no root span found for trace")

// UnknownParentName labels the synthetic node that adopts orphan spans whose
// parent never arrived within the orphan window.
const UnknownParentName = "unknown-parent"

const (
	DefaultMaxSpans     = 100_000
	DefaultOrphanWindow = 30 * time.Second
	DefaultRetention    = 10 * time.Minute
)

type Config struct {
	// MaxSpans bounds how many spans the store keeps across all traces.
	MaxSpans int64
	// OrphanWindow is how long a span with a missing parent is held pending
	// before it is attached under the synthetic unknown-parent node.
	OrphanWindow time.Duration
	// Retention is how long a trace stays readable after its last ingest.
	Retention time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSpans <= 0 {
		c.MaxSpans = DefaultMaxSpans
	}
	if c.OrphanWindow <= 0 {
		c.OrphanWindow = DefaultOrphanWindow
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	return c
}

type TraceNode struct {
	Span     model.Span   `json:"span"`
	Children []*TraceNode `json:"children"`
}

// Assembler ingests completed spans in any order and reconstructs parent/child
// trees on demand. Safe for concurrent use.
type Assembler struct {
	store        *spanStore
	orphanWindow time.Duration
	clock        clockz.Clock
	logger       *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Assembler, error) {
	cfg = cfg.withDefaults()
	store, err := newSpanStore(cfg.MaxSpans, cfg.Retention)
	if err != nil {
		return nil, err
	}
	return &Assembler{
		store:        store,
		orphanWindow: cfg.OrphanWindow,
		clock:        clockz.RealClock,
		logger:       logger,
	}, nil
}

// WithClock returns an assembler identical to a but reading time from clock.
func (a *Assembler) WithClock(clock clockz.Clock) *Assembler {
	return &Assembler{
		store:        a.store,
		orphanWindow: a.orphanWindow,
		clock:        clock,
		logger:       a.logger,
	}
}

// Record ingests a completed span. Ingest failures are logged, not returned;
// the assembler is best-effort by design.
func (a *Assembler) Record(span model.Span) {
	stored := storedSpan{Span: span.Clone(), ArrivedAt: a.clock.Now()}
	if err := a.store.Put(span.TraceID, stored); err != nil {
		a.logger.Error(
			"Failed to store span for assembly",
			zap.String("trace_id", span.TraceID),
			zap.String("span_id", span.SpanID),
			zap.Error(err),
		)
	}
}

// Tree reconstructs the parent/child tree for a trace. Spans whose parent has
// not arrived are held pending for the orphan window and excluded from the
// tree; once the window has passed they are adopted by a synthetic
// unknown-parent node (the root's child, or the root itself when the true
// root is missing too).
func (a *Assembler) Tree(traceID string) (*TraceNode, error) {
	stored, err := a.store.Get(traceID)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*TraceNode, len(stored))
	for _, s := range stored {
		// Later arrivals win on duplicate span ids.
		nodes[s.Span.SpanID] = &TraceNode{Span: s.Span}
	}

	var root *TraceNode
	var expiredOrphans []*TraceNode
	now := a.clock.Now()
	linked := make(map[string]bool, len(nodes))
	for _, s := range stored {
		if linked[s.Span.SpanID] {
			continue
		}
		linked[s.Span.SpanID] = true
		node := nodes[s.Span.SpanID]
		if s.Span.IsRoot() {
			root = node
			continue
		}
		if parent, ok := nodes[s.Span.ParentSpanID]; ok {
			parent.Children = append(parent.Children, node)
			continue
		}
		if now.Sub(s.ArrivedAt) < a.orphanWindow {
			// Still pending; the parent may yet arrive.
			continue
		}
		a.logger.Warn(
			"Orphan span timed out waiting for its parent",
			zap.String("trace_id", s.Span.TraceID),
			zap.String("span_id", s.Span.SpanID),
			zap.String("parent_span_id", s.Span.ParentSpanID),
		)
		expiredOrphans = append(expiredOrphans, node)
	}

	if len(expiredOrphans) > 0 {
		synthetic := &TraceNode{
			Span: model.Span{
				TraceID: traceID,
				SpanID:  UnknownParentName,
				Name:    UnknownParentName,
			},
			Children: expiredOrphans,
		}
		if root == nil {
			root = synthetic
		} else {
			root.Children = append(root.Children, synthetic)
		}
	}

	if root == nil {
		return nil, ErrNoRootSpan
	}
	sortChildren(root)
	return root, nil
}

// Close releases the backing store.
func (a *Assembler) Close() {
	a.store.Close()
}

func sortChildren(node *TraceNode) {
	sort.SliceStable(node.Children, func(i, j int) bool {
		return node.Children[i].Span.StartTime.Before(node.Children[j].Span.StartTime)
	})
	for _, child := range node.Children {
		sortChildren(child)
	}
}
