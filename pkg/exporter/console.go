package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

// ConsoleExporter writes one JSON span record per line. Spans arrive here only
// after completion, so readers never observe a half-closed span.
type ConsoleExporter struct {
	w  io.Writer
	mu sync.Mutex
}

func NewConsoleExporter(w io.Writer) *ConsoleExporter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleExporter{w: w}
}

func (c *ConsoleExporter) Export(_ context.Context, spans []model.Span) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, span := range spans {
		line, err := json.Marshal(ToSpanRecord(span))
		if err != nil {
			return fmt.Errorf("error marshaling span record: %w", err)
		}
		if _, err := c.w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("error writing span record: %w", err)
		}
	}
	return nil
}

func (c *ConsoleExporter) Shutdown(context.Context) error {
	return nil
}
