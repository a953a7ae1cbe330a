// Package elastic bulk-indexes completed spans into Elasticsearch.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

const SpanIndexName = "span_index"

type Exporter struct {
	es     *elasticsearch.Client
	index  string
	logger *zap.Logger
}

func NewExporter(es *elasticsearch.Client, logger *zap.Logger) *Exporter {
	return &Exporter{
		es:     es,
		index:  SpanIndexName,
		logger: logger,
	}
}

func (e *Exporter) Export(ctx context.Context, spans []model.Span) error {
	if len(spans) == 0 {
		return nil
	}

	body, err := buildBulkBody(spans)
	if err != nil {
		return fmt.Errorf("error building bulk body: %w", err)
	}

	res, err := e.es.Bulk(
		bytes.NewReader(body),
		e.es.Bulk.WithIndex(e.index),
		e.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error bulk indexing spans: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}
	return nil
}

func (e *Exporter) Shutdown(context.Context) error {
	return nil
}

// buildBulkBody renders the newline-delimited meta/document pairs the bulk API
// expects, using the span id as the document id.
func buildBulkBody(spans []model.Span) ([]byte, error) {
	var buf bytes.Buffer
	for _, span := range spans {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_id": span.SpanID},
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("error marshaling bulk meta: %w", err)
		}
		buf.Write(metaJSON)
		buf.WriteByte('\n')

		spanJSON, err := json.Marshal(span)
		if err != nil {
			return nil, fmt.Errorf("error marshaling span document: %w", err)
		}
		buf.Write(spanJSON)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
