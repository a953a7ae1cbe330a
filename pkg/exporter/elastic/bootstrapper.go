package elastic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
)

const bootstrapRetries = 30
const bootstrapWait = 5 * time.Second

var spanIndex = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"trace_id":       map[string]interface{}{"type": "keyword"},
			"span_id":        map[string]interface{}{"type": "keyword"},
			"parent_span_id": map[string]interface{}{"type": "keyword"},
			"service_name":   map[string]interface{}{"type": "keyword"},
			"name":           map[string]interface{}{"type": "keyword"},
			"kind":           map[string]interface{}{"type": "keyword"},
			"start_time":     map[string]interface{}{"type": "date_nanos"},
			"end_time":       map[string]interface{}{"type": "date_nanos"},
			"attributes":     map[string]interface{}{"type": "object"},
			"events": map[string]interface{}{
				"type": "nested",
				"properties": map[string]interface{}{
					"name":      map[string]interface{}{"type": "keyword"},
					"timestamp": map[string]interface{}{"type": "date_nanos"},
				},
			},
			"status": map[string]interface{}{
				"properties": map[string]interface{}{
					"code":    map[string]interface{}{"type": "integer"},
					"message": map[string]interface{}{"type": "text"},
				},
			},
		},
	},
}

type Bootstrapper struct {
	esClient *elasticsearch.Client
	logger   *zap.Logger
}

func NewBootstrapper(esClient *elasticsearch.Client, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		esClient: esClient,
		logger:   logger,
	}
}

// Bootstrap waits for the cluster and creates the span index with explicit
// mappings. An already-existing index is not an error.
func (bs *Bootstrapper) Bootstrap() error {
	if err := bs.waitForElasticsearch(bootstrapRetries, bootstrapWait); err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	if err := bs.createIndex(SpanIndexName, spanIndex); err != nil {
		return fmt.Errorf("error creating span index: %w", err)
	}

	return nil
}

func (bs *Bootstrapper) waitForElasticsearch(maxRetries int, delay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		res, err := bs.esClient.Info()
		if err == nil && res.StatusCode == 200 {
			bs.logger.Info("Elasticsearch is available")
			return nil
		}
		bs.logger.Warn(fmt.Sprintf("Elasticsearch not available (attempt %d/%d), retrying...", i+1, maxRetries))

		time.Sleep(delay)
	}

	return fmt.Errorf("Elasticsearch is not available after %d attempts", maxRetries)
}

func (bs *Bootstrapper) createIndex(indexName string, index map[string]interface{}) error {
	body, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("error marshaling index input during bootstrap: %w", err)
	}

	res, err := bs.esClient.Indices.Create(
		indexName,
		bs.esClient.Indices.Create.WithBody(strings.NewReader(string(body))),
	)
	if err != nil {
		return fmt.Errorf("error creating index during bootstrap %s: %w", indexName, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if strings.Contains(res.String(), "resource_already_exists_exception") {
			bs.logger.Info("Index already exists", zap.String("index_name", indexName))
			return nil
		}
		return fmt.Errorf("error response for index %s: %s", indexName, res.String())
	}

	bs.logger.Info("Successfully created index", zap.String("index_name", indexName))
	return nil
}
