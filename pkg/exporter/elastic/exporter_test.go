package elastic

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

func TestBuildBulkBody(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	spans := []model.Span{
		{
			TraceID:     "trace-1",
			SpanID:      "span-1",
			ServiceName: "checkout",
			Name:        "op-1",
			StartTime:   start,
			EndTime:     start.Add(time.Millisecond),
			Status:      model.Status{Code: model.StatusOk},
		},
		{
			TraceID:      "trace-1",
			SpanID:       "span-2",
			ParentSpanID: "span-1",
			ServiceName:  "checkout",
			Name:         "op-2",
			StartTime:    start,
			EndTime:      start.Add(2 * time.Millisecond),
			Status:       model.Status{Code: model.StatusError, Message: "Oh no!"},
		},
	}

	body, err := buildBulkBody(spans)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(body), []byte("\n"))
	require.Len(t, lines, 4)

	var meta map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &meta))
	assert.Equal(t, "span-1", meta["index"]["_id"])

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[1], &doc))
	assert.Equal(t, "trace-1", doc["trace_id"])
	assert.Equal(t, "op-1", doc["name"])

	require.NoError(t, json.Unmarshal(lines[2], &meta))
	assert.Equal(t, "span-2", meta["index"]["_id"])

	require.NoError(t, json.Unmarshal(lines[3], &doc))
	assert.Equal(t, "span-1", doc["parent_span_id"])
	status := doc["status"].(map[string]interface{})
	assert.Equal(t, 2.0, status["code"])
	assert.Equal(t, "Oh no!", status["message"])
}

func TestBuildBulkBodyEmpty(t *testing.T) {
	body, err := buildBulkBody(nil)
	require.NoError(t, err)
	assert.Empty(t, body)
}
