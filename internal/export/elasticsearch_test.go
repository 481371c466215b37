package export

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeCluster answers the product check and hands every _bulk body to bulk.
func newFakeCluster(t *testing.T, bulk func(lines []string) (int, string)) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasSuffix(r.URL.Path, "/_bulk") {
			_, _ = w.Write([]byte(`{"version":{"number":"8.11.0"}}`))
			return
		}
		var lines []string
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		status, body := bulk(lines)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearchExporter_Export(t *testing.T) {
	var got []string
	client := newFakeCluster(t, func(lines []string) (int, string) {
		got = lines
		return http.StatusOK, `{"errors":false,"items":[{"index":{"status":201}},{"index":{"status":201}}]}`
	})

	exporter := NewElasticsearchExporter(client, "graded-records")
	require.NoError(t, exporter.Export(context.Background(), sampleRun()))

	require.Len(t, got, 4)
	assert.JSONEq(t, `{"index":{"_index":"graded-records","_id":"run-1-1"}}`, got[0])
	assert.JSONEq(t, `{"runId":"run-1","row":1,"studentId":"001","age":"20","averagePercent":71.67,"status":"Passed"}`, got[1])
	assert.JSONEq(t, `{"index":{"_index":"graded-records","_id":"run-1-2"}}`, got[2])

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(got[3]), &doc))
	assert.Equal(t, "Failed", doc["status"])
}

func TestElasticsearchExporter_Export_ItemErrors(t *testing.T) {
	client := newFakeCluster(t, func([]string) (int, string) {
		return http.StatusOK, `{"errors":true,"items":[
			{"index":{"status":201}},
			{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse field [age]"}}}
		]}`
	})

	err := NewElasticsearchExporter(client, "graded-records").Export(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents rejected")
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestElasticsearchExporter_Export_HTTPError(t *testing.T) {
	client := newFakeCluster(t, func([]string) (int, string) {
		return http.StatusInternalServerError, `{"error":"cluster_block_exception"}`
	})

	err := NewElasticsearchExporter(client, "graded-records").Export(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestElasticsearchExporter_Export_EmptyRunSkipsRequest(t *testing.T) {
	called := false
	client := newFakeCluster(t, func([]string) (int, string) {
		called = true
		return http.StatusOK, `{"errors":false,"items":[]}`
	})

	run := sampleRun()
	run.Records = nil
	require.NoError(t, NewElasticsearchExporter(client, "graded-records").Export(context.Background(), run))
	assert.False(t, called)
}
