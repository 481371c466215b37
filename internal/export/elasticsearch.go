package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"student-grading/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchExporter bulk-indexes one document per graded row. Document
// ids are <runId>-<row>, so re-exporting a run overwrites it.
type ElasticsearchExporter struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchExporter(client *elasticsearch.Client, index string) *ElasticsearchExporter {
	return &ElasticsearchExporter{client: client, index: index}
}

func (e *ElasticsearchExporter) Name() string { return "elasticsearch" }

type bulkAction struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

func (e *ElasticsearchExporter) Export(ctx context.Context, run *models.GradingRun) error {
	if len(run.Records) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for i, rec := range run.Records {
		var action bulkAction
		action.Index.Index = e.index
		action.Index.ID = docID(run.Summary.RunID, i+1)
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(newRecordDoc(run.Summary.RunID, i+1, rec)); err != nil {
			return err
		}
	}

	res, err := e.client.Bulk(bytes.NewReader(body.Bytes()),
		e.client.Bulk.WithContext(ctx),
		e.client.Bulk.WithIndex(e.index),
	)
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("bulk request: %s: %s", res.Status(), bytes.TrimSpace(msg))
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}

	failed, first := 0, ""
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			failed++
			if first == "" {
				first = result.Error.Type + ": " + result.Error.Reason
			}
		}
	}
	return fmt.Errorf("%d of %d documents rejected, first: %s", failed, len(run.Records), first)
}
