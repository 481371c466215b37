package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"student-grading/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisExporter caches the latest runs:
//
//	<prefix>run:<id>       run summary JSON
//	<prefix>run:<id>:records  list of row JSON in input order
//	<prefix>latest         id of the most recent run
type RedisExporter struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisExporter(client *redis.Client, prefix string, ttl time.Duration) *RedisExporter {
	return &RedisExporter{client: client, prefix: prefix, ttl: ttl}
}

func (e *RedisExporter) Name() string { return "redis" }

func (e *RedisExporter) runKey(id string) string  { return e.prefix + "run:" + id }
func (e *RedisExporter) rowsKey(id string) string { return e.runKey(id) + ":records" }
func (e *RedisExporter) latestKey() string        { return e.prefix + "latest" }

func (e *RedisExporter) Export(ctx context.Context, run *models.GradingRun) error {
	id := run.Summary.RunID
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	rows := make([]interface{}, len(run.Records))
	for i, rec := range run.Records {
		doc, err := json.Marshal(newRecordDoc(id, i+1, rec))
		if err != nil {
			return fmt.Errorf("marshal row %d: %w", i+1, err)
		}
		rows[i] = doc
	}

	_, err = e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, e.runKey(id), summary, e.ttl)
		pipe.Del(ctx, e.rowsKey(id))
		if len(rows) > 0 {
			pipe.RPush(ctx, e.rowsKey(id), rows...)
			if e.ttl > 0 {
				pipe.Expire(ctx, e.rowsKey(id), e.ttl)
			}
		}
		pipe.Set(ctx, e.latestKey(), id, e.ttl)
		return nil
	})
	return err
}

// LatestRun returns the summary of the most recently exported run, or nil
// when nothing has been exported or it has expired.
func (e *RedisExporter) LatestRun(ctx context.Context) (*models.RunSummary, error) {
	id, err := e.client.Get(ctx, e.latestKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	data, err := e.client.Get(ctx, e.runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s models.RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &s, nil
}
