package app

import (
	"context"
	"fmt"
	"time"

	awsclient "student-grading/internal/common/aws"
	"student-grading/internal/common/config"
	"student-grading/internal/common/database"
	"student-grading/internal/common/logger"
	"student-grading/internal/export"
	"student-grading/internal/notify"
)

// BuildExporters creates the exporters enabled in cfg. The returned closer
// releases every client that was opened, also when an error is returned.
func BuildExporters(ctx context.Context, cfg *config.Config, log logger.Logger) (*export.Fanout, func(), error) {
	var (
		exporters []export.Exporter
		closers   []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	if cfg.Export.Postgres.Enabled {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, pg.Close)
		exp := export.NewPostgresExporter(pg)
		if cfg.Export.Postgres.EnsureSchema {
			if err := exp.EnsureSchema(ctx); err != nil {
				return nil, closeAll, fmt.Errorf("postgres export: %w", err)
			}
		}
		exporters = append(exporters, exp)
	}

	if cfg.Export.Redis.Enabled {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, closeAll, fmt.Errorf("redis export: %w", err)
		}
		closers = append(closers, rc.Close)
		ttl := time.Duration(cfg.Export.Redis.TTL) * time.Second
		exporters = append(exporters, export.NewRedisExporter(rc.Client, cfg.Export.Redis.KeyPrefix, ttl))
	}

	if cfg.Export.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
		if err != nil {
			return nil, closeAll, fmt.Errorf("elasticsearch export: %w", err)
		}
		exporters = append(exporters, export.NewElasticsearchExporter(es.Client, cfg.Export.Elasticsearch.Index))
	}

	fanout := export.NewFanout(log, exporters...)
	if fanout.Len() > 0 {
		log.Info("result exporters enabled", map[string]interface{}{"exporters": fanout.Names()})
	}
	return fanout, closeAll, nil
}

// BuildNotifier returns nil when no notification channel is enabled.
func BuildNotifier(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*notify.Notifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	var nc notify.Config
	if cfg.SNS.Enabled {
		client, err := awsclient.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		nc.SNS, nc.TopicARN = client, cfg.SNS.TopicARN
	}
	if cfg.SES.Enabled {
		client, err := awsclient.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		nc.SES, nc.FromEmail, nc.To = client, cfg.SES.FromEmail, cfg.SES.To
	}
	return notify.NewNotifier(nc, log), nil
}
