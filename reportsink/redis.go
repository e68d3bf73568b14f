package reportsink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/lazyload"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

const redisPingTimeout = 5 * time.Second

// Stream entry fields written by RedisSink.
const (
	FieldID      = "id"
	FieldService = "service"
	FieldReport  = "report"
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisSink appends each report to a Redis stream so recent flushes can be
// tailed with XREAD or XRANGE.
type RedisSink struct {
	rdb     streamAdder
	stream  string
	maxLen  int64
	service string
	now     func() time.Time
	client  *redis.Client
}

var _ lazyload.Sink = (*RedisSink)(nil)

// NewRedisSink appends to stream through rdb. maxLen > 0 trims the stream to
// that many entries on every append.
func NewRedisSink(rdb streamAdder, stream string, maxLen int64, service string) *RedisSink {
	return &RedisSink{rdb: rdb, stream: stream, maxLen: maxLen, service: service, now: time.Now}
}

// ConnectRedis opens a client for cfg and verifies it with PING. The returned
// sink owns the client; call Close on shutdown.
func ConnectRedis(cfg *config.RedisSinkConfig, service string, log logger.Logger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close Redis client after ping failure")
		}
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", cfg.Address, err)
	}

	log.Info().
		Str("address", cfg.Address).
		Str("stream", cfg.Stream).
		Int64("maxlen", cfg.MaxLen).
		Msg("Redis report sink connected")

	s := NewRedisSink(client, cfg.Stream, cfg.MaxLen, service)
	s.client = client
	return s, nil
}

// Publish appends report as one stream entry.
func (s *RedisSink) Publish(ctx context.Context, report lazyload.Report) error {
	doc := NewDocument(s.service, report, s.now())
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Values: map[string]any{
			FieldID:      doc.ID,
			FieldService: doc.Service,
			FieldReport:  string(body),
		},
	}
	if err := s.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append report %s to stream %s: %w", doc.ID, s.stream, err)
	}
	return nil
}

// Close closes the client opened by ConnectRedis.
func (s *RedisSink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
