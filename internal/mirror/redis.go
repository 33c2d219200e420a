package mirror

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/errors"
	"github.com/grind-ai/grind/internal/memory"
)

// XAdder is the slice of the redis client the stream sink needs.
type XAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStream appends each exchange to a capped Redis stream.
type RedisStream struct {
	rdb    XAdder
	stream string
	maxLen int64
}

// NewRedisClient connects to the configured server.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisStream creates a stream sink on rdb.
func NewRedisStream(rdb XAdder, cfg config.RedisConfig) *RedisStream {
	return &RedisStream{
		rdb:    rdb,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
	}
}

// Mirror adds one entry with the record fields.
func (r *RedisStream) Mirror(ctx context.Context, rec memory.Record) error {
	err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: r.maxLen > 0,
		Values: map[string]interface{}{
			"id":        rec.ID,
			"input":     rec.Input,
			"response":  rec.Response,
			"timestamp": rec.Timestamp,
		},
	}).Err()
	if err != nil {
		return errors.NewBuilder(errors.CodeMirrorFailed, "redis xadd failed").
			Temporary().
			Wrap(err).
			WithContext("stream", r.stream).
			Build()
	}
	return nil
}

// Name implements Sink.
func (r *RedisStream) Name() string {
	return "redis"
}
