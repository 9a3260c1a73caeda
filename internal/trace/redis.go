package trace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisTraceKeyPrefix = "trace:"
	redisRecentKey      = "traces:recent"
)

// RedisBackend stores trace JSON under trace:<id> and keeps a sorted set of
// trace ids scored by start time for recency queries. The set is capped to
// maxRecent entries; evicted ids keep their payload until TTL expiry.
type RedisBackend struct {
	client    *redis.Client
	ttl       time.Duration
	maxRecent int64
}

// NewRedisBackend pings the given client and returns a backend on success.
func NewRedisBackend(ctx context.Context, client *redis.Client, ttl time.Duration, maxRecent int) (*RedisBackend, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	if maxRecent <= 0 {
		maxRecent = 1000
	}
	return &RedisBackend{client: client, ttl: ttl, maxRecent: int64(maxRecent)}, nil
}

func (r *RedisBackend) Store(ctx context.Context, t *Trace) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding trace %s: %w", t.TraceID, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisTraceKeyPrefix+t.TraceID, data, r.ttl)
	pipe.ZAdd(ctx, redisRecentKey, redis.Z{
		Score:  float64(t.StartTime.UnixMilli()),
		Member: t.TraceID,
	})
	pipe.ZRemRangeByRank(ctx, redisRecentKey, 0, -(r.maxRecent + 1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing trace %s: %w", t.TraceID, err)
	}
	return nil
}

func (r *RedisBackend) Get(ctx context.Context, traceID string) (*Trace, error) {
	data, err := r.client.Get(ctx, redisTraceKeyPrefix+traceID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching trace %s: %w", traceID, err)
	}
	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding trace %s: %w", traceID, err)
	}
	return &t, nil
}

// Recent walks the recency set newest-first and resolves payloads; ids whose
// payload has expired are skipped.
func (r *RedisBackend) Recent(ctx context.Context, limit int) ([]*Trace, error) {
	if limit <= 0 {
		limit = int(r.maxRecent)
	}
	ids, err := r.client.ZRevRange(ctx, redisRecentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing recent traces: %w", err)
	}
	out := make([]*Trace, 0, len(ids))
	for _, id := range ids {
		t, err := r.Get(ctx, id)
		if err != nil || t == nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
