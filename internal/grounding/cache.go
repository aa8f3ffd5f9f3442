package grounding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"deepresearch/backend/internal/metrics"
	"deepresearch/backend/internal/research"
)

const cacheKeyPrefix = "research:search:"

// Cached serves repeated queries from Redis. Redis failures are logged and
// the inner provider is called as if the cache were absent.
type Cached struct {
	inner  Provider
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewCached(inner Provider, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) Provider {
	if inner == nil || client == nil || ttl <= 0 {
		return inner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) Search(ctx context.Context, query string, count int) ([]research.SearchResult, error) {
	key := cacheKey(c.inner.Name(), query, count)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var results []research.SearchResult
		if decodeErr := json.Unmarshal(raw, &results); decodeErr == nil {
			metrics.RecordSearch(c.inner.Name(), "cache_hit")
			return results, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("search cache read failed", zap.Error(err))
	}

	results, err := c.inner.Search(ctx, query, count)
	if err != nil || len(results) == 0 {
		return results, err
	}

	encoded, err := json.Marshal(results)
	if err == nil {
		if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.Warn("search cache write failed", zap.Error(setErr))
		}
	}
	return results, nil
}

func cacheKey(provider, query string, count int) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(provider + "\x00" + strconv.Itoa(count) + "\x00" + normalized))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
