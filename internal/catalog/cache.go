package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gameshelf/apiserver/types"
	"github.com/redis/go-redis/v9"
)

// CacheRecorder counts cache outcomes for the metrics endpoint.
// Satisfied by *metrics.Collector.
type CacheRecorder interface {
	RecordCatalogCacheHit()
	RecordCatalogCacheMiss()
}

// CachedSource wraps a Source with a redis response cache. Cache failures
// fall through to the upstream; the proxy never fails because redis did.
type CachedSource struct {
	inner   Source
	rdb     *redis.Client
	ttl     time.Duration
	metrics CacheRecorder
	log     *slog.Logger
}

// NewCachedSource wraps inner with a redis cache using the given TTL.
func NewCachedSource(inner Source, rdb *redis.Client, ttl time.Duration, metrics CacheRecorder, log *slog.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedSource{inner: inner, rdb: rdb, ttl: ttl, metrics: metrics, log: log}
}

func (c *CachedSource) fetch(ctx context.Context, key string, out any, load func() (any, error)) error {
	cached, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		if unmarshalErr := json.Unmarshal(cached, out); unmarshalErr == nil {
			if c.metrics != nil {
				c.metrics.RecordCatalogCacheHit()
			}
			return nil
		}
	} else if err != redis.Nil {
		c.log.Warn("catalog cache read failed", "key", key, "error", err)
	}

	if c.metrics != nil {
		c.metrics.RecordCatalogCacheMiss()
	}

	value, err := load()
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", "key", key, "error", err)
	}
	return nil
}

func (c *CachedSource) SearchGames(ctx context.Context, query string, limit int) ([]types.Game, error) {
	key := fmt.Sprintf("catalog:search:%s:%d", strings.ToLower(strings.TrimSpace(query)), limit)
	var games []types.Game
	err := c.fetch(ctx, key, &games, func() (any, error) {
		return c.inner.SearchGames(ctx, query, limit)
	})
	if err != nil {
		return nil, err
	}
	return games, nil
}

func (c *CachedSource) GetGame(ctx context.Context, id int) (types.Game, error) {
	key := fmt.Sprintf("catalog:game:%d", id)
	var game types.Game
	err := c.fetch(ctx, key, &game, func() (any, error) {
		return c.inner.GetGame(ctx, id)
	})
	if err != nil {
		return types.Game{}, err
	}
	return game, nil
}
