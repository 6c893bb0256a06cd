package adplatform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/radiusdt/leadflow/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedStatsClient caches GetCampaignStats results in Redis. Every other
// call goes straight to the wrapped client.
type CachedStatsClient struct {
	Client
	rdb     redis.Cmdable
	prefix  string
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCachedStatsClient wraps next with a Redis stats cache keyed under
// prefix. Metrics may be nil.
func NewCachedStatsClient(next Client, rdb redis.Cmdable, prefix string, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *CachedStatsClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStatsClient{Client: next, rdb: rdb, prefix: prefix, ttl: ttl, logger: logger, metrics: m}
}

func (c *CachedStatsClient) key(segmentCode, date string) string {
	return fmt.Sprintf("%s:adstats:%s:%s", c.prefix, segmentCode, date)
}

// GetCampaignStats serves from cache when possible. Redis failures fall
// through to the platform.
func (c *CachedStatsClient) GetCampaignStats(ctx context.Context, segmentCode, date string) (DailyStats, error) {
	key := c.key(segmentCode, date)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached DailyStats
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			c.record("hit")
			return cached, nil
		}
		c.record("error")
	case errors.Is(err, redis.Nil):
		c.record("miss")
	default:
		c.record("error")
		c.logger.Warn("ad stats cache read failed", zap.String("key", key), zap.Error(err))
	}

	stats, err := c.Client.GetCampaignStats(ctx, segmentCode, date)
	if err != nil {
		return stats, err
	}

	if b, err := json.Marshal(stats); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.logger.Warn("ad stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return stats, nil
}

func (c *CachedStatsClient) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordStatsCache(result)
	}
}
