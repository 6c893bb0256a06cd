package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radiusdt/leadflow/internal/adplatform"
	"github.com/radiusdt/leadflow/internal/config"
	"github.com/radiusdt/leadflow/internal/metrics"
	"github.com/radiusdt/leadflow/internal/runstore"
)

// RedisDB is the Redis instance shared by the run ledger and the ad stats
// cache. Both keep their keys under one prefix.
type RedisDB struct {
	Client *redis.Client
	prefix string
	logger *zap.Logger
}

// redisOptions applies the pool size and timeouts; writes share the read timeout.
func redisOptions(cfg config.RedisConfig) *redis.Options {
	poolSize := cfg.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.ReadTimeout,
	}
}

func keyPrefix(cfg config.RedisConfig) string {
	if cfg.KeyPrefix == "" {
		return "leadflow"
	}
	return cfg.KeyPrefix
}

// NewRedisDB connects and pings once within the dial timeout.
func NewRedisDB(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisDB, error) {
	client := redis.NewClient(redisOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout+time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	prefix := keyPrefix(cfg)
	logger.Info("connected to Redis",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("key_prefix", prefix),
	)
	return &RedisDB{Client: client, prefix: prefix, logger: logger}, nil
}

// RunLedger returns the stage run ledger kept for ttl.
func (r *RedisDB) RunLedger(ttl time.Duration) *runstore.RedisStore {
	return runstore.NewRedisStore(r.Client, r.prefix, ttl)
}

// StatsCache wraps next so daily ad stats are cached for ttl.
func (r *RedisDB) StatsCache(next adplatform.Client, ttl time.Duration, m *metrics.Metrics) *adplatform.CachedStatsClient {
	return adplatform.NewCachedStatsClient(next, r.Client, r.prefix, ttl, r.logger, m)
}

func (r *RedisDB) Close() error {
	if r.Client == nil {
		return nil
	}
	r.logger.Info("Redis connection closed")
	return r.Client.Close()
}

// Health pings Redis.
func (r *RedisDB) Health(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
