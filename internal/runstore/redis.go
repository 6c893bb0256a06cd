package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps run records in Redis with an expiry, plus an attempt
// counter per stage and date.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed run ledger. Keys live under prefix.
func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(stage, date string) string {
	return s.prefix + ":run:" + stage + ":" + date
}

func (s *RedisStore) Save(ctx context.Context, r *Record) error {
	k := s.key(r.Stage, r.Date)

	if r.Status == StatusRunning {
		attempts := k + ":attempts"
		n, err := s.client.Incr(ctx, attempts).Result()
		if err != nil {
			return fmt.Errorf("failed to count run attempt: %w", err)
		}
		// Set expiry on first increment
		if n == 1 {
			s.client.Expire(ctx, attempts, s.ttl)
		}
		r.Attempt = int(n)
	}

	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	if err := s.client.Set(ctx, k, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, stage, date string) (*Record, error) {
	b, err := s.client.Get(ctx, s.key(stage, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	return &r, nil
}
