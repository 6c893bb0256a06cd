package database

import (
	"testing"
	"time"

	"github.com/radiusdt/leadflow/internal/config"
)

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RedisConfig
		wantPool int
	}{
		{"configured pool", config.RedisConfig{Addr: "redis:6379", PoolSize: 4, DialTimeout: 2 * time.Second, ReadTimeout: time.Second}, 4},
		{"pool floor", config.RedisConfig{Addr: "redis:6379", PoolSize: 0, ReadTimeout: time.Second}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := redisOptions(tt.cfg)
			if opts.Addr != tt.cfg.Addr || opts.PoolSize != tt.wantPool {
				t.Errorf("unexpected options: addr=%s pool=%d", opts.Addr, opts.PoolSize)
			}
			if opts.ReadTimeout != tt.cfg.ReadTimeout || opts.WriteTimeout != tt.cfg.ReadTimeout {
				t.Errorf("timeouts = %v/%v, want %v", opts.ReadTimeout, opts.WriteTimeout, tt.cfg.ReadTimeout)
			}
		})
	}
}

func TestKeyPrefix(t *testing.T) {
	if got := keyPrefix(config.RedisConfig{}); got != "leadflow" {
		t.Errorf("default prefix = %q", got)
	}
	if got := keyPrefix(config.RedisConfig{KeyPrefix: "lf-staging"}); got != "lf-staging" {
		t.Errorf("prefix = %q", got)
	}
}
