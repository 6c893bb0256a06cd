package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the leadflow service.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Pipeline   PipelineConfig
	Ads        AdsConfig
	Tuning     *Tuning
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// RedisConfig configures the Redis instance behind the run ledger and the ad stats cache.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key so the instance can be shared.
	KeyPrefix   string
	PoolSize    int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// ClickHouseConfig configures the analytics store holding campaign performance.
type ClickHouseConfig struct {
	Enabled          bool
	Host             string
	Port             int
	Database         string
	User             string
	Password         string
	PerformanceTable string
	DialTimeout      time.Duration
	ReadTimeout      time.Duration
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

// RateLimitConfig limits manual stage triggers on the admin API.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// PipelineConfig controls when stages run and how plan writes are guarded.
type PipelineConfig struct {
	Timezone string
	// DayOffset is added to today's date for scheduled runs; -1 processes yesterday.
	DayOffset          int
	SchedulerEnabled   bool
	AggregateCron      string
	PlanCron           string
	OrchestrateCron    string
	OptimizeCron       string
	OptimizeBudgetCron string // empty = not scheduled
	PlanOptimisticLock bool
	// OptimizationEnabled selects auto-apply over suggestion mode for the optimizers.
	OptimizationEnabled bool
	RunLedgerTTL        time.Duration
}

// AdsConfig configures the ad platform client decorators.
type AdsConfig struct {
	CustomerID     string
	CallTimeout    time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	MutationRPS    float64
	MutationBurst  int
	StatsCacheTTL  time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	tuning, err := LoadTuning(getEnv("LEADFLOW_TUNING_FILE", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("LEADFLOW_HTTP_ADDR", ":8080"),
			Env:             getEnv("LEADFLOW_ENV", "development"),
			ShutdownTimeout: getDurationEnv("LEADFLOW_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolEnv("LEADFLOW_DB_ENABLED", true),
			Host:     getEnv("LEADFLOW_DB_HOST", "localhost"),
			Port:     getIntEnv("LEADFLOW_DB_PORT", 5432),
			User:     getEnv("LEADFLOW_DB_USER", "leadflow"),
			Password: getEnv("LEADFLOW_DB_PASSWORD", "leadflow_secret"),
			DBName:   getEnv("LEADFLOW_DB_NAME", "leadflow"),
			SSLMode:  getEnv("LEADFLOW_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("LEADFLOW_DB_MAX_CONNS", 10),
			MinConns: getIntEnv("LEADFLOW_DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("LEADFLOW_REDIS_ENABLED", true),
			Addr:     getEnv("LEADFLOW_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("LEADFLOW_REDIS_PASSWORD", ""),
			DB:       getIntEnv("LEADFLOW_REDIS_DB", 0),

			KeyPrefix:   getEnv("LEADFLOW_REDIS_KEY_PREFIX", "leadflow"),
			PoolSize:    getIntEnv("LEADFLOW_REDIS_POOL_SIZE", 4),
			DialTimeout: getDurationEnv("LEADFLOW_REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout: getDurationEnv("LEADFLOW_REDIS_READ_TIMEOUT", time.Second),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:          getBoolEnv("LEADFLOW_CLICKHOUSE_ENABLED", false),
			Host:             getEnv("LEADFLOW_CLICKHOUSE_HOST", "localhost"),
			Port:             getIntEnv("LEADFLOW_CLICKHOUSE_PORT", 9000),
			Database:         getEnv("LEADFLOW_CLICKHOUSE_DB", "analytics"),
			User:             getEnv("LEADFLOW_CLICKHOUSE_USER", "default"),
			Password:         getEnv("LEADFLOW_CLICKHOUSE_PASSWORD", ""),
			PerformanceTable: getEnv("LEADFLOW_CLICKHOUSE_PERFORMANCE_TABLE", "google_ads_campaign_performance"),
			DialTimeout:      getDurationEnv("LEADFLOW_CLICKHOUSE_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:      getDurationEnv("LEADFLOW_CLICKHOUSE_READ_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("LEADFLOW_AUTH_ENABLED", false),
			MasterKey: getEnv("LEADFLOW_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("LEADFLOW_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("LEADFLOW_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("LEADFLOW_RATE_LIMIT_RPS", 1),
			Burst:   getIntEnv("LEADFLOW_RATE_LIMIT_BURST", 5),
		},
		Log: LogConfig{
			Level:  getEnv("LEADFLOW_LOG_LEVEL", "info"),
			Format: getEnv("LEADFLOW_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("LEADFLOW_METRICS_ENABLED", true),
			Path:    getEnv("LEADFLOW_METRICS_PATH", "/metrics"),
		},
		Pipeline: PipelineConfig{
			Timezone:            getEnv("LEADFLOW_TIMEZONE", "Europe/Amsterdam"),
			DayOffset:           getIntEnv("LEADFLOW_DAY_OFFSET", -1),
			SchedulerEnabled:    getBoolEnv("LEADFLOW_SCHEDULER_ENABLED", true),
			AggregateCron:       getEnv("LEADFLOW_CRON_AGGREGATE", "0 1 * * *"),
			PlanCron:            getEnv("LEADFLOW_CRON_PLAN", "0 2 * * *"),
			OrchestrateCron:     getEnv("LEADFLOW_CRON_ORCHESTRATE", "0 3 * * *"),
			OptimizeCron:        getEnv("LEADFLOW_CRON_OPTIMIZE", "0 4 * * *"),
			OptimizeBudgetCron:  getEnv("LEADFLOW_CRON_OPTIMIZE_BUDGETS", ""),
			PlanOptimisticLock:  getBoolEnv("LEADFLOW_PLAN_OPTIMISTIC_LOCK", true),
			OptimizationEnabled: getBoolEnv("LEADFLOW_OPTIMIZATION_ENABLED", false),
			RunLedgerTTL:        getDurationEnv("LEADFLOW_RUN_LEDGER_TTL", 7*24*time.Hour),
		},
		Ads: AdsConfig{
			CustomerID:     getEnv("LEADFLOW_ADS_CUSTOMER_ID", ""),
			CallTimeout:    getDurationEnv("LEADFLOW_ADS_CALL_TIMEOUT", 30*time.Second),
			MaxAttempts:    getIntEnv("LEADFLOW_ADS_MAX_ATTEMPTS", 3),
			RetryBaseDelay: getDurationEnv("LEADFLOW_ADS_RETRY_BASE_DELAY", time.Second),
			MutationRPS:    getFloatEnv("LEADFLOW_ADS_MUTATION_RPS", 5),
			MutationBurst:  getIntEnv("LEADFLOW_ADS_MUTATION_BURST", 5),
			StatsCacheTTL:  getDurationEnv("LEADFLOW_ADS_STATS_CACHE_TTL", time.Hour),
		},
		Tuning: tuning,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("LEADFLOW_API_KEY_MASTER is required when auth is enabled")
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return fmt.Errorf("invalid LEADFLOW_TIMEZONE %q: %w", c.Pipeline.Timezone, err)
	}
	if c.Ads.MaxAttempts < 1 {
		return fmt.Errorf("LEADFLOW_ADS_MAX_ATTEMPTS must be at least 1")
	}
	if c.Ads.CallTimeout <= 0 {
		return fmt.Errorf("LEADFLOW_ADS_CALL_TIMEOUT must be positive")
	}
	return nil
}

// Location returns the business time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
