package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/radiusdt/leadflow/internal/config"
	"github.com/radiusdt/leadflow/internal/storage"
	"go.uber.org/zap"
)

// ClickHouseDB wraps the analytics connection pool holding imported ad performance.
type ClickHouseDB struct {
	DB     *sql.DB
	table  string
	logger *zap.Logger
}

// NewClickHouseDB opens and pings a ClickHouse connection pool.
func NewClickHouseDB(ctx context.Context, cfg config.ClickHouseConfig, logger *zap.Logger) (*ClickHouseDB, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("clickhouse host is required")
	}

	db, err := sql.Open("clickhouse", clickHouseDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	logger.Info("connected to ClickHouse",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)

	return &ClickHouseDB{DB: db, table: cfg.PerformanceTable, logger: logger}, nil
}

// PerformanceRepo returns the campaign performance reader.
func (c *ClickHouseDB) PerformanceRepo() *storage.ClickHousePerformanceRepo {
	return storage.NewClickHousePerformanceRepo(c.DB, c.table, c.logger)
}

// Close closes the connection pool.
func (c *ClickHouseDB) Close() error {
	if c.DB == nil {
		return nil
	}
	c.logger.Info("ClickHouse connection pool closed")
	return c.DB.Close()
}

// Health checks if ClickHouse is reachable.
func (c *ClickHouseDB) Health(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func clickHouseDSN(cfg config.ClickHouseConfig) string {
	u := url.URL{
		Scheme: "clickhouse",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	if cfg.DialTimeout > 0 {
		q.Set("dial_timeout", cfg.DialTimeout.String())
	}
	if cfg.ReadTimeout > 0 {
		q.Set("read_timeout", cfg.ReadTimeout.String())
	}
	u.RawQuery = q.Encode()
	return u.String()
}
