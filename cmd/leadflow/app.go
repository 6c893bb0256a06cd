package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/radiusdt/leadflow/internal/adplatform"
	"github.com/radiusdt/leadflow/internal/config"
	"github.com/radiusdt/leadflow/internal/database"
	"github.com/radiusdt/leadflow/internal/httpserver"
	"github.com/radiusdt/leadflow/internal/leadflow"
	"github.com/radiusdt/leadflow/internal/metrics"
	"github.com/radiusdt/leadflow/internal/middleware"
	"github.com/radiusdt/leadflow/internal/runstore"
	"github.com/radiusdt/leadflow/internal/storage"
)

// app is the wired service shared by serve and run.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	pipeline *leadflow.Pipeline
	checks   map[string]httpserver.HealthCheck
	closers  []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := middleware.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.NewMetrics("leadflow", registry),
		checks:   make(map[string]httpserver.HealthCheck),
	}

	repos := a.connectStores(ctx)
	rdb := a.connectRedis(ctx)

	var ads adplatform.Client = adplatform.NewRetryingClient(
		adplatform.NewUnconfiguredClient(logger),
		adplatform.RetryConfig{
			MaxAttempts:   cfg.Ads.MaxAttempts,
			BaseDelay:     cfg.Ads.RetryBaseDelay,
			CallTimeout:   cfg.Ads.CallTimeout,
			MutationRPS:   cfg.Ads.MutationRPS,
			MutationBurst: cfg.Ads.MutationBurst,
		},
		logger, a.metrics,
	)

	var runs runstore.Store = runstore.NewMemoryStore()
	if rdb != nil {
		ads = rdb.StatsCache(ads, cfg.Ads.StatsCacheTTL, a.metrics)
		runs = rdb.RunLedger(cfg.Pipeline.RunLedgerTTL)
	}

	t := cfg.Tuning
	loc := cfg.Location()
	auto := cfg.Pipeline.OptimizationEnabled
	a.pipeline = leadflow.NewPipeline(leadflow.PipelineDeps{
		Aggregator: leadflow.NewStatsAggregator(repos, ads, loc, logger, a.metrics),
		Planner: leadflow.NewDemandPlanner(repos,
			leadflow.UtilizationTarget(t.Planning.TargetUtilization, t.Planning.MinTargetLeads),
			t.Orchestration.AssumedCPL, logger, a.metrics),
		Orchestrator:    leadflow.NewBudgetOrchestrator(repos, ads, t.Orchestration, cfg.Pipeline.PlanOptimisticLock, logger, a.metrics),
		Optimizer:       leadflow.NewCampaignOptimizer(ads, repos.Suggestions, t.Optimizer, auto, logger, a.metrics),
		BudgetOptimizer: leadflow.NewBudgetOptimizer(repos, ads, t.BudgetOpt, auto, logger, a.metrics),
		Runs:            runs,
		Location:        loc,
		Logger:          logger,
		Metrics:         a.metrics,
	})

	return a, nil
}

// connectStores returns Postgres-backed repositories, or in-memory ones when
// Postgres is disabled or unreachable. Performance comes from ClickHouse when
// enabled.
func (a *app) connectStores(ctx context.Context) *storage.Repositories {
	repos := storage.NewInMemoryRepositories()

	if a.cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, a.cfg.Database, a.logger)
		if err != nil {
			a.logger.Warn("PostgreSQL not available, using in-memory storage", zap.Error(err))
		} else {
			a.closers = append(a.closers, db.Close)
			a.checks["postgres"] = db.Health
			perf := repos.Performance
			repos = db.Repositories()
			repos.Performance = perf
		}
	}

	if a.cfg.ClickHouse.Enabled {
		ch, err := database.NewClickHouseDB(ctx, a.cfg.ClickHouse, a.logger)
		if err != nil {
			a.logger.Warn("ClickHouse not available, budget optimizer sees no performance data", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { _ = ch.Close() })
			a.checks["clickhouse"] = ch.Health
			repos.Performance = ch.PerformanceRepo()
		}
	}

	return repos
}

func (a *app) connectRedis(ctx context.Context) *database.RedisDB {
	if !a.cfg.Redis.Enabled {
		return nil
	}
	rdb, err := database.NewRedisDB(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		a.logger.Warn("Redis not available, run ledger in memory and stats cache disabled", zap.Error(err))
		return nil
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	a.checks["redis"] = rdb.Health
	return rdb
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
