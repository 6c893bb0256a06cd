package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radiusdt/leadflow/internal/httpserver"
	"github.com/radiusdt/leadflow/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the stage scheduler and the admin API",
	Long: `Starts the cron scheduler for the daily stages and the admin HTTP API.

The API exposes /health, the Prometheus metrics endpoint and manual stage
triggers under /api/v1. SIGINT or SIGTERM stops the scheduler, cancels
running stages and drains the HTTP server.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger
	logger.Info("starting leadflow",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("timezone", cfg.Pipeline.Timezone),
		zap.Bool("auto_apply", cfg.Pipeline.OptimizationEnabled),
	)

	var sched *scheduler.Scheduler
	if cfg.Pipeline.SchedulerEnabled {
		sched, err = scheduler.New(a.pipeline, cfg.Pipeline, a.pipeline.Location(), logger)
		if err != nil {
			return err
		}
		sched.Start()
	} else {
		logger.Info("scheduler disabled, stages run only on demand")
	}

	handler := httpserver.NewServer(&httpserver.Dependencies{
		Pipeline: a.pipeline,
		Config:   cfg,
		Logger:   logger,
		Metrics:  a.metrics,
		Gatherer: a.registry,
		Checks:   a.checks,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // manual stage runs are synchronous
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		logger.Error("server failed", zap.Error(err))
		return err
	}

	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Error("scheduler did not stop in time", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
