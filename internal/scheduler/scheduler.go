// Package scheduler fires the pipeline stages on their daily cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/radiusdt/leadflow/internal/config"
	"github.com/radiusdt/leadflow/internal/leadflow"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner runs one pipeline stage for a date.
type Runner interface {
	Run(ctx context.Context, stage string, date time.Time) (*leadflow.StageSummary, error)
}

// Job is a scheduled stage.
type Job struct {
	Stage    string
	Schedule string
}

// Jobs returns the stage schedule from config. Stages with an empty
// schedule are left out.
func Jobs(cfg config.PipelineConfig) []Job {
	all := []Job{
		{leadflow.StageAggregate, cfg.AggregateCron},
		{leadflow.StagePlan, cfg.PlanCron},
		{leadflow.StageOrchestrate, cfg.OrchestrateCron},
		{leadflow.StageOptimize, cfg.OptimizeCron},
		{leadflow.StageOptimizeBudgets, cfg.OptimizeBudgetCron},
	}
	jobs := make([]Job, 0, len(all))
	for _, j := range all {
		if j.Schedule != "" {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

// Scheduler runs stages in the business time zone. Every firing processes
// today shifted by DayOffset.
type Scheduler struct {
	cron      *cron.Cron
	runner    Runner
	loc       *time.Location
	dayOffset int
	logger    *zap.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(runner Runner, cfg config.PipelineConfig, loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		runner:    runner,
		loc:       loc,
		dayOffset: cfg.DayOffset,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}

	for _, job := range Jobs(cfg) {
		stage := job.Stage
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.fire(stage) }); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid schedule %q for stage %s: %w", job.Schedule, stage, err)
		}
		logger.Info("stage scheduled",
			zap.String("stage", stage),
			zap.String("schedule", job.Schedule),
			zap.String("timezone", loc.String()),
		)
	}
	return s, nil
}

// RunDate is the date a firing at now processes.
func (s *Scheduler) RunDate(now time.Time) time.Time {
	n := now.In(s.loc)
	day := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
	return day.AddDate(0, 0, s.dayOffset)
}

func (s *Scheduler) fire(stage string) {
	date := s.RunDate(s.now())
	if _, err := s.runner.Run(s.ctx, stage, date); err != nil {
		s.logger.Error("scheduled stage failed",
			zap.String("stage", stage),
			zap.Time("date", date),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running stages and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
