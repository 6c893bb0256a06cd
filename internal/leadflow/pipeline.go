package leadflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/radiusdt/leadflow/internal/metrics"
	"github.com/radiusdt/leadflow/internal/models"
	"github.com/radiusdt/leadflow/internal/runstore"
	"go.uber.org/zap"
)

var (
	// ErrStageRunning is returned when a stage is started while it is already running.
	ErrStageRunning = errors.New("stage is already running")
	// ErrUnknownStage is returned for a stage name outside Stages.
	ErrUnknownStage = errors.New("unknown stage")
)

// Pipeline exposes the stage entrypoints used by the scheduler, the CLI and
// the admin API.
type Pipeline struct {
	aggregator      *StatsAggregator
	planner         *DemandPlanner
	orchestrator    *BudgetOrchestrator
	optimizer       *CampaignOptimizer
	budgetOptimizer *BudgetOptimizer
	runs            runstore.Store
	loc             *time.Location
	logger          *zap.Logger
	metrics         *metrics.Metrics
	now             func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// PipelineDeps are the collaborators of a Pipeline. Runs and Metrics may be nil.
type PipelineDeps struct {
	Aggregator      *StatsAggregator
	Planner         *DemandPlanner
	Orchestrator    *BudgetOrchestrator
	Optimizer       *CampaignOptimizer
	BudgetOptimizer *BudgetOptimizer
	Runs            runstore.Store
	Location        *time.Location
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
}

func NewPipeline(d PipelineDeps) *Pipeline {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		aggregator:      d.Aggregator,
		planner:         d.Planner,
		orchestrator:    d.Orchestrator,
		optimizer:       d.Optimizer,
		budgetOptimizer: d.BudgetOptimizer,
		runs:            d.Runs,
		loc:             loc,
		logger:          logger,
		metrics:         d.Metrics,
		now:             time.Now,
		running:         make(map[string]bool),
	}
}

// Location is the business time zone dates are resolved in.
func (p *Pipeline) Location() *time.Location {
	return p.loc
}

// ResolveDate formats date as YYYY-MM-DD in the business time zone. A zero
// date means today.
func (p *Pipeline) ResolveDate(date time.Time) string {
	if date.IsZero() {
		date = p.now()
	}
	return date.In(p.loc).Format(models.DateLayout)
}

// ParseDate parses YYYY-MM-DD in the business time zone. An empty string
// yields the zero time.
func (p *Pipeline) ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(models.DateLayout, s, p.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

func (p *Pipeline) RunAggregate(ctx context.Context, date time.Time) (*StageSummary, error) {
	return p.Run(ctx, StageAggregate, date)
}

func (p *Pipeline) RunPlan(ctx context.Context, date time.Time) (*StageSummary, error) {
	return p.Run(ctx, StagePlan, date)
}

func (p *Pipeline) RunOrchestrate(ctx context.Context, date time.Time) (*StageSummary, error) {
	return p.Run(ctx, StageOrchestrate, date)
}

// RunOptimize optimizes the enabled campaigns over the trailing window
// ending now. date only keys the run ledger.
func (p *Pipeline) RunOptimize(ctx context.Context, date time.Time) (*StageSummary, error) {
	return p.Run(ctx, StageOptimize, date)
}

func (p *Pipeline) RunOptimizeBudgets(ctx context.Context, date time.Time) (*StageSummary, error) {
	return p.Run(ctx, StageOptimizeBudgets, date)
}

// Run executes one stage for date. A stage already running in this process
// is rejected with ErrStageRunning.
func (p *Pipeline) Run(ctx context.Context, stage string, date time.Time) (*StageSummary, error) {
	exec, err := p.stageFunc(stage)
	if err != nil {
		return nil, err
	}
	if !p.acquire(stage) {
		return nil, fmt.Errorf("%s: %w", stage, ErrStageRunning)
	}
	defer p.release(stage)

	day := p.ResolveDate(date)
	started := p.now()
	logger := p.logger.With(zap.String("stage", stage), zap.String("date", day))
	logger.Info("stage started")

	rec := &runstore.Record{
		Stage:     stage,
		Date:      day,
		Status:    runstore.StatusRunning,
		StartedAt: started.UTC(),
	}
	p.saveRun(ctx, rec, logger)

	summary, err := exec(ctx, day)
	elapsed := p.now().Sub(started)

	rec.FinishedAt = p.now().UTC()
	if err != nil {
		rec.Status = runstore.StatusFailed
		rec.Error = err.Error()
		p.saveRun(ctx, rec, logger)
		if p.metrics != nil {
			p.metrics.RecordStage(stage, runstore.StatusFailed, elapsed)
		}
		logger.Error("stage failed", zap.Duration("duration", elapsed), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	rec.Status = runstore.StatusSucceeded
	rec.Succeeded = summary.Succeeded
	rec.Failed = summary.Failed
	rec.Total = summary.Total
	if b, err := json.Marshal(summary); err == nil {
		rec.Summary = b
	}
	p.saveRun(ctx, rec, logger)
	if p.metrics != nil {
		p.metrics.RecordStage(stage, runstore.StatusSucceeded, elapsed)
	}

	logger.Info("stage finished",
		zap.Duration("duration", elapsed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// LastRun returns the ledger record of stage for date, nil when none exists
// or no ledger is configured.
func (p *Pipeline) LastRun(ctx context.Context, stage, date string) (*runstore.Record, error) {
	if _, err := p.stageFunc(stage); err != nil {
		return nil, err
	}
	if p.runs == nil {
		return nil, nil
	}
	return p.runs.Get(ctx, stage, date)
}

func (p *Pipeline) stageFunc(stage string) (func(context.Context, string) (*StageSummary, error), error) {
	switch stage {
	case StageAggregate:
		return p.aggregator.AggregateAll, nil
	case StagePlan:
		return p.planner.PlanAll, nil
	case StageOrchestrate:
		return p.orchestrator.OrchestrateAll, nil
	case StageOptimize:
		return func(ctx context.Context, _ string) (*StageSummary, error) {
			return p.optimizer.OptimizeAll(ctx)
		}, nil
	case StageOptimizeBudgets:
		return func(ctx context.Context, _ string) (*StageSummary, error) {
			return p.budgetOptimizer.OptimizeBudgets(ctx)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
}

func (p *Pipeline) acquire(stage string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running[stage] {
		return false
	}
	p.running[stage] = true
	return true
}

func (p *Pipeline) release(stage string) {
	p.mu.Lock()
	delete(p.running, stage)
	p.mu.Unlock()
}

// saveRun writes the ledger record. Ledger failures never fail a stage.
func (p *Pipeline) saveRun(ctx context.Context, rec *runstore.Record, logger *zap.Logger) {
	if p.runs == nil {
		return
	}
	if err := p.runs.Save(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("failed to record stage run", zap.String("status", rec.Status), zap.Error(err))
	}
}
