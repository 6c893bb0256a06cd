package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/radiusdt/leadflow/internal/config"
	"github.com/radiusdt/leadflow/internal/leadflow"
	"go.uber.org/zap"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	dates []time.Time
}

func (r *recordingRunner) Run(ctx context.Context, stage string, date time.Time) (*leadflow.StageSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, stage)
	r.dates = append(r.dates, date)
	return &leadflow.StageSummary{Stage: stage}, nil
}

func defaultPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		DayOffset:       -1,
		AggregateCron:   "0 1 * * *",
		PlanCron:        "0 2 * * *",
		OrchestrateCron: "0 3 * * *",
		OptimizeCron:    "0 4 * * *",
	}
}

func TestJobs_SkipsUnscheduledStages(t *testing.T) {
	jobs := Jobs(defaultPipelineConfig())
	if len(jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(jobs))
	}
	want := []string{leadflow.StageAggregate, leadflow.StagePlan, leadflow.StageOrchestrate, leadflow.StageOptimize}
	for i, j := range jobs {
		if j.Stage != want[i] {
			t.Errorf("job %d = %s, want %s", i, j.Stage, want[i])
		}
	}

	cfg := defaultPipelineConfig()
	cfg.OptimizeBudgetCron = "0 5 * * 1"
	if got := len(Jobs(cfg)); got != 5 {
		t.Errorf("expected 5 jobs with budget optimizer scheduled, got %d", got)
	}
}

func TestNew_RejectsInvalidSchedule(t *testing.T) {
	cfg := defaultPipelineConfig()
	cfg.PlanCron = "every day"
	if _, err := New(&recordingRunner{}, cfg, time.UTC, zap.NewNop()); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestRunDate(t *testing.T) {
	ams, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s, err := New(&recordingRunner{}, defaultPipelineConfig(), ams, zap.NewNop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	// 23:30 UTC on 1 May is 01:30 on 2 May in Amsterdam; yesterday is 1 May.
	got := s.RunDate(time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC))
	if got.Format("2006-01-02") != "2024-05-01" || got.Location() != ams {
		t.Errorf("RunDate = %v, want 2024-05-01 in Amsterdam", got)
	}
}

func TestFire_PassesRunDate(t *testing.T) {
	runner := &recordingRunner{}
	s, err := New(runner, defaultPipelineConfig(), time.UTC, zap.NewNop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC) }

	s.fire(leadflow.StageOrchestrate)

	if len(runner.calls) != 1 || runner.calls[0] != leadflow.StageOrchestrate {
		t.Fatalf("unexpected calls: %v", runner.calls)
	}
	if got := runner.dates[0].Format("2006-01-02"); got != "2024-05-01" {
		t.Errorf("date = %s, want 2024-05-01", got)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop error: %v", err)
	}
}
