package leadflow

import (
	"context"
	"errors"
	"testing"

	"github.com/radiusdt/leadflow/internal/config"
	"github.com/radiusdt/leadflow/internal/models"
	"github.com/radiusdt/leadflow/internal/storage"
)

func TestApplySafetyLimits(t *testing.T) {
	tuning := config.OrchestrationTuning{MaxDailyBudgetChange: 0.2, MinBudget: 5, MaxBudget: 1000}

	tests := []struct {
		name              string
		proposed, current float64
		want              float64
	}{
		{"within change limit", 110, 100, 110},
		{"capped increase", 200, 100, 120},
		{"capped decrease", 10, 100, 80},
		{"clamped to min", 0, 5.5, 5},
		{"clamped to max", 1300, 1100, 1000},
		{"zero current goes to min", 100, 0, 5},
		{"rounded to cents", 100.123, 100, 100.12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplySafetyLimits(tt.proposed, tt.current, tuning); got != tt.want {
				t.Errorf("ApplySafetyLimits(%v, %v) = %v, want %v", tt.proposed, tt.current, got, tt.want)
			}
		})
	}
}

func TestOrchestrate_IncreaseScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.segments.UpsertSegment(activeSegment("seg-1", "c-1"))
	e.plans.PutPlan(&models.Plan{SegmentID: "seg-1", Date: "2024-05-01", TargetLeadsPerDay: 10, LeadGap: 4, ActualDailyBudget: 100})

	o := e.orchestrator()
	res, err := o.Orchestrate(ctx, "seg-1", "2024-05-01")
	if err != nil {
		t.Fatalf("Orchestrate error: %v", err)
	}
	if !res.Success || res.Message != MsgBudgetAdjusted {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.OldBudget != 100 || res.NewBudget != 120 {
		t.Errorf("budget %v -> %v, want 100 -> 120", res.OldBudget, res.NewBudget)
	}
	if len(e.ads.budgetCalls) != 1 || e.ads.budgetCalls[0] != (budgetCall{"c-1", 120}) {
		t.Errorf("unexpected budget calls: %+v", e.ads.budgetCalls)
	}

	plan, _ := e.plans.GetPlan(ctx, "seg-1", "2024-05-01")
	if plan.OrchestrationStatus != models.OrchestrationCompleted || plan.ActualDailyBudget != 120 {
		t.Errorf("unexpected plan after orchestration: %+v", plan)
	}
	if plan.LastOrchestrationAt == nil {
		t.Error("LastOrchestrationAt not set")
	}

	entries, _ := e.log.ListOrchestrationLog(ctx, "seg-1", "2024-05-01")
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	got := entries[0]
	if got.ActionType != models.ActionBudgetIncrease || got.Status != models.ActionSuccess || got.OldValue != 100 || got.NewValue != 120 {
		t.Errorf("unexpected log entry: %+v", got)
	}

	// A second run moves from the new actual budget again.
	res, err = o.Orchestrate(ctx, "seg-1", "2024-05-01")
	if err != nil {
		t.Fatalf("second Orchestrate error: %v", err)
	}
	if res.OldBudget != 120 || res.NewBudget != 144 {
		t.Errorf("second run %v -> %v, want 120 -> 144", res.OldBudget, res.NewBudget)
	}
	if e.log.Len() != 2 {
		t.Errorf("expected 2 log entries, got %d", e.log.Len())
	}
}

func TestOrchestrate_Decrease(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.segments.UpsertSegment(activeSegment("seg-1", "c-1"))
	e.plans.PutPlan(&models.Plan{SegmentID: "seg-1", Date: "2024-05-01", LeadGap: -1, ActualDailyBudget: 100})

	res, err := e.orchestrator().Orchestrate(ctx, "seg-1", "2024-05-01")
	if err != nil {
		t.Fatalf("Orchestrate error: %v", err)
	}
	if res.NewBudget != 80 {
		t.Errorf("NewBudget = %v, want 80", res.NewBudget)
	}
	entries, _ := e.log.ListOrchestrationLog(ctx, "seg-1", "2024-05-01")
	if len(entries) != 1 || entries[0].ActionType != models.ActionBudgetDecrease {
		t.Errorf("expected a decrease entry, got %+v", entries)
	}
}

func TestOrchestrate_NoOps(t *testing.T) {
	ctx := context.Background()

	t.Run("no plan", func(t *testing.T) {
		e := newEnv(t)
		res, err := e.orchestrator().Orchestrate(ctx, "seg-1", "2024-05-01")
		if err != nil {
			t.Fatalf("Orchestrate error: %v", err)
		}
		if res.Success || res.Message != MsgNoPlan {
			t.Errorf("unexpected result: %+v", res)
		}
		if len(e.ads.budgetCalls) != 0 || e.log.Len() != 0 {
			t.Error("no plan must not touch the ad platform or the log")
		}
	})

	t.Run("no gap", func(t *testing.T) {
		e := newEnv(t)
		e.segments.UpsertSegment(activeSegment("seg-1", "c-1"))
		e.plans.PutPlan(&models.Plan{SegmentID: "seg-1", Date: "2024-05-01", LeadGap: 0, ActualDailyBudget: 100})
		res, err := e.orchestrator().Orchestrate(ctx, "seg-1", "2024-05-01")
		if err != nil {
			t.Fatalf("Orchestrate error: %v", err)
		}
		if !res.Success || res.Message != MsgNoGap {
			t.Errorf("unexpected result: %+v", res)
		}
		plan, _ := e.plans.GetPlan(ctx, "seg-1", "2024-05-01")
		if plan.OrchestrationStatus != models.OrchestrationPending {
			t.Errorf("plan status = %q, want pending", plan.OrchestrationStatus)
		}
	})

	t.Run("delta too small", func(t *testing.T) {
		e := newEnv(t)
		e.tuning.Orchestration.AssumedCPL = 0.001
		e.segments.UpsertSegment(activeSegment("seg-1", "c-1"))
		e.plans.PutPlan(&models.Plan{SegmentID: "seg-1", Date: "2024-05-01", LeadGap: 1, ActualDailyBudget: 100})
		res, err := e.orchestrator().Orchestrate(ctx, "seg-1", "2024-05-01")
		if err != nil {
			t.Fatalf("Orchestrate error: %v", err)
		}
		if !res.Success || res.Message != MsgTooSmall {
			t.Errorf("unexpected result: %+v", res)
		}
		if len(e.ads.budgetCalls) != 0 || e.log.Len() != 0 {
			t.Error("tiny delta must not touch the ad platform or the log")
		}
		plan, _ := e.plans.GetPlan(ctx, "seg-1", "2024-05-01")
		if plan.OrchestrationStatus != models.OrchestrationCompleted || plan.OrchestrationNotes != MsgTooSmall {
			t.Errorf("unexpected plan: %+v", plan)
		}
	})
}

func TestOrchestrate_SegmentNotApplicable(t *testing.T) {
	tests := []struct {
		name    string
		segment *models.Segment
		adsErr  error
		wantErr string
	}{
		{"inactive segment", &models.Segment{ID: "seg-1", Code: "a", IsActive: false, CampaignID: "c-1"}, nil, MsgSegmentInactive},
		{"missing segment", nil, nil, MsgSegmentInactive},
		{"no campaign", &models.Segment{ID: "seg-1", Code: "a", IsActive: true}, nil, MsgNoCampaign},
		{"ad platform rejects", &models.Segment{ID: "seg-1", Code: "a", IsActive: true, CampaignID: "c-1"}, errors.New("budget too low"), "budget too low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv(t)
			if tt.segment != nil {
				e.segments.UpsertSegment(tt.segment)
			}
			e.ads.budgetErr = tt.adsErr
			e.plans.PutPlan(&models.Plan{SegmentID: "seg-1", Date: "2024-05-01", LeadGap: 4, ActualDailyBudget: 100})

			res, err := e.orchestrator().Orchestrate(ctx, "seg-1", "2024-05-01")
			if err != nil {
				t.Fatalf("Orchestrate error: %v", err)
			}
			if res.Success || res.Error != tt.wantErr {
				t.Errorf("unexpected result: %+v", res)
			}
			if len(e.ads.budgetCalls) != 0 {
				t.Errorf("no budget must be applied, got %+v", e.ads.budgetCalls)
			}

			plan, _ := e.plans.GetPlan(ctx, "seg-1", "2024-05-01")
			if plan.OrchestrationStatus != models.OrchestrationError {
				t.Errorf("plan status = %q, want error", plan.OrchestrationStatus)
			}
			if plan.ActualDailyBudget != 100 {
				t.Errorf("ActualDailyBudget = %v, want unchanged 100", plan.ActualDailyBudget)
			}

			entries, _ := e.log.ListOrchestrationLog(ctx, "seg-1", "2024-05-01")
			if len(entries) != 1 || entries[0].Status != models.ActionFailed || entries[0].ErrorMessage != tt.wantErr {
				t.Errorf("expected one failed log entry, got %+v", entries)
			}
		})
	}
}

// racingPlans rewrites the plan right after it is read, as a concurrent
// planner run would.
type racingPlans struct {
	*storage.InMemoryPlanRepo
}

func (r racingPlans) GetPlan(ctx context.Context, segmentID, date string) (*models.Plan, error) {
	p, err := r.InMemoryPlanRepo.GetPlan(ctx, segmentID, date)
	if err != nil || p == nil {
		return p, err
	}
	if _, err := r.InMemoryPlanRepo.UpsertPlan(ctx, &models.Plan{SegmentID: segmentID, Date: date, LeadGap: p.LeadGap + 1}); err != nil {
		return nil, err
	}
	return p, nil
}

func TestOrchestrate_VersionConflict(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.segments.UpsertSegment(activeSegment("seg-1", "c-1"))
	e.plans.PutPlan(&models.Plan{SegmentID: "seg-1", Date: "2024-05-01", LeadGap: 4, ActualDailyBudget: 100})
	e.repos.Plans = racingPlans{e.plans}

	_, err := e.orchestrator().Orchestrate(ctx, "seg-1", "2024-05-01")
	if !errors.Is(err, storage.ErrPlanConflict) {
		t.Fatalf("expected ErrPlanConflict, got %v", err)
	}
	if len(e.ads.budgetCalls) != 0 {
		t.Errorf("conflicting run must not apply a budget: %+v", e.ads.budgetCalls)
	}
	plan, _ := e.plans.GetPlan(ctx, "seg-1", "2024-05-01")
	if plan.OrchestrationStatus != models.OrchestrationError {
		t.Errorf("plan status = %q, want error", plan.OrchestrationStatus)
	}
}

func TestOrchestrateAll_IsolatesPlans(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.segments.UpsertSegment(activeSegment("seg-1", "c-1"))
	e.segments.UpsertSegment(activeSegment("seg-3", "c-3"))
	// seg-2 has no segment row
	for _, id := range []string{"seg-1", "seg-2", "seg-3"} {
		e.plans.PutPlan(&models.Plan{SegmentID: id, Date: "2024-05-01", LeadGap: 2, ActualDailyBudget: 50})
	}

	summary, err := e.orchestrator().OrchestrateAll(ctx, "2024-05-01")
	if err != nil {
		t.Fatalf("OrchestrateAll error: %v", err)
	}
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(e.ads.budgetCalls) != 2 {
		t.Errorf("expected 2 budget calls, got %+v", e.ads.budgetCalls)
	}
}

// brokenPlans fails plan reads for one segment.
type brokenPlans struct {
	*storage.InMemoryPlanRepo
	segmentID string
}

func (r brokenPlans) GetPlan(ctx context.Context, segmentID, date string) (*models.Plan, error) {
	if segmentID == r.segmentID {
		return nil, errors.New("read timeout")
	}
	return r.InMemoryPlanRepo.GetPlan(ctx, segmentID, date)
}

func TestOrchestrateAll_ContinuesAfterSegmentError(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	for _, id := range []string{"seg-1", "seg-2", "seg-3"} {
		e.segments.UpsertSegment(activeSegment(id, "c-"+id))
		e.plans.PutPlan(&models.Plan{SegmentID: id, Date: "2024-05-01", LeadGap: 2, ActualDailyBudget: 50})
	}
	e.repos.Plans = brokenPlans{e.plans, "seg-2"}

	summary, err := e.orchestrator().OrchestrateAll(ctx, "2024-05-01")
	if err != nil {
		t.Fatalf("OrchestrateAll error: %v", err)
	}
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Success || summary.Error != "1 of 3 items failed" {
		t.Errorf("stage with a failed item must not succeed: success=%v error=%q", summary.Success, summary.Error)
	}
	for _, r := range summary.Results {
		if r.SegmentID == "seg-2" {
			if r.Success || r.Error == "" {
				t.Errorf("seg-2 result = %+v, want failure with error", r)
			}
		} else if !r.Success {
			t.Errorf("%s result = %+v, want success", r.SegmentID, r)
		}
	}
	if len(e.ads.budgetCalls) != 2 {
		t.Errorf("expected 2 budget calls, got %+v", e.ads.budgetCalls)
	}
	plan, _ := e.plans.GetPlan(ctx, "seg-2", "2024-05-01")
	if plan.OrchestrationStatus != models.OrchestrationError {
		t.Errorf("seg-2 plan status = %q, want error", plan.OrchestrationStatus)
	}
}
