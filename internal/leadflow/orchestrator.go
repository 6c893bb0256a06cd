package leadflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/radiusdt/leadflow/internal/adplatform"
	"github.com/radiusdt/leadflow/internal/config"
	"github.com/radiusdt/leadflow/internal/metrics"
	"github.com/radiusdt/leadflow/internal/models"
	"github.com/radiusdt/leadflow/internal/money"
	"github.com/radiusdt/leadflow/internal/storage"
	"go.uber.org/zap"
)

// Orchestration messages.
const (
	MsgNoPlan          = "No plan found"
	MsgNoGap           = "No gap to address"
	MsgTooSmall        = "Budget adjustment too small to apply"
	MsgBudgetAdjusted  = "Budget adjusted successfully"
	MsgSegmentInactive = "segment not active"
	MsgNoCampaign      = "segment has no ad campaign"
)

// OrchestrationResult is the outcome of one segment's budget adjustment.
type OrchestrationResult struct {
	SegmentID string  `json:"segment_id"`
	Date      string  `json:"date"`
	Success   bool    `json:"success"`
	Message   string  `json:"message,omitempty"`
	Error     string  `json:"error,omitempty"`
	OldBudget float64 `json:"old_budget,omitempty"`
	NewBudget float64 `json:"new_budget,omitempty"`
}

// BudgetOrchestrator moves a segment's campaign budget toward its lead gap.
type BudgetOrchestrator struct {
	segments       storage.SegmentRepo
	plans          storage.PlanRepo
	log            storage.OrchestrationLogRepo
	ads            adplatform.Client
	tuning         config.OrchestrationTuning
	optimisticLock bool
	logger         *zap.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

// NewBudgetOrchestrator creates an orchestrator. With optimisticLock set,
// plan status writes fail with storage.ErrPlanConflict when another writer
// touched the plan in between. Metrics may be nil.
func NewBudgetOrchestrator(repos *storage.Repositories, ads adplatform.Client, tuning config.OrchestrationTuning, optimisticLock bool, logger *zap.Logger, m *metrics.Metrics) *BudgetOrchestrator {
	return &BudgetOrchestrator{
		segments:       repos.Segments,
		plans:          repos.Plans,
		log:            repos.OrchestrationLog,
		ads:            ads,
		tuning:         tuning,
		optimisticLock: optimisticLock,
		logger:         logger,
		metrics:        m,
		now:            time.Now,
	}
}

// ApplySafetyLimits caps the move from current to proposed at
// MaxDailyBudgetChange*current, clamps to [MinBudget, MaxBudget] and rounds
// to cents.
func ApplySafetyLimits(proposed, current float64, t config.OrchestrationTuning) float64 {
	maxChange := current * t.MaxDailyBudgetChange
	change := proposed - current
	if math.Abs(change) > maxChange {
		if change > 0 {
			proposed = current + maxChange
		} else {
			proposed = current - maxChange
		}
	}
	proposed = math.Max(t.MinBudget, math.Min(t.MaxBudget, proposed))
	return money.Round2(proposed)
}

// BudgetDelta converts a lead gap into a budget change in EUR.
func BudgetDelta(gap int, assumedCPL float64) float64 {
	return float64(gap) * assumedCPL
}

// Orchestrate adjusts the budget of segmentID for date. A missing plan is a
// no-op result; unexpected errors mark the plan as errored and are returned.
func (o *BudgetOrchestrator) Orchestrate(ctx context.Context, segmentID, date string) (*OrchestrationResult, error) {
	res, err := o.orchestrate(ctx, segmentID, date)
	if err != nil {
		if errors.Is(err, storage.ErrPlanConflict) && o.metrics != nil {
			o.metrics.RecordPlanConflict()
		}
		o.logger.Error("orchestration failed",
			zap.String("segment_id", segmentID),
			zap.String("date", date),
			zap.Error(err),
		)
		if markErr := o.plans.MarkPlanError(ctx, segmentID, date, err.Error()); markErr != nil {
			o.logger.Error("failed to mark plan error",
				zap.String("segment_id", segmentID),
				zap.String("date", date),
				zap.Error(markErr),
			)
		}
		return nil, err
	}
	return res, nil
}

func (o *BudgetOrchestrator) orchestrate(ctx context.Context, segmentID, date string) (*OrchestrationResult, error) {
	res := &OrchestrationResult{SegmentID: segmentID, Date: date}

	plan, err := o.plans.GetPlan(ctx, segmentID, date)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if plan == nil {
		o.logger.Info("no plan found", zap.String("segment_id", segmentID), zap.String("date", date))
		res.Message = MsgNoPlan
		return res, nil
	}
	if plan.LeadGap == 0 {
		res.Success = true
		res.Message = MsgNoGap
		return res, nil
	}

	expected := storage.AnyVersion
	if o.optimisticLock {
		expected = plan.Version
	}
	started := o.now().UTC()
	version, err := o.plans.UpdatePlanStatus(ctx, plan.ID, expected, models.PlanStatusUpdate{
		Status:              models.OrchestrationProcessing,
		Notes:               plan.OrchestrationNotes,
		LastOrchestrationAt: &started,
	})
	if err != nil {
		return nil, fmt.Errorf("mark plan processing: %w", err)
	}
	if !o.optimisticLock {
		version = storage.AnyVersion
	}

	delta := BudgetDelta(plan.LeadGap, o.tuning.AssumedCPL)
	if math.Abs(delta) < o.tuning.MinDelta {
		if _, err := o.plans.UpdatePlanStatus(ctx, plan.ID, version, models.PlanStatusUpdate{
			Status: models.OrchestrationCompleted,
			Notes:  MsgTooSmall,
		}); err != nil {
			return nil, fmt.Errorf("complete plan: %w", err)
		}
		res.Success = true
		res.Message = MsgTooSmall
		return res, nil
	}

	current := plan.CurrentBudget()
	newBudget := ApplySafetyLimits(current+delta, current, o.tuning)
	res.OldBudget = current
	res.NewBudget = newBudget

	action := models.ActionBudgetIncrease
	if delta < 0 {
		action = models.ActionBudgetDecrease
	}

	failure, err := o.applyBudget(ctx, segmentID, newBudget)
	if err != nil {
		return nil, err
	}

	entry := &models.OrchestrationLogEntry{
		SegmentID:  segmentID,
		PlanID:     plan.ID,
		Date:       date,
		Channel:    models.ChannelGoogleAds,
		ActionType: action,
		OldValue:   current,
		NewValue:   newBudget,
		Status:     models.ActionSuccess,
		ExecutedAt: o.now().UTC(),
	}
	if failure != "" {
		entry.Status = models.ActionFailed
		entry.ErrorMessage = failure
	}
	if err := o.log.AppendOrchestrationLog(ctx, entry); err != nil {
		o.logger.Error("failed to write orchestration log",
			zap.String("segment_id", segmentID),
			zap.String("plan_id", plan.ID),
			zap.Error(err),
		)
	}
	if o.metrics != nil {
		o.metrics.RecordBudgetChange(string(action), failure == "", newBudget-current)
	}

	finished := o.now().UTC()
	update := models.PlanStatusUpdate{
		Status:              models.OrchestrationCompleted,
		Notes:               MsgBudgetAdjusted,
		LastOrchestrationAt: &finished,
	}
	if failure != "" {
		update.Status = models.OrchestrationError
		update.Notes = failure
	} else {
		update.ActualDailyBudget = &newBudget
	}
	if _, err := o.plans.UpdatePlanStatus(ctx, plan.ID, version, update); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}

	if failure != "" {
		res.Error = failure
		o.logger.Warn("budget update failed",
			zap.String("segment_id", segmentID),
			zap.Float64("old_budget", current),
			zap.Float64("new_budget", newBudget),
			zap.String("error", failure),
		)
		return res, nil
	}

	res.Success = true
	res.Message = MsgBudgetAdjusted
	o.logger.Info("budget adjusted",
		zap.String("segment_id", segmentID),
		zap.String("date", date),
		zap.Int("gap", plan.LeadGap),
		zap.Float64("old_budget", current),
		zap.Float64("new_budget", newBudget),
	)
	return res, nil
}

// applyBudget resolves the active segment once and sends the new budget.
// failure is non-empty when the budget was not applied; err is reserved for
// store errors.
func (o *BudgetOrchestrator) applyBudget(ctx context.Context, segmentID string, newBudget float64) (failure string, err error) {
	seg, err := o.segments.GetActive(ctx, segmentID)
	if err != nil {
		return "", fmt.Errorf("get segment: %w", err)
	}
	if seg == nil {
		return MsgSegmentInactive, nil
	}
	if !seg.HasCampaign() {
		return MsgNoCampaign, nil
	}
	if err := o.ads.UpdateCampaignBudget(ctx, seg.CampaignID, newBudget); err != nil {
		return err.Error(), nil
	}
	return "", nil
}

// OrchestrateAll orchestrates every plan of date with per-plan isolation.
func (o *BudgetOrchestrator) OrchestrateAll(ctx context.Context, date string) (*StageSummary, error) {
	summary := newSummary(StageOrchestrate, date, o.now())

	plans, err := o.plans.ListPlansWithGap(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	if len(plans) == 0 {
		summary.Message = "No plans with gaps to orchestrate"
	}

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := ItemResult{SegmentID: plan.SegmentID}
		res, err := o.Orchestrate(ctx, plan.SegmentID, date)
		if err != nil {
			item.Error = err.Error()
		} else {
			item.Success = res.Success
			item.Message = res.Message
			item.Error = res.Error
		}
		if o.metrics != nil {
			o.metrics.RecordStageItem(StageOrchestrate, item.Success)
		}
		summary.add(item)
	}

	o.logger.Info("orchestration completed",
		zap.String("date", date),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("total", summary.Total),
	)
	return summary.finish(o.now()), nil
}
