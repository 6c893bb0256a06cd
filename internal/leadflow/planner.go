package leadflow

import (
	"context"
	"fmt"
	"time"

	"github.com/radiusdt/leadflow/internal/metrics"
	"github.com/radiusdt/leadflow/internal/models"
	"github.com/radiusdt/leadflow/internal/money"
	"github.com/radiusdt/leadflow/internal/storage"
	"go.uber.org/zap"
)

// DemandPlanner turns capacity and yesterday's output into a lead target and gap.
type DemandPlanner struct {
	segments   storage.SegmentRepo
	stats      storage.StatsRepo
	capacity   storage.CapacityRepo
	plans      storage.PlanRepo
	target     TargetFunc
	assumedCPL float64
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewDemandPlanner creates a planner. assumedCPL prices the target when a
// segment has no TargetCPL of its own. Metrics may be nil.
func NewDemandPlanner(repos *storage.Repositories, target TargetFunc, assumedCPL float64, logger *zap.Logger, m *metrics.Metrics) *DemandPlanner {
	return &DemandPlanner{
		segments:   repos.Segments,
		stats:      repos.Stats,
		capacity:   repos.Capacity,
		plans:      repos.Plans,
		target:     target,
		assumedCPL: assumedCPL,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// GapPercentage is gap/target*100 rounded to 2 decimals, 0 without a target.
func GapPercentage(gap, target int) float64 {
	if target == 0 {
		return 0
	}
	return money.Round2(float64(gap) / float64(target) * 100)
}

// Plan computes and upserts the plan of one segment for date.
func (p *DemandPlanner) Plan(ctx context.Context, segment *models.Segment, date string) (*models.Plan, error) {
	capacity, err := p.capacity.GetSegmentCapacity(ctx, segment.ID)
	if err != nil {
		return nil, fmt.Errorf("get capacity: %w", err)
	}
	if capacity == nil {
		capacity = &models.Capacity{}
	}

	stats, err := p.stats.GetDailyStats(ctx, segment.ID, date)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	actual := 0
	if stats != nil {
		actual = stats.LeadsGenerated
	}

	target := p.target(*capacity)
	gap := target - actual

	cpl := segment.TargetCPL
	if cpl <= 0 {
		cpl = p.assumedCPL
	}

	carried, err := p.plans.LatestActualBudget(ctx, segment.ID, date)
	if err != nil {
		return nil, fmt.Errorf("get previous budget: %w", err)
	}

	plan, err := p.plans.UpsertPlan(ctx, &models.Plan{
		SegmentID:         segment.ID,
		Date:              date,
		TargetLeadsPerDay: target,
		LeadGap:           gap,
		LeadGapPercentage: GapPercentage(gap, target),
		TargetDailyBudget: money.Round2(float64(target) * cpl),
		ActualDailyBudget: carried,
	})
	if err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}

	if p.metrics != nil {
		p.metrics.SetLeadGap(segment.Code, gap)
	}
	p.logger.Debug("segment planned",
		zap.String("segment_id", segment.ID),
		zap.String("date", date),
		zap.Int("target", target),
		zap.Int("actual", actual),
		zap.Int("gap", gap),
	)
	return plan, nil
}

// PlanAll plans every active segment with per-segment isolation.
func (p *DemandPlanner) PlanAll(ctx context.Context, date string) (*StageSummary, error) {
	summary := newSummary(StagePlan, date, p.now())

	segments, err := p.segments.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active segments: %w", err)
	}
	if len(segments) == 0 {
		summary.Message = "No active segments to plan"
	}

	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := ItemResult{SegmentID: seg.ID, Success: true}
		plan, err := p.Plan(ctx, seg, date)
		if err != nil {
			p.logger.Error("planning failed",
				zap.String("segment_id", seg.ID),
				zap.String("date", date),
				zap.Error(err),
			)
			res.Success = false
			res.Error = err.Error()
		} else {
			res.Message = fmt.Sprintf("target %d, gap %d", plan.TargetLeadsPerDay, plan.LeadGap)
		}
		if p.metrics != nil {
			p.metrics.RecordStageItem(StagePlan, res.Success)
		}
		summary.add(res)
	}

	p.logger.Info("demand planning completed",
		zap.String("date", date),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("total", summary.Total),
	)
	return summary.finish(p.now()), nil
}
