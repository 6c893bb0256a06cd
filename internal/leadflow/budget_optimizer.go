package leadflow

import (
	"context"
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

// BudgetDecision is the CPL rule outcome for one campaign.
type BudgetDecision struct {
	Change    models.ChangeType `json:"change"`
	NewMicros int64             `json:"new_budget_micros,omitempty"`
	CPL       *float64          `json:"cpl,omitempty"`
	Reason    string            `json:"reason"`
}

// BudgetInput is what DecideBudget needs to know about one campaign.
type BudgetInput struct {
	Totals        models.PerformanceTotals
	Leads         int
	CurrentMicros int64
	TargetCPL     float64
	MinBudget     float64
	MaxBudget     float64
}

// DecideBudget compares a campaign's cost per lead with its target and
// proposes a bounded budget step.
func DecideBudget(in BudgetInput, t config.BudgetOptTuning) BudgetDecision {
	if in.Totals.Impressions == 0 || in.Totals.Clicks == 0 {
		return BudgetDecision{Change: models.ChangeNone, Reason: "No activity in the evaluation window"}
	}
	if in.Leads < t.MinLeads {
		return BudgetDecision{
			Change: models.ChangeNone,
			Reason: fmt.Sprintf("Insufficient leads (%d < %d)", in.Leads, t.MinLeads),
		}
	}

	if in.Leads <= 0 {
		return BudgetDecision{Change: models.ChangeNone, Reason: "No leads to price"}
	}
	// Thresholds compare the exact cost per lead; only the reported value is rounded.
	raw := money.Ratio(money.FromMicros(in.Totals.CostMicros), float64(in.Leads))
	rounded := money.Round2(raw)
	cpl := &rounded

	step := int64(math.Round(float64(in.CurrentMicros) * t.MaxChangePct))

	switch {
	case raw < in.TargetCPL*t.LowCPLRatio:
		newMicros := in.CurrentMicros + step
		if newMicros > money.ToMicros(in.MaxBudget) {
			return BudgetDecision{
				Change: models.ChangeNone,
				CPL:    cpl,
				Reason: fmt.Sprintf("CPL €%.2f is low but increase would exceed max budget €%.2f", *cpl, in.MaxBudget),
			}
		}
		return BudgetDecision{
			Change:    models.ChangeBudgetIncrease,
			NewMicros: newMicros,
			CPL:       cpl,
			Reason:    fmt.Sprintf("CPL €%.2f is below target €%.2f", *cpl, in.TargetCPL),
		}
	case raw > in.TargetCPL*t.HighCPLRatio:
		newMicros := in.CurrentMicros - step
		if newMicros < money.ToMicros(in.MinBudget) {
			return BudgetDecision{
				Change: models.ChangeNone,
				CPL:    cpl,
				Reason: fmt.Sprintf("CPL €%.2f is high but decrease would go below min budget €%.2f", *cpl, in.MinBudget),
			}
		}
		return BudgetDecision{
			Change:    models.ChangeBudgetDecrease,
			NewMicros: newMicros,
			CPL:       cpl,
			Reason:    fmt.Sprintf("CPL €%.2f is above target €%.2f", *cpl, in.TargetCPL),
		}
	default:
		return BudgetDecision{
			Change: models.ChangeNone,
			CPL:    cpl,
			Reason: fmt.Sprintf("CPL €%.2f is within acceptable range of target €%.2f", *cpl, in.TargetCPL),
		}
	}
}

// BudgetOptimizer moves campaign budgets by observed cost per lead.
type BudgetOptimizer struct {
	segments    storage.SegmentRepo
	leads       storage.LeadRepo
	performance storage.PerformanceRepo
	suggestions storage.SuggestionRepo
	ads         adplatform.Client
	tuning      config.BudgetOptTuning
	autoApply   bool
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewBudgetOptimizer creates a budget optimizer. With autoApply false every
// proposed change is recorded as a suggestion instead. Metrics may be nil.
func NewBudgetOptimizer(repos *storage.Repositories, ads adplatform.Client, tuning config.BudgetOptTuning, autoApply bool, logger *zap.Logger, m *metrics.Metrics) *BudgetOptimizer {
	return &BudgetOptimizer{
		segments:    repos.Segments,
		leads:       repos.Leads,
		performance: repos.Performance,
		suggestions: repos.Suggestions,
		ads:         ads,
		tuning:      tuning,
		autoApply:   autoApply,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

func (b *BudgetOptimizer) bounds(seg *models.Segment) (target, lo, hi float64) {
	target, lo, hi = seg.TargetCPL, seg.MinDailyBudget, seg.MaxDailyBudget
	if target <= 0 {
		target = b.tuning.DefaultTargetCPL
	}
	if lo <= 0 {
		lo = b.tuning.DefaultMinBudget
	}
	if hi <= 0 {
		hi = b.tuning.DefaultMaxBudget
	}
	return target, lo, hi
}

// OptimizeBudgets evaluates every active segment with a campaign over the
// trailing window and applies or suggests budget changes.
func (b *BudgetOptimizer) OptimizeBudgets(ctx context.Context) (*StageSummary, error) {
	now := b.now()
	autoApply := b.autoApply
	summary := newSummary(StageOptimizeBudgets, now.Format(models.DateLayout), now)
	summary.Mode = modeFor(autoApply)

	segments, err := b.segments.ListWithCampaign(ctx)
	if err != nil {
		return nil, fmt.Errorf("list segments with campaign: %w", err)
	}
	if len(segments) == 0 {
		summary.Message = "No segments with campaigns"
		return summary.finish(b.now()), nil
	}

	ids := make([]string, 0, len(segments))
	for _, s := range segments {
		ids = append(ids, s.CampaignID)
	}
	since := now.AddDate(0, 0, -b.tuning.WindowDays)

	totals, err := b.performance.CampaignTotals(ctx, ids, since)
	if err != nil {
		return nil, fmt.Errorf("campaign performance: %w", err)
	}
	leads, err := b.leads.CountByCampaign(ctx, ids, since)
	if err != nil {
		return nil, fmt.Errorf("count leads: %w", err)
	}
	budgets, err := b.ads.GetCampaignBudgets(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("campaign budgets: %w", err)
	}

	var optimized, suggested int
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := ItemResult{SegmentID: seg.ID, CampaignID: seg.CampaignID, Success: true}

		target, lo, hi := b.bounds(seg)
		current, known := budgets[seg.CampaignID]
		dec := DecideBudget(BudgetInput{
			Totals:        totals[seg.CampaignID],
			Leads:         leads[seg.CampaignID],
			CurrentMicros: current,
			TargetCPL:     target,
			MinBudget:     lo,
			MaxBudget:     hi,
		}, b.tuning)
		item.Message = dec.Reason

		if dec.Change == models.ChangeNone || !known {
			if !known {
				item.Message = "Current budget unknown"
			}
			if b.metrics != nil {
				b.metrics.RecordStageItem(StageOptimizeBudgets, item.Success)
			}
			summary.add(item)
			continue
		}

		if autoApply {
			err := b.ads.UpdateCampaignBudget(ctx, seg.CampaignID, money.FromMicros(dec.NewMicros))
			if b.metrics != nil {
				b.metrics.RecordBudgetChange(string(dec.Change), err == nil, money.FromMicros(dec.NewMicros-current))
			}
			if err != nil {
				b.logger.Error("failed to apply budget change",
					zap.String("segment_id", seg.ID),
					zap.String("campaign_id", seg.CampaignID),
					zap.Error(err),
				)
				item.Success = false
				item.Error = err.Error()
			} else {
				optimized++
			}
		} else {
			s := &models.OptimizationSuggestion{
				SegmentID:             seg.ID,
				CampaignID:            seg.CampaignID,
				SuggestedChangeType:   dec.Change,
				SuggestedBudgetMicros: dec.NewMicros,
				CurrentBudgetMicros:   current,
				Reason:                dec.Reason,
				CPL:                   dec.CPL,
				TargetCPL:             target,
				LeadsCount:            leads[seg.CampaignID],
				CreatedAt:             now.UTC(),
			}
			if err := b.suggestions.AppendSuggestion(ctx, s); err != nil {
				b.logger.Error("failed to record budget suggestion",
					zap.String("segment_id", seg.ID),
					zap.String("campaign_id", seg.CampaignID),
					zap.Error(err),
				)
				item.Success = false
				item.Error = err.Error()
			} else {
				suggested++
				if b.metrics != nil {
					b.metrics.RecordSuggestion(string(dec.Change))
				}
			}
		}
		if b.metrics != nil {
			b.metrics.RecordStageItem(StageOptimizeBudgets, item.Success)
		}
		summary.add(item)
	}

	summary.Message = fmt.Sprintf("%d budgets optimized, %d suggestions", optimized, suggested)
	b.logger.Info("budget optimization completed",
		zap.String("mode", summary.Mode),
		zap.Int("optimized", optimized),
		zap.Int("suggestions", suggested),
		zap.Int("segments", len(segments)),
	)
	return summary.finish(b.now()), nil
}
