package leadflow

import (
	"context"
	"fmt"
	"time"

	"github.com/radiusdt/leadflow/internal/adplatform"
	"github.com/radiusdt/leadflow/internal/metrics"
	"github.com/radiusdt/leadflow/internal/models"
	"github.com/radiusdt/leadflow/internal/money"
	"github.com/radiusdt/leadflow/internal/storage"
	"go.uber.org/zap"
)

// StatsAggregator builds one DailyStats row per segment and date from the
// lead table, the ad platform and partner capacity.
type StatsAggregator struct {
	segments storage.SegmentRepo
	leads    storage.LeadRepo
	capacity storage.CapacityRepo
	stats    storage.StatsRepo
	ads      adplatform.Client
	loc      *time.Location
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewStatsAggregator creates an aggregator. Metrics may be nil.
func NewStatsAggregator(repos *storage.Repositories, ads adplatform.Client, loc *time.Location, logger *zap.Logger, m *metrics.Metrics) *StatsAggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsAggregator{
		segments: repos.Segments,
		leads:    repos.Leads,
		capacity: repos.Capacity,
		stats:    repos.Stats,
		ads:      ads,
		loc:      loc,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// dayWindow returns [date 00:00:00, date 23:59:59) in loc.
func dayWindow(date string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(models.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, loc)
	return day, end, nil
}

// Aggregate computes and upserts the stats of one segment for date.
// Ad platform and capacity failures degrade to zeros.
func (a *StatsAggregator) Aggregate(ctx context.Context, segment *models.Segment, date string) (*models.DailyStats, error) {
	from, to, err := dayWindow(date, a.loc)
	if err != nil {
		return nil, err
	}

	leads, err := a.leads.ListBySegment(ctx, segment.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}

	stats := &models.DailyStats{
		SegmentID:      segment.ID,
		Date:           date,
		LeadsGenerated: len(leads),
	}

	var priced int
	var revenue float64
	for _, l := range leads {
		switch {
		case l.Status == models.LeadStatusAccepted:
			stats.LeadsAccepted++
			if l.PriceAtPurchase != nil {
				priced++
				revenue += *l.PriceAtPurchase
			}
		case l.Status == models.LeadStatusRejected:
			stats.LeadsRejected++
		case l.IsPending():
			stats.LeadsPending++
		}
		if l.AssignedTo != nil {
			stats.PartnerLeads++
		}
	}
	stats.TotalRevenue = money.Round2(revenue)
	if priced > 0 {
		avg := money.Round2(revenue / float64(priced))
		stats.AvgCPL = &avg
	}

	adStats, err := a.ads.GetCampaignStats(ctx, segment.Code, date)
	if err != nil {
		a.logger.Warn("ad stats unavailable, using zeros",
			zap.String("segment_id", segment.ID),
			zap.String("segment_code", segment.Code),
			zap.String("date", date),
			zap.Error(err),
		)
	} else {
		stats.AdSpend = money.Round2(adStats.Spend)
		stats.AdClicks = adStats.Clicks
		stats.AdImpressions = adStats.Impressions
	}

	capacity, err := a.capacity.GetSegmentCapacity(ctx, segment.ID)
	if err != nil {
		a.logger.Warn("capacity unavailable, using zeros",
			zap.String("segment_id", segment.ID),
			zap.Error(err),
		)
	} else if capacity != nil {
		stats.CapacityPartners = capacity.CapacityPartners
		stats.CapacityTotalLeads = capacity.CapacityTotalLeads
	}

	stats.UpdatedAt = a.now().UTC()
	if err := a.stats.UpsertDailyStats(ctx, stats); err != nil {
		return nil, fmt.Errorf("save stats: %w", err)
	}
	return stats, nil
}

// AggregateAll aggregates every active segment. Per-segment failures are
// captured in the summary; failing to list segments aborts the stage.
func (a *StatsAggregator) AggregateAll(ctx context.Context, date string) (*StageSummary, error) {
	summary := newSummary(StageAggregate, date, a.now())

	segments, err := a.segments.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active segments: %w", err)
	}
	if len(segments) == 0 {
		summary.Message = "No active segments to aggregate"
	}

	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := ItemResult{SegmentID: seg.ID, Success: true}
		if _, err := a.Aggregate(ctx, seg, date); err != nil {
			a.logger.Error("aggregation failed",
				zap.String("segment_id", seg.ID),
				zap.String("date", date),
				zap.Error(err),
			)
			res.Success = false
			res.Error = err.Error()
		}
		if a.metrics != nil {
			a.metrics.RecordStageItem(StageAggregate, res.Success)
		}
		summary.add(res)
	}

	a.logger.Info("aggregation completed",
		zap.String("date", date),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("total", summary.Total),
	)
	return summary.finish(a.now()), nil
}
