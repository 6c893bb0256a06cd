package storage

import (
	"context"
	"errors"
	"time"

	"github.com/radiusdt/leadflow/internal/models"
)

// ErrPlanConflict is returned when a conditional plan write finds a newer version.
var ErrPlanConflict = errors.New("plan was modified concurrently")

// AnyVersion disables the optimistic version check on a plan status write.
const AnyVersion int64 = -1

// =============================================
// SEGMENT REPOSITORY
// =============================================

// SegmentRepo reads market segments. Segments are owned by admin tooling.
type SegmentRepo interface {
	// ListActive returns active segments ordered by branch, region.
	ListActive(ctx context.Context) ([]*models.Segment, error)
	// GetActive returns the segment only when it exists and is active, else nil.
	GetActive(ctx context.Context, id string) (*models.Segment, error)
	// ListWithCampaign returns active segments linked to an ad campaign.
	ListWithCampaign(ctx context.Context) ([]*models.Segment, error)
}

// =============================================
// LEAD / CAPACITY READS
// =============================================

// LeadRepo reads the SaaS lead table.
type LeadRepo interface {
	// ListBySegment returns leads with from <= created_at < to.
	ListBySegment(ctx context.Context, segmentID string, from, to time.Time) ([]*models.Lead, error)
	// CountByCampaign counts leads attributed to each campaign since the given time.
	CountByCampaign(ctx context.Context, campaignIDs []string, since time.Time) (map[string]int, error)
}

// CapacityRepo reads partner capacity per segment.
type CapacityRepo interface {
	// GetSegmentCapacity returns nil when no capacity row exists.
	GetSegmentCapacity(ctx context.Context, segmentID string) (*models.Capacity, error)
}

// =============================================
// STATS REPOSITORY
// =============================================

// StatsRepo stores one DailyStats row per (segment, date).
type StatsRepo interface {
	UpsertDailyStats(ctx context.Context, s *models.DailyStats) error
	// GetDailyStats returns nil when the row does not exist.
	GetDailyStats(ctx context.Context, segmentID, date string) (*models.DailyStats, error)
}

// =============================================
// PLAN REPOSITORY
// =============================================

// PlanRepo stores one Plan row per (segment, date).
type PlanRepo interface {
	// GetPlan returns nil when no plan exists.
	GetPlan(ctx context.Context, segmentID, date string) (*models.Plan, error)
	// ListPlansWithGap returns the plans of a date whose gap has been computed.
	ListPlansWithGap(ctx context.Context, date string) ([]*models.Plan, error)
	// UpsertPlan inserts a pending plan or rewrites the demand fields of an
	// existing one, leaving orchestration fields intact. Returns the stored row.
	UpsertPlan(ctx context.Context, p *models.Plan) (*models.Plan, error)
	// LatestActualBudget returns the actual budget of the segment's most recent
	// plan dated before the given date, or 0.
	LatestActualBudget(ctx context.Context, segmentID, before string) (float64, error)
	// UpdatePlanStatus applies a status transition when the stored version equals
	// expectedVersion (or expectedVersion is AnyVersion) and returns the new version.
	UpdatePlanStatus(ctx context.Context, planID string, expectedVersion int64, u models.PlanStatusUpdate) (int64, error)
	// MarkPlanError unconditionally marks the (segment, date) plan as errored.
	MarkPlanError(ctx context.Context, segmentID, date, notes string) error
}

// =============================================
// AUDIT / SUGGESTIONS
// =============================================

// OrchestrationLogRepo is the append-only audit trail of budget adjustments.
type OrchestrationLogRepo interface {
	AppendOrchestrationLog(ctx context.Context, e *models.OrchestrationLogEntry) error
	ListOrchestrationLog(ctx context.Context, segmentID, date string) ([]*models.OrchestrationLogEntry, error)
}

// SuggestionRepo is the append-only store of unapplied optimizer suggestions.
type SuggestionRepo interface {
	AppendSuggestion(ctx context.Context, s *models.OptimizationSuggestion) error
	ListSuggestions(ctx context.Context, campaignID string) ([]*models.OptimizationSuggestion, error)
}

// =============================================
// PERFORMANCE (ANALYTICS)
// =============================================

// PerformanceRepo reads imported campaign performance.
type PerformanceRepo interface {
	// CampaignTotals sums performance per campaign for dates on or after from.
	CampaignTotals(ctx context.Context, campaignIDs []string, from time.Time) (map[string]models.PerformanceTotals, error)
}

// Repositories bundles every store the pipeline touches.
type Repositories struct {
	Segments         SegmentRepo
	Leads            LeadRepo
	Capacity         CapacityRepo
	Stats            StatsRepo
	Plans            PlanRepo
	OrchestrationLog OrchestrationLogRepo
	Suggestions      SuggestionRepo
	Performance      PerformanceRepo
}
