package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/leadflow/internal/models"
)

// PostgresStatsRepo implements StatsRepo using PostgreSQL.
type PostgresStatsRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresStatsRepo(pool *pgxpool.Pool) *PostgresStatsRepo {
	return &PostgresStatsRepo{pool: pool}
}

func (r *PostgresStatsRepo) UpsertDailyStats(ctx context.Context, s *models.DailyStats) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_generation_stats (
			segment_id, date, leads_generated, leads_accepted, leads_rejected, leads_pending,
			avg_cpl, total_revenue, google_ads_spend, google_ads_clicks, google_ads_impressions,
			partner_leads, capacity_partners, capacity_total_leads, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (segment_id, date) DO UPDATE SET
			leads_generated = EXCLUDED.leads_generated,
			leads_accepted = EXCLUDED.leads_accepted,
			leads_rejected = EXCLUDED.leads_rejected,
			leads_pending = EXCLUDED.leads_pending,
			avg_cpl = EXCLUDED.avg_cpl,
			total_revenue = EXCLUDED.total_revenue,
			google_ads_spend = EXCLUDED.google_ads_spend,
			google_ads_clicks = EXCLUDED.google_ads_clicks,
			google_ads_impressions = EXCLUDED.google_ads_impressions,
			partner_leads = EXCLUDED.partner_leads,
			capacity_partners = EXCLUDED.capacity_partners,
			capacity_total_leads = EXCLUDED.capacity_total_leads,
			updated_at = EXCLUDED.updated_at
	`, s.SegmentID, s.Date, s.LeadsGenerated, s.LeadsAccepted, s.LeadsRejected, s.LeadsPending,
		s.AvgCPL, s.TotalRevenue, s.AdSpend, s.AdClicks, s.AdImpressions,
		s.PartnerLeads, s.CapacityPartners, s.CapacityTotalLeads, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert daily stats: %w", err)
	}
	return nil
}

func (r *PostgresStatsRepo) GetDailyStats(ctx context.Context, segmentID, date string) (*models.DailyStats, error) {
	var s models.DailyStats
	var day time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT segment_id, date, leads_generated, leads_accepted, leads_rejected, leads_pending,
			   avg_cpl, total_revenue, google_ads_spend, google_ads_clicks, google_ads_impressions,
			   partner_leads, capacity_partners, capacity_total_leads, updated_at
		FROM lead_generation_stats WHERE segment_id = $1 AND date = $2
	`, segmentID, date).Scan(&s.SegmentID, &day, &s.LeadsGenerated, &s.LeadsAccepted, &s.LeadsRejected,
		&s.LeadsPending, &s.AvgCPL, &s.TotalRevenue, &s.AdSpend, &s.AdClicks, &s.AdImpressions,
		&s.PartnerLeads, &s.CapacityPartners, &s.CapacityTotalLeads, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	s.Date = day.Format(models.DateLayout)
	return &s, nil
}

const planColumns = `
	id, segment_id, date, target_leads_per_day, lead_gap, lead_gap_percentage,
	target_daily_budget_google_ads, actual_daily_budget_google_ads,
	orchestration_status, COALESCE(orchestration_notes, ''), last_orchestration_at,
	version, updated_at`

// PostgresPlanRepo implements PlanRepo using PostgreSQL.
type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

func scanPlan(row pgx.Row) (*models.Plan, error) {
	var p models.Plan
	var day time.Time
	if err := row.Scan(&p.ID, &p.SegmentID, &day, &p.TargetLeadsPerDay, &p.LeadGap, &p.LeadGapPercentage,
		&p.TargetDailyBudget, &p.ActualDailyBudget, &p.OrchestrationStatus, &p.OrchestrationNotes,
		&p.LastOrchestrationAt, &p.Version, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Date = day.Format(models.DateLayout)
	return &p, nil
}

func (r *PostgresPlanRepo) GetPlan(ctx context.Context, segmentID, date string) (*models.Plan, error) {
	p, err := scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+`
		FROM lead_segment_plans WHERE segment_id = $1 AND date = $2`, segmentID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

func (r *PostgresPlanRepo) ListPlansWithGap(ctx context.Context, date string) ([]*models.Plan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+`
		FROM lead_segment_plans WHERE date = $1 AND lead_gap IS NOT NULL
		ORDER BY segment_id`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (r *PostgresPlanRepo) UpsertPlan(ctx context.Context, p *models.Plan) (*models.Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	stored, err := scanPlan(r.pool.QueryRow(ctx, `
		INSERT INTO lead_segment_plans (
			id, segment_id, date, target_leads_per_day, lead_gap, lead_gap_percentage,
			target_daily_budget_google_ads, actual_daily_budget_google_ads,
			orchestration_status, version, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', 1, NOW())
		ON CONFLICT (segment_id, date) DO UPDATE SET
			target_leads_per_day = EXCLUDED.target_leads_per_day,
			lead_gap = EXCLUDED.lead_gap,
			lead_gap_percentage = EXCLUDED.lead_gap_percentage,
			target_daily_budget_google_ads = EXCLUDED.target_daily_budget_google_ads,
			version = lead_segment_plans.version + 1,
			updated_at = NOW()
		RETURNING `+planColumns,
		id, p.SegmentID, p.Date, p.TargetLeadsPerDay, p.LeadGap, p.LeadGapPercentage,
		p.TargetDailyBudget, p.ActualDailyBudget))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert plan: %w", err)
	}
	return stored, nil
}

func (r *PostgresPlanRepo) LatestActualBudget(ctx context.Context, segmentID, before string) (float64, error) {
	var budget float64
	err := r.pool.QueryRow(ctx, `
		SELECT actual_daily_budget_google_ads
		FROM lead_segment_plans
		WHERE segment_id = $1 AND date < $2 AND actual_daily_budget_google_ads > 0
		ORDER BY date DESC LIMIT 1
	`, segmentID, before).Scan(&budget)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get latest budget: %w", err)
	}
	return budget, nil
}

func (r *PostgresPlanRepo) UpdatePlanStatus(ctx context.Context, planID string, expectedVersion int64, u models.PlanStatusUpdate) (int64, error) {
	var version int64
	err := r.pool.QueryRow(ctx, `
		UPDATE lead_segment_plans SET
			orchestration_status = $3,
			orchestration_notes = $4,
			actual_daily_budget_google_ads = COALESCE($5, actual_daily_budget_google_ads),
			last_orchestration_at = COALESCE($6, last_orchestration_at),
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND ($2 < 0 OR version = $2)
		RETURNING version
	`, planID, expectedVersion, u.Status, u.Notes, u.ActualDailyBudget, u.LastOrchestrationAt).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrPlanConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update plan status: %w", err)
	}
	return version, nil
}

func (r *PostgresPlanRepo) MarkPlanError(ctx context.Context, segmentID, date, notes string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE lead_segment_plans SET
			orchestration_status = 'error',
			orchestration_notes = $3,
			version = version + 1,
			updated_at = NOW()
		WHERE segment_id = $1 AND date = $2
	`, segmentID, date, notes)
	if err != nil {
		return fmt.Errorf("failed to mark plan error: %w", err)
	}
	return nil
}
