package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/leadflow/internal/models"
)

const segmentColumns = `
	id, code, branch, region, is_active,
	COALESCE(target_cpl_eur, 0), COALESCE(min_daily_budget_eur, 0), COALESCE(max_daily_budget_eur, 0),
	COALESCE(google_ads_campaign_id, ''), COALESCE(google_ads_customer_id, '')`

// PostgresSegmentRepo implements SegmentRepo using PostgreSQL.
type PostgresSegmentRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSegmentRepo(pool *pgxpool.Pool) *PostgresSegmentRepo {
	return &PostgresSegmentRepo{pool: pool}
}

func (r *PostgresSegmentRepo) ListActive(ctx context.Context) ([]*models.Segment, error) {
	return r.query(ctx, `SELECT `+segmentColumns+`
		FROM lead_segments WHERE is_active = true
		ORDER BY branch, region`)
}

func (r *PostgresSegmentRepo) ListWithCampaign(ctx context.Context) ([]*models.Segment, error) {
	return r.query(ctx, `SELECT `+segmentColumns+`
		FROM lead_segments
		WHERE is_active = true AND google_ads_campaign_id IS NOT NULL AND google_ads_campaign_id <> ''
		ORDER BY branch, region`)
}

func (r *PostgresSegmentRepo) GetActive(ctx context.Context, id string) (*models.Segment, error) {
	var s models.Segment
	err := r.pool.QueryRow(ctx, `SELECT `+segmentColumns+`
		FROM lead_segments WHERE id = $1 AND is_active = true`, id).
		Scan(&s.ID, &s.Code, &s.Branch, &s.Region, &s.IsActive,
			&s.TargetCPL, &s.MinDailyBudget, &s.MaxDailyBudget, &s.CampaignID, &s.CustomerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return &s, nil
}

func (r *PostgresSegmentRepo) query(ctx context.Context, sql string) ([]*models.Segment, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	var segments []*models.Segment
	for rows.Next() {
		var s models.Segment
		if err := rows.Scan(&s.ID, &s.Code, &s.Branch, &s.Region, &s.IsActive,
			&s.TargetCPL, &s.MinDailyBudget, &s.MaxDailyBudget, &s.CampaignID, &s.CustomerID); err != nil {
			return nil, err
		}
		segments = append(segments, &s)
	}
	return segments, rows.Err()
}

// PostgresLeadRepo implements LeadRepo and CapacityRepo using PostgreSQL.
type PostgresLeadRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresLeadRepo(pool *pgxpool.Pool) *PostgresLeadRepo {
	return &PostgresLeadRepo{pool: pool}
}

func (r *PostgresLeadRepo) ListBySegment(ctx context.Context, segmentID string, from, to time.Time) ([]*models.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, segment_id, status, price_at_purchase, assigned_to,
			   COALESCE(google_ads_campaign_id, ''), created_at
		FROM leads
		WHERE segment_id = $1 AND created_at >= $2 AND created_at < $3
	`, segmentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(&l.ID, &l.SegmentID, &l.Status, &l.PriceAtPurchase,
			&l.AssignedTo, &l.CampaignID, &l.CreatedAt); err != nil {
			return nil, err
		}
		leads = append(leads, &l)
	}
	return leads, rows.Err()
}

func (r *PostgresLeadRepo) CountByCampaign(ctx context.Context, campaignIDs []string, since time.Time) (map[string]int, error) {
	counts := make(map[string]int, len(campaignIDs))
	if len(campaignIDs) == 0 {
		return counts, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT google_ads_campaign_id, COUNT(*)
		FROM leads
		WHERE google_ads_campaign_id = ANY($1) AND created_at >= $2
		GROUP BY google_ads_campaign_id
	`, campaignIDs, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads by campaign: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// GetSegmentCapacity calls the get_segment_capacity database function.
func (r *PostgresLeadRepo) GetSegmentCapacity(ctx context.Context, segmentID string) (*models.Capacity, error) {
	var c models.Capacity
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(capacity_partners, 0), COALESCE(capacity_total_leads, 0), COALESCE(current_open_leads, 0)
		FROM get_segment_capacity($1)
	`, segmentID).Scan(&c.CapacityPartners, &c.CapacityTotalLeads, &c.CurrentOpenLeads)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get segment capacity: %w", err)
	}
	return &c, nil
}
