package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/leadflow/internal/models"
)

// PostgresOrchestrationLog implements OrchestrationLogRepo using PostgreSQL.
type PostgresOrchestrationLog struct {
	pool *pgxpool.Pool
}

func NewPostgresOrchestrationLog(pool *pgxpool.Pool) *PostgresOrchestrationLog {
	return &PostgresOrchestrationLog{pool: pool}
}

func (l *PostgresOrchestrationLog) AppendOrchestrationLog(ctx context.Context, e *models.OrchestrationLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := l.pool.Exec(ctx, `
		INSERT INTO channel_orchestration_log (
			id, segment_id, plan_id, date, channel, action_type,
			old_value, new_value, status, error_message, executed_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11)
	`, e.ID, e.SegmentID, e.PlanID, e.Date, e.Channel, e.ActionType,
		e.OldValue, e.NewValue, e.Status, e.ErrorMessage, e.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to append orchestration log: %w", err)
	}
	return nil
}

func (l *PostgresOrchestrationLog) ListOrchestrationLog(ctx context.Context, segmentID, date string) ([]*models.OrchestrationLogEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, segment_id, COALESCE(plan_id::text, ''), date, channel, action_type,
			   old_value, new_value, status, COALESCE(error_message, ''), executed_at
		FROM channel_orchestration_log
		WHERE segment_id = $1 AND ($2 = '' OR date = $2::date)
		ORDER BY executed_at
	`, segmentID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list orchestration log: %w", err)
	}
	defer rows.Close()

	var entries []*models.OrchestrationLogEntry
	for rows.Next() {
		var e models.OrchestrationLogEntry
		var day time.Time
		if err := rows.Scan(&e.ID, &e.SegmentID, &e.PlanID, &day, &e.Channel, &e.ActionType,
			&e.OldValue, &e.NewValue, &e.Status, &e.ErrorMessage, &e.ExecutedAt); err != nil {
			return nil, err
		}
		e.Date = day.Format(models.DateLayout)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// PostgresSuggestionRepo implements SuggestionRepo using PostgreSQL.
type PostgresSuggestionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSuggestionRepo(pool *pgxpool.Pool) *PostgresSuggestionRepo {
	return &PostgresSuggestionRepo{pool: pool}
}

func (r *PostgresSuggestionRepo) AppendSuggestion(ctx context.Context, s *models.OptimizationSuggestion) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO campaign_optimization_suggestions (
			id, segment_id, google_ads_campaign_id, suggested_change_type,
			suggested_new_budget_micros, current_budget_micros, reason,
			cpl_eur, target_cpl_eur, leads_count, created_at
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, s.ID, s.SegmentID, s.CampaignID, s.SuggestedChangeType,
		s.SuggestedBudgetMicros, s.CurrentBudgetMicros, s.Reason,
		s.CPL, s.TargetCPL, s.LeadsCount, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append suggestion: %w", err)
	}
	return nil
}

func (r *PostgresSuggestionRepo) ListSuggestions(ctx context.Context, campaignID string) ([]*models.OptimizationSuggestion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(segment_id::text, ''), google_ads_campaign_id, suggested_change_type,
			   suggested_new_budget_micros, current_budget_micros, reason,
			   cpl_eur, target_cpl_eur, leads_count, created_at
		FROM campaign_optimization_suggestions
		WHERE $1 = '' OR google_ads_campaign_id = $1
		ORDER BY created_at DESC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	var res []*models.OptimizationSuggestion
	for rows.Next() {
		var s models.OptimizationSuggestion
		if err := rows.Scan(&s.ID, &s.SegmentID, &s.CampaignID, &s.SuggestedChangeType,
			&s.SuggestedBudgetMicros, &s.CurrentBudgetMicros, &s.Reason,
			&s.CPL, &s.TargetCPL, &s.LeadsCount, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &s)
	}
	return res, rows.Err()
}

// NewPostgresRepositories wires every Postgres-backed store. Performance is
// left nil; it lives in the analytics store.
func NewPostgresRepositories(pool *pgxpool.Pool) *Repositories {
	leads := NewPostgresLeadRepo(pool)
	return &Repositories{
		Segments:         NewPostgresSegmentRepo(pool),
		Leads:            leads,
		Capacity:         leads,
		Stats:            NewPostgresStatsRepo(pool),
		Plans:            NewPostgresPlanRepo(pool),
		OrchestrationLog: NewPostgresOrchestrationLog(pool),
		Suggestions:      NewPostgresSuggestionRepo(pool),
	}
}
