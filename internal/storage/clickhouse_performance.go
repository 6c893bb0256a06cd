package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/radiusdt/leadflow/internal/models"
	"go.uber.org/zap"
)

// ClickHousePerformanceRepo reads imported ad performance from ClickHouse.
type ClickHousePerformanceRepo struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

func NewClickHousePerformanceRepo(db *sql.DB, table string, logger *zap.Logger) *ClickHousePerformanceRepo {
	if table == "" {
		table = "google_ads_campaign_performance"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickHousePerformanceRepo{db: db, table: table, logger: logger}
}

func (r *ClickHousePerformanceRepo) CampaignTotals(ctx context.Context, campaignIDs []string, from time.Time) (map[string]models.PerformanceTotals, error) {
	totals := make(map[string]models.PerformanceTotals, len(campaignIDs))
	if len(campaignIDs) == 0 {
		return totals, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(campaignIDs)), ",")
	q := fmt.Sprintf(`
		SELECT google_ads_campaign_id,
			   sum(clicks), sum(impressions), sum(cost_micros),
			   sum(conversions), sum(conv_value)
		FROM %s
		WHERE google_ads_campaign_id IN (%s) AND date >= ?
		GROUP BY google_ads_campaign_id
	`, r.table, placeholders)

	args := make([]any, 0, len(campaignIDs)+1)
	for _, id := range campaignIDs {
		args = append(args, id)
	}
	args = append(args, from)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("clickhouse campaign totals query error",
			zap.String("table", r.table),
			zap.Int("campaigns", len(campaignIDs)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("campaign totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var clicks, impressions, cost uint64
		var t models.PerformanceTotals
		if err := rows.Scan(&id, &clicks, &impressions, &cost, &t.Conversions, &t.ConversionValue); err != nil {
			return nil, fmt.Errorf("scan campaign totals: %w", err)
		}
		t.Clicks = int64(clicks)
		t.Impressions = int64(impressions)
		t.CostMicros = int64(cost)
		totals[id] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return totals, nil
}
