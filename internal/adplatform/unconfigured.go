package adplatform

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// UnconfiguredClient stands in when no ad account is connected. Mutations
// are logged and reported as applied; reads return zeros and empty lists.
type UnconfiguredClient struct {
	logger *zap.Logger
}

func NewUnconfiguredClient(logger *zap.Logger) *UnconfiguredClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnconfiguredClient{logger: logger}
}

func (c *UnconfiguredClient) UpdateCampaignBudget(ctx context.Context, campaignID string, dailyBudget float64) error {
	c.logger.Info("ad account not configured, budget update not sent",
		zap.String("campaign_id", campaignID),
		zap.Float64("daily_budget", dailyBudget),
	)
	return nil
}

func (c *UnconfiguredClient) GetCampaignStats(ctx context.Context, segmentCode, date string) (DailyStats, error) {
	return DailyStats{}, nil
}

func (c *UnconfiguredClient) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	return nil, nil
}

func (c *UnconfiguredClient) GetCampaignBudgets(ctx context.Context, campaignIDs []string) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (c *UnconfiguredClient) KeywordPerformance(ctx context.Context, campaignID string, from, to time.Time) ([]KeywordMetrics, error) {
	return nil, nil
}

func (c *UnconfiguredClient) AdPerformance(ctx context.Context, campaignID string, from, to time.Time) ([]AdMetrics, error) {
	return nil, nil
}

func (c *UnconfiguredClient) QualityScores(ctx context.Context, campaignID string) ([]QualityScore, error) {
	return nil, nil
}

func (c *UnconfiguredClient) PauseKeyword(ctx context.Context, adGroupID, criterionID string) error {
	c.logger.Info("ad account not configured, keyword pause not sent",
		zap.String("ad_group_id", adGroupID),
		zap.String("criterion_id", criterionID),
	)
	return nil
}

func (c *UnconfiguredClient) PauseAd(ctx context.Context, adGroupID, adID string) error {
	c.logger.Info("ad account not configured, ad pause not sent",
		zap.String("ad_group_id", adGroupID),
		zap.String("ad_id", adID),
	)
	return nil
}
