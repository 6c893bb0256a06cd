// Package adplatform is the boundary to the advertising platform that runs
// each segment's campaign. Money crosses it in EUR for daily budgets and in
// micros for reported cost.
package adplatform

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPermanent marks failures that a retry cannot fix.
	ErrPermanent = errors.New("permanent ad platform error")
	// ErrCampaignNotFound is a permanent error for an unknown campaign id.
	ErrCampaignNotFound = fmt.Errorf("campaign not found: %w", ErrPermanent)
)

// Permanent wraps err so that IsTransient reports false for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsTransient reports whether a failed call is worth retrying.
// Per-call deadline expiry is transient; caller cancellation is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// CampaignStatusEnabled is the platform status of a serving campaign, ad group, keyword or ad.
const CampaignStatusEnabled = "ENABLED"

// DailyStats is one day of spend for a segment's campaign.
type DailyStats struct {
	Spend       float64 `json:"spend"`
	Clicks      int64   `json:"clicks"`
	Impressions int64   `json:"impressions"`
}

// Campaign is a campaign listed from the ad account.
type Campaign struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	BudgetMicros int64  `json:"budget_micros"`
}

// KeywordMetrics is keyword performance over a window.
type KeywordMetrics struct {
	CriterionID string  `json:"criterion_id"`
	AdGroupID   string  `json:"ad_group_id"`
	Text        string  `json:"text"`
	Status      string  `json:"status"`
	Clicks      int64   `json:"clicks"`
	Impressions int64   `json:"impressions"`
	CostMicros  int64   `json:"cost_micros"`
	Conversions float64 `json:"conversions"`
}

// AdMetrics is ad performance over a window.
type AdMetrics struct {
	AdID        string  `json:"ad_id"`
	AdGroupID   string  `json:"ad_group_id"`
	Status      string  `json:"status"`
	Clicks      int64   `json:"clicks"`
	Impressions int64   `json:"impressions"`
	CostMicros  int64   `json:"cost_micros"`
	Conversions float64 `json:"conversions"`
}

// CTR is clicks over impressions, 0 without impressions.
func (a AdMetrics) CTR() float64 {
	if a.Impressions == 0 {
		return 0
	}
	return float64(a.Clicks) / float64(a.Impressions)
}

// QualityScore is the platform's 1-10 keyword quality rating.
type QualityScore struct {
	CriterionID string `json:"criterion_id"`
	AdGroupID   string `json:"ad_group_id"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
}

// Client is the ad platform surface the pipeline depends on.
type Client interface {
	// UpdateCampaignBudget sets the campaign's daily budget in EUR.
	UpdateCampaignBudget(ctx context.Context, campaignID string, dailyBudget float64) error
	// GetCampaignStats returns spend for the campaign tagged with segmentCode on date.
	GetCampaignStats(ctx context.Context, segmentCode, date string) (DailyStats, error)
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	// GetCampaignBudgets returns the current daily budget in micros per campaign id.
	GetCampaignBudgets(ctx context.Context, campaignIDs []string) (map[string]int64, error)
	KeywordPerformance(ctx context.Context, campaignID string, from, to time.Time) ([]KeywordMetrics, error)
	AdPerformance(ctx context.Context, campaignID string, from, to time.Time) ([]AdMetrics, error)
	QualityScores(ctx context.Context, campaignID string) ([]QualityScore, error)
	PauseKeyword(ctx context.Context, adGroupID, criterionID string) error
	PauseAd(ctx context.Context, adGroupID, adID string) error
}
