package adplatform

import (
	"context"
	"fmt"
	"time"

	"github.com/radiusdt/leadflow/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryConfig configures RetryingClient.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CallTimeout time.Duration
	// MutationRPS and MutationBurst throttle budget and pause writes. Zero RPS disables throttling.
	MutationRPS   float64
	MutationBurst int
}

// RetryingClient decorates a Client with per-call timeouts, exponential
// backoff on transient failures and a token bucket on mutations.
type RetryingClient struct {
	next    Client
	cfg     RetryConfig
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRetryingClient wraps next. Metrics may be nil.
func NewRetryingClient(next Client, cfg RetryConfig, logger *zap.Logger, m *metrics.Metrics) *RetryingClient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.MutationRPS > 0 {
		burst := cfg.MutationBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MutationRPS), burst)
	}
	return &RetryingClient{next: next, cfg: cfg, limiter: limiter, logger: logger, metrics: m}
}

// do runs fn up to MaxAttempts times. Delay before retry i is BaseDelay * 2^(i-1).
func (c *RetryingClient) do(ctx context.Context, op string, mutation bool, fn func(ctx context.Context) error) error {
	if mutation && c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", op, err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		lastErr = c.call(ctx, fn)
		if c.metrics != nil {
			c.metrics.RecordAdCall(op, lastErr == nil, time.Since(start))
		}
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, lastErr)
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		delay := time.Duration(1<<(attempt-1)) * c.cfg.BaseDelay
		c.logger.Warn("ad platform call failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		if c.metrics != nil {
			c.metrics.RecordAdRetry(op)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", op, c.cfg.MaxAttempts, lastErr)
}

func (c *RetryingClient) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.cfg.CallTimeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	return fn(callCtx)
}

func (c *RetryingClient) UpdateCampaignBudget(ctx context.Context, campaignID string, dailyBudget float64) error {
	return c.do(ctx, "update_campaign_budget", true, func(ctx context.Context) error {
		return c.next.UpdateCampaignBudget(ctx, campaignID, dailyBudget)
	})
}

func (c *RetryingClient) GetCampaignStats(ctx context.Context, segmentCode, date string) (DailyStats, error) {
	var out DailyStats
	err := c.do(ctx, "get_campaign_stats", false, func(ctx context.Context) error {
		var err error
		out, err = c.next.GetCampaignStats(ctx, segmentCode, date)
		return err
	})
	return out, err
}

func (c *RetryingClient) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	var out []Campaign
	err := c.do(ctx, "list_campaigns", false, func(ctx context.Context) error {
		var err error
		out, err = c.next.ListCampaigns(ctx)
		return err
	})
	return out, err
}

func (c *RetryingClient) GetCampaignBudgets(ctx context.Context, campaignIDs []string) (map[string]int64, error) {
	var out map[string]int64
	err := c.do(ctx, "get_campaign_budgets", false, func(ctx context.Context) error {
		var err error
		out, err = c.next.GetCampaignBudgets(ctx, campaignIDs)
		return err
	})
	return out, err
}

func (c *RetryingClient) KeywordPerformance(ctx context.Context, campaignID string, from, to time.Time) ([]KeywordMetrics, error) {
	var out []KeywordMetrics
	err := c.do(ctx, "keyword_performance", false, func(ctx context.Context) error {
		var err error
		out, err = c.next.KeywordPerformance(ctx, campaignID, from, to)
		return err
	})
	return out, err
}

func (c *RetryingClient) AdPerformance(ctx context.Context, campaignID string, from, to time.Time) ([]AdMetrics, error) {
	var out []AdMetrics
	err := c.do(ctx, "ad_performance", false, func(ctx context.Context) error {
		var err error
		out, err = c.next.AdPerformance(ctx, campaignID, from, to)
		return err
	})
	return out, err
}

func (c *RetryingClient) QualityScores(ctx context.Context, campaignID string) ([]QualityScore, error) {
	var out []QualityScore
	err := c.do(ctx, "quality_scores", false, func(ctx context.Context) error {
		var err error
		out, err = c.next.QualityScores(ctx, campaignID)
		return err
	})
	return out, err
}

func (c *RetryingClient) PauseKeyword(ctx context.Context, adGroupID, criterionID string) error {
	return c.do(ctx, "pause_keyword", true, func(ctx context.Context) error {
		return c.next.PauseKeyword(ctx, adGroupID, criterionID)
	})
}

func (c *RetryingClient) PauseAd(ctx context.Context, adGroupID, adID string) error {
	return c.do(ctx, "pause_ad", true, func(ctx context.Context) error {
		return c.next.PauseAd(ctx, adGroupID, adID)
	})
}
