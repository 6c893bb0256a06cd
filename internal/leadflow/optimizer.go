package leadflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/radiusdt/leadflow/internal/adplatform"
	"github.com/radiusdt/leadflow/internal/config"
	"github.com/radiusdt/leadflow/internal/metrics"
	"github.com/radiusdt/leadflow/internal/models"
	"github.com/radiusdt/leadflow/internal/money"
	"github.com/radiusdt/leadflow/internal/storage"
	"go.uber.org/zap"
)

// Alert types raised by the campaign optimizer.
const (
	AlertHighCPC = "HIGH_CPC"
	AlertHighCPA = "HIGH_CPA"
)

// PauseCandidate is a keyword or ad the rules want paused.
type PauseCandidate struct {
	ID        string `json:"id"`
	AdGroupID string `json:"ad_group_id"`
	Label     string `json:"label,omitempty"`
	Reason    string `json:"reason"`
	Applied   bool   `json:"applied"`
	Error     string `json:"error,omitempty"`
}

// QualityIssue is a keyword whose quality score is below the floor.
type QualityIssue struct {
	CriterionID string `json:"criterion_id"`
	Keyword     string `json:"keyword"`
	Score       int    `json:"score"`
	Message     string `json:"message"`
}

// Alert is a cost threshold breach on a keyword.
type Alert struct {
	Type    string  `json:"type"`
	Keyword string  `json:"keyword"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}

// OptimizationResult is the outcome of optimizing one campaign.
type OptimizationResult struct {
	CampaignID         string           `json:"campaign_id"`
	Mode               string           `json:"mode"`
	From               string           `json:"from"`
	To                 string           `json:"to"`
	PauseKeywords      []PauseCandidate `json:"pause_keywords"`
	PauseAds           []PauseCandidate `json:"pause_ads"`
	QualityIssues      []QualityIssue   `json:"quality_issues"`
	Alerts             []Alert          `json:"alerts"`
	KeywordsPaused     int              `json:"keywords_paused"`
	AdsPaused          int              `json:"ads_paused"`
	PauseFailures      int              `json:"pause_failures"`
	SuggestionRecorded bool             `json:"suggestion_recorded"`
}

// CampaignOptimizer applies fixed keyword, ad and quality rules to campaigns.
type CampaignOptimizer struct {
	ads         adplatform.Client
	suggestions storage.SuggestionRepo
	tuning      config.OptimizerTuning
	autoApply   bool
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewCampaignOptimizer creates an optimizer. With autoApply false nothing is
// paused and candidates are recorded as suggestions. Metrics may be nil.
func NewCampaignOptimizer(ads adplatform.Client, suggestions storage.SuggestionRepo, tuning config.OptimizerTuning, autoApply bool, logger *zap.Logger, m *metrics.Metrics) *CampaignOptimizer {
	return &CampaignOptimizer{
		ads:         ads,
		suggestions: suggestions,
		tuning:      tuning,
		autoApply:   autoApply,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

// Analyze applies the rules to already fetched performance. It does not
// cap candidates.
func (o *CampaignOptimizer) Analyze(keywords []adplatform.KeywordMetrics, ads []adplatform.AdMetrics, scores []adplatform.QualityScore) *OptimizationResult {
	t := o.tuning
	res := &OptimizationResult{
		PauseKeywords: []PauseCandidate{},
		PauseAds:      []PauseCandidate{},
		QualityIssues: []QualityIssue{},
		Alerts:        []Alert{},
	}

	for _, kw := range keywords {
		if kw.Clicks >= t.KeywordMinClicks && kw.Conversions == 0 && kw.Status == adplatform.CampaignStatusEnabled {
			res.PauseKeywords = append(res.PauseKeywords, PauseCandidate{
				ID:        kw.CriterionID,
				AdGroupID: kw.AdGroupID,
				Label:     kw.Text,
				Reason:    fmt.Sprintf("0 conversions after %d clicks", kw.Clicks),
			})
		}

		cost := money.FromMicros(kw.CostMicros)
		if kw.Clicks > 0 {
			if cpc := cost / float64(kw.Clicks); cpc > t.MaxCPC {
				res.Alerts = append(res.Alerts, Alert{
					Type:    AlertHighCPC,
					Keyword: kw.Text,
					Value:   money.Round2(cpc),
					Message: fmt.Sprintf("High CPC: €%.2f", cpc),
				})
			}
		}
		if kw.Conversions > 0 {
			if cpa := cost / kw.Conversions; cpa > t.MaxCPA {
				res.Alerts = append(res.Alerts, Alert{
					Type:    AlertHighCPA,
					Keyword: kw.Text,
					Value:   money.Round2(cpa),
					Message: fmt.Sprintf("High CPA: €%.2f", cpa),
				})
			}
		}
	}

	for _, ad := range ads {
		ctr := ad.CTR()
		if ad.Impressions >= t.AdMinImpressions && ctr < t.AdMinCTR && ad.Status == adplatform.CampaignStatusEnabled {
			res.PauseAds = append(res.PauseAds, PauseCandidate{
				ID:        ad.AdID,
				AdGroupID: ad.AdGroupID,
				Reason:    fmt.Sprintf("Low CTR: %.2f%% after %d impressions", ctr*100, ad.Impressions),
			})
		}
	}

	for _, qs := range scores {
		if qs.Score < t.QualityScoreMin {
			res.QualityIssues = append(res.QualityIssues, QualityIssue{
				CriterionID: qs.CriterionID,
				Keyword:     qs.Text,
				Score:       qs.Score,
				Message:     fmt.Sprintf("Low Quality Score: %d/10", qs.Score),
			})
		}
	}

	return res
}

// Optimize pulls performance for campaignID over [from, to] and applies the
// rules. A zero to means now and a zero from means WindowDays before to.
func (o *CampaignOptimizer) Optimize(ctx context.Context, campaignID string, from, to time.Time) (*OptimizationResult, error) {
	from, to = o.window(from, to)
	return o.optimize(ctx, campaignID, from, to, o.autoApply)
}

func (o *CampaignOptimizer) window(from, to time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = o.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -o.tuning.WindowDays)
	}
	return from, to
}

func (o *CampaignOptimizer) optimize(ctx context.Context, campaignID string, from, to time.Time, autoApply bool) (*OptimizationResult, error) {
	keywords, err := o.ads.KeywordPerformance(ctx, campaignID, from, to)
	if err != nil {
		return nil, fmt.Errorf("keyword performance: %w", err)
	}
	ads, err := o.ads.AdPerformance(ctx, campaignID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ad performance: %w", err)
	}
	scores, err := o.ads.QualityScores(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("quality scores: %w", err)
	}

	res := o.Analyze(keywords, ads, scores)
	res.CampaignID = campaignID
	res.Mode = modeFor(autoApply)
	res.From = from.Format(models.DateLayout)
	res.To = to.Format(models.DateLayout)

	if o.metrics != nil {
		for _, a := range res.Alerts {
			o.metrics.RecordAlert(a.Type)
		}
		for range res.QualityIssues {
			o.metrics.RecordAlert("LOW_QUALITY_SCORE")
		}
	}

	if autoApply {
		o.applyPauses(ctx, campaignID, res)
	} else if err := o.recordCandidates(ctx, campaignID, res); err != nil {
		return nil, err
	}

	o.logger.Info("campaign optimized",
		zap.String("campaign_id", campaignID),
		zap.String("mode", res.Mode),
		zap.Int("keyword_candidates", len(res.PauseKeywords)),
		zap.Int("ad_candidates", len(res.PauseAds)),
		zap.Int("keywords_paused", res.KeywordsPaused),
		zap.Int("ads_paused", res.AdsPaused),
		zap.Int("alerts", len(res.Alerts)),
	)
	return res, nil
}

// applyPauses pauses at most MaxPausesPerRun keywords and as many ads.
// Individual failures are logged and counted.
func (o *CampaignOptimizer) applyPauses(ctx context.Context, campaignID string, res *OptimizationResult) {
	limit := o.tuning.MaxPausesPerRun

	for i := range res.PauseKeywords {
		if i >= limit {
			break
		}
		kw := &res.PauseKeywords[i]
		if err := o.ads.PauseKeyword(ctx, kw.AdGroupID, kw.ID); err != nil {
			kw.Error = err.Error()
			res.PauseFailures++
			o.logger.Warn("failed to pause keyword",
				zap.String("campaign_id", campaignID),
				zap.String("criterion_id", kw.ID),
				zap.Error(err),
			)
		} else {
			kw.Applied = true
			res.KeywordsPaused++
		}
		if o.metrics != nil {
			o.metrics.RecordPause("keyword", kw.Applied)
		}
	}

	for i := range res.PauseAds {
		if i >= limit {
			break
		}
		ad := &res.PauseAds[i]
		if err := o.ads.PauseAd(ctx, ad.AdGroupID, ad.ID); err != nil {
			ad.Error = err.Error()
			res.PauseFailures++
			o.logger.Warn("failed to pause ad",
				zap.String("campaign_id", campaignID),
				zap.String("ad_id", ad.ID),
				zap.Error(err),
			)
		} else {
			ad.Applied = true
			res.AdsPaused++
		}
		if o.metrics != nil {
			o.metrics.RecordPause("ad", ad.Applied)
		}
	}
}

// recordCandidates stores one PAUSE_CANDIDATES suggestion when there is anything to pause.
func (o *CampaignOptimizer) recordCandidates(ctx context.Context, campaignID string, res *OptimizationResult) error {
	if len(res.PauseKeywords) == 0 && len(res.PauseAds) == 0 {
		return nil
	}

	var parts []string
	if n := len(res.PauseKeywords); n > 0 {
		parts = append(parts, fmt.Sprintf("%d keywords without conversions", n))
	}
	if n := len(res.PauseAds); n > 0 {
		parts = append(parts, fmt.Sprintf("%d ads below CTR floor", n))
	}

	s := &models.OptimizationSuggestion{
		CampaignID:          campaignID,
		SuggestedChangeType: models.ChangePauseCandidates,
		Reason:              "Pause candidates: " + strings.Join(parts, ", "),
		CreatedAt:           o.now().UTC(),
	}
	if err := o.suggestions.AppendSuggestion(ctx, s); err != nil {
		return fmt.Errorf("record suggestion: %w", err)
	}
	res.SuggestionRecorded = true
	if o.metrics != nil {
		o.metrics.RecordSuggestion(string(models.ChangePauseCandidates))
	}
	return nil
}

// OptimizeAll optimizes every ENABLED campaign over the configured window.
// The apply mode is fixed for the whole batch.
func (o *CampaignOptimizer) OptimizeAll(ctx context.Context) (*StageSummary, error) {
	now := o.now()
	autoApply := o.autoApply
	summary := newSummary(StageOptimize, now.Format(models.DateLayout), now)
	summary.Mode = modeFor(autoApply)

	campaigns, err := o.ads.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}

	from, to := o.window(time.Time{}, now)

	for _, c := range campaigns {
		if c.Status != adplatform.CampaignStatusEnabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := ItemResult{CampaignID: c.ID, Success: true}
		res, err := o.optimize(ctx, c.ID, from, to, autoApply)
		if err != nil {
			o.logger.Error("campaign optimization failed",
				zap.String("campaign_id", c.ID),
				zap.Error(err),
			)
			item.Success = false
			item.Error = err.Error()
		} else {
			item.Message = fmt.Sprintf("paused %d keywords, %d ads", res.KeywordsPaused, res.AdsPaused)
		}
		if o.metrics != nil {
			o.metrics.RecordStageItem(StageOptimize, item.Success)
		}
		summary.add(item)
	}
	if summary.Total == 0 {
		summary.Message = "No enabled campaigns to optimize"
	}

	return summary.finish(o.now()), nil
}
