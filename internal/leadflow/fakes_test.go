package leadflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/radiusdt/leadflow/internal/adplatform"
	"github.com/radiusdt/leadflow/internal/config"
	"github.com/radiusdt/leadflow/internal/metrics"
	"github.com/radiusdt/leadflow/internal/models"
	"github.com/radiusdt/leadflow/internal/storage"
	"go.uber.org/zap"
)

type budgetCall struct {
	campaignID string
	budget     float64
}

// fakeAds is a scriptable ad platform.
type fakeAds struct {
	mu sync.Mutex

	stats     map[string]adplatform.DailyStats
	statsErr  error
	budgetErr error
	budgets   map[string]int64
	campaigns []adplatform.Campaign
	keywords  map[string][]adplatform.KeywordMetrics
	ads       map[string][]adplatform.AdMetrics
	scores    map[string][]adplatform.QualityScore
	pauseErr  error

	// listHook runs inside ListCampaigns before it returns.
	listHook func()

	budgetCalls    []budgetCall
	perfWindows    [][2]time.Time
	pausedKeywords []string
	pausedAds      []string
}

func newFakeAds() *fakeAds {
	return &fakeAds{
		stats:    make(map[string]adplatform.DailyStats),
		budgets:  make(map[string]int64),
		keywords: make(map[string][]adplatform.KeywordMetrics),
		ads:      make(map[string][]adplatform.AdMetrics),
		scores:   make(map[string][]adplatform.QualityScore),
	}
}

func (f *fakeAds) UpdateCampaignBudget(ctx context.Context, campaignID string, dailyBudget float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.budgetErr != nil {
		return f.budgetErr
	}
	f.budgetCalls = append(f.budgetCalls, budgetCall{campaignID, dailyBudget})
	return nil
}

func (f *fakeAds) GetCampaignStats(ctx context.Context, segmentCode, date string) (adplatform.DailyStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return adplatform.DailyStats{}, f.statsErr
	}
	return f.stats[segmentCode+"/"+date], nil
}

func (f *fakeAds) ListCampaigns(ctx context.Context) ([]adplatform.Campaign, error) {
	if f.listHook != nil {
		f.listHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.campaigns, nil
}

func (f *fakeAds) GetCampaignBudgets(ctx context.Context, ids []string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64)
	for _, id := range ids {
		if b, ok := f.budgets[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func (f *fakeAds) KeywordPerformance(ctx context.Context, campaignID string, from, to time.Time) ([]adplatform.KeywordMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perfWindows = append(f.perfWindows, [2]time.Time{from, to})
	return f.keywords[campaignID], nil
}

func (f *fakeAds) AdPerformance(ctx context.Context, campaignID string, from, to time.Time) ([]adplatform.AdMetrics, error) {
	return f.ads[campaignID], nil
}

func (f *fakeAds) QualityScores(ctx context.Context, campaignID string) ([]adplatform.QualityScore, error) {
	return f.scores[campaignID], nil
}

func (f *fakeAds) PauseKeyword(ctx context.Context, adGroupID, criterionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.pausedKeywords = append(f.pausedKeywords, criterionID)
	return nil
}

func (f *fakeAds) PauseAd(ctx context.Context, adGroupID, adID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.pausedAds = append(f.pausedAds, adID)
	return nil
}

// env is an in-memory pipeline wired for tests.
type env struct {
	repos    *storage.Repositories
	segments *storage.InMemorySegmentRepo
	leads    *storage.InMemoryLeadRepo
	capacity *storage.InMemoryCapacityRepo
	stats    *storage.InMemoryStatsRepo
	plans    *storage.InMemoryPlanRepo
	log      *storage.InMemoryOrchestrationLog
	sugg     *storage.InMemorySuggestionRepo
	perf     *storage.InMemoryPerformanceRepo
	ads      *fakeAds
	tuning   *config.Tuning
	metrics  *metrics.Metrics
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repos := storage.NewInMemoryRepositories()
	return &env{
		repos:    repos,
		segments: repos.Segments.(*storage.InMemorySegmentRepo),
		leads:    repos.Leads.(*storage.InMemoryLeadRepo),
		capacity: repos.Capacity.(*storage.InMemoryCapacityRepo),
		stats:    repos.Stats.(*storage.InMemoryStatsRepo),
		plans:    repos.Plans.(*storage.InMemoryPlanRepo),
		log:      repos.OrchestrationLog.(*storage.InMemoryOrchestrationLog),
		sugg:     repos.Suggestions.(*storage.InMemorySuggestionRepo),
		perf:     repos.Performance.(*storage.InMemoryPerformanceRepo),
		ads:      newFakeAds(),
		tuning:   config.DefaultTuning(),
		metrics:  metrics.NewMetrics("test", prometheus.NewRegistry()),
	}
}

func (e *env) aggregator() *StatsAggregator {
	return NewStatsAggregator(e.repos, e.ads, time.UTC, zap.NewNop(), e.metrics)
}

func (e *env) planner() *DemandPlanner {
	p := e.tuning.Planning
	return NewDemandPlanner(e.repos, UtilizationTarget(p.TargetUtilization, p.MinTargetLeads), e.tuning.Orchestration.AssumedCPL, zap.NewNop(), e.metrics)
}

func (e *env) orchestrator() *BudgetOrchestrator {
	return NewBudgetOrchestrator(e.repos, e.ads, e.tuning.Orchestration, true, zap.NewNop(), e.metrics)
}

func (e *env) optimizer(autoApply bool) *CampaignOptimizer {
	return NewCampaignOptimizer(e.ads, e.sugg, e.tuning.Optimizer, autoApply, zap.NewNop(), e.metrics)
}

func (e *env) budgetOptimizer(autoApply bool) *BudgetOptimizer {
	return NewBudgetOptimizer(e.repos, e.ads, e.tuning.BudgetOpt, autoApply, zap.NewNop(), e.metrics)
}

func activeSegment(id, campaignID string) *models.Segment {
	return &models.Segment{
		ID:         id,
		Code:       "code-" + id,
		Branch:     "plumbing",
		Region:     "north",
		IsActive:   true,
		CampaignID: campaignID,
	}
}

func floatPtr(v float64) *float64 { return &v }
