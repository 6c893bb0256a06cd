package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the lead flow pipeline.
type Metrics struct {
	// Stage metrics
	StageRuns     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	StageItems    *prometheus.CounterVec

	// Orchestration metrics
	BudgetChanges *prometheus.CounterVec
	BudgetDelta   *prometheus.HistogramVec
	PlanConflicts prometheus.Counter
	LeadGap       *prometheus.GaugeVec

	// Optimizer metrics
	Pauses      *prometheus.CounterVec
	Alerts      *prometheus.CounterVec
	Suggestions *prometheus.CounterVec

	// Ad platform metrics
	AdCalls       *prometheus.CounterVec
	AdRetries     *prometheus.CounterVec
	AdLatency     *prometheus.HistogramVec
	StatsCacheHit *prometheus.CounterVec

	// Admin API metrics
	HTTPRequests  *prometheus.CounterVec
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on reg.
// A nil reg registers on the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		StageRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_runs_total",
				Help:      "Pipeline stage runs by outcome",
			},
			[]string{"stage", "status"}, // success, failed, rejected
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
			},
			[]string{"stage"},
		),
		StageItems: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_items_total",
				Help:      "Per-segment or per-campaign results inside a stage",
			},
			[]string{"stage", "status"},
		),

		BudgetChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_changes_total",
				Help:      "Budget adjustments sent to the ad platform",
			},
			[]string{"action", "status"},
		),
		BudgetDelta: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "budget_delta_eur",
				Help:      "Absolute applied daily budget change in EUR",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 200},
			},
			[]string{"action"},
		),
		PlanConflicts: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plan_conflicts_total",
				Help:      "Plan status writes rejected by the version check",
			},
		),
		LeadGap: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "lead_gap",
				Help:      "Latest planned lead gap per segment",
			},
			[]string{"segment"},
		),

		Pauses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pauses_total",
				Help:      "Keyword and ad pause attempts",
			},
			[]string{"entity", "status"},
		),
		Alerts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizer_alerts_total",
				Help:      "Optimizer alerts and quality flags",
			},
			[]string{"type"},
		),
		Suggestions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "suggestions_total",
				Help:      "Optimizer suggestions recorded instead of applied",
			},
			[]string{"change_type"},
		),

		AdCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_platform_calls_total",
				Help:      "Ad platform calls by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		AdRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_platform_retries_total",
				Help:      "Ad platform call retries",
			},
			[]string{"operation"},
		),
		AdLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ad_platform_latency_seconds",
				Help:      "Ad platform call latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		StatsCacheHit: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_stats_cache_total",
				Help:      "Ad stats cache lookups",
			},
			[]string{"result"}, // hit, miss, error
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Admin API requests",
			},
			[]string{"route", "method", "status"},
		),
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Admin API requests rejected by the rate limiter",
			},
			[]string{"path"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordStage records a finished stage run.
func (m *Metrics) RecordStage(stage, status string, d time.Duration) {
	m.StageRuns.WithLabelValues(stage, status).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordStageItem records one item result inside a stage.
func (m *Metrics) RecordStageItem(stage string, ok bool) {
	m.StageItems.WithLabelValues(stage, outcome(ok)).Inc()
}

// RecordBudgetChange records a budget mutation attempt.
func (m *Metrics) RecordBudgetChange(action string, ok bool, delta float64) {
	m.BudgetChanges.WithLabelValues(action, outcome(ok)).Inc()
	if ok {
		if delta < 0 {
			delta = -delta
		}
		m.BudgetDelta.WithLabelValues(action).Observe(delta)
	}
}

// RecordPlanConflict records an optimistic lock rejection.
func (m *Metrics) RecordPlanConflict() {
	m.PlanConflicts.Inc()
}

// SetLeadGap updates the planned gap gauge of a segment.
func (m *Metrics) SetLeadGap(segment string, gap int) {
	m.LeadGap.WithLabelValues(segment).Set(float64(gap))
}

// RecordPause records a keyword or ad pause attempt.
func (m *Metrics) RecordPause(entity string, ok bool) {
	m.Pauses.WithLabelValues(entity, outcome(ok)).Inc()
}

// RecordAlert records an optimizer alert or quality flag.
func (m *Metrics) RecordAlert(kind string) {
	m.Alerts.WithLabelValues(kind).Inc()
}

// RecordSuggestion records a stored suggestion.
func (m *Metrics) RecordSuggestion(changeType string) {
	m.Suggestions.WithLabelValues(changeType).Inc()
}

// RecordAdCall records an ad platform call.
func (m *Metrics) RecordAdCall(operation string, ok bool, latency time.Duration) {
	m.AdCalls.WithLabelValues(operation, outcome(ok)).Inc()
	m.AdLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordAdRetry records a retried ad platform call.
func (m *Metrics) RecordAdRetry(operation string) {
	m.AdRetries.WithLabelValues(operation).Inc()
}

// RecordStatsCache records a stats cache lookup result.
func (m *Metrics) RecordStatsCache(result string) {
	m.StatsCacheHit.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records a served admin API request.
func (m *Metrics) RecordHTTPRequest(route, method string, status int) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// RecordRateLimitHit records a request rejected with 429.
func (m *Metrics) RecordRateLimitHit(path string) {
	m.RateLimitHits.WithLabelValues(path).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
