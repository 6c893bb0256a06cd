package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/radiusdt/leadflow/internal/models"
)

// In-memory implementations. They back local runs without Postgres and the
// package tests. Every read returns a copy so callers cannot mutate stored rows.

// InMemorySegmentRepo stores segments in a map keyed by ID.
type InMemorySegmentRepo struct {
	mu       sync.RWMutex
	segments map[string]*models.Segment
}

// NewInMemorySegmentRepo creates an empty segment repo.
func NewInMemorySegmentRepo() *InMemorySegmentRepo {
	return &InMemorySegmentRepo{segments: make(map[string]*models.Segment)}
}

// UpsertSegment inserts or replaces a segment.
func (r *InMemorySegmentRepo) UpsertSegment(s *models.Segment) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.segments[s.ID] = &cp
}

func (r *InMemorySegmentRepo) ListActive(ctx context.Context) ([]*models.Segment, error) {
	return r.list(func(s *models.Segment) bool { return s.IsActive }), nil
}

func (r *InMemorySegmentRepo) ListWithCampaign(ctx context.Context) ([]*models.Segment, error) {
	return r.list(func(s *models.Segment) bool { return s.IsActive && s.HasCampaign() }), nil
}

func (r *InMemorySegmentRepo) GetActive(ctx context.Context, id string) (*models.Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.segments[id]
	if !ok || !s.IsActive {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *InMemorySegmentRepo) list(keep func(*models.Segment) bool) []*models.Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*models.Segment, 0, len(r.segments))
	for _, s := range r.segments {
		if keep(s) {
			cp := *s
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Branch != res[j].Branch {
			return res[i].Branch < res[j].Branch
		}
		if res[i].Region != res[j].Region {
			return res[i].Region < res[j].Region
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// InMemoryLeadRepo stores leads in insertion order.
type InMemoryLeadRepo struct {
	mu    sync.RWMutex
	leads []*models.Lead
}

// NewInMemoryLeadRepo creates an empty lead repo.
func NewInMemoryLeadRepo() *InMemoryLeadRepo {
	return &InMemoryLeadRepo{}
}

// AddLead appends a lead.
func (r *InMemoryLeadRepo) AddLead(l *models.Lead) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.leads = append(r.leads, &cp)
}

func (r *InMemoryLeadRepo) ListBySegment(ctx context.Context, segmentID string, from, to time.Time) ([]*models.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*models.Lead
	for _, l := range r.leads {
		if l.SegmentID != segmentID {
			continue
		}
		if l.CreatedAt.Before(from) || !l.CreatedAt.Before(to) {
			continue
		}
		cp := *l
		res = append(res, &cp)
	}
	return res, nil
}

func (r *InMemoryLeadRepo) CountByCampaign(ctx context.Context, campaignIDs []string, since time.Time) (map[string]int, error) {
	wanted := make(map[string]struct{}, len(campaignIDs))
	for _, id := range campaignIDs {
		wanted[id] = struct{}{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, l := range r.leads {
		if l.CampaignID == "" || l.CreatedAt.Before(since) {
			continue
		}
		if _, ok := wanted[l.CampaignID]; ok {
			counts[l.CampaignID]++
		}
	}
	return counts, nil
}

// InMemoryCapacityRepo stores capacity snapshots per segment.
type InMemoryCapacityRepo struct {
	mu       sync.RWMutex
	capacity map[string]models.Capacity
}

// NewInMemoryCapacityRepo creates an empty capacity repo.
func NewInMemoryCapacityRepo() *InMemoryCapacityRepo {
	return &InMemoryCapacityRepo{capacity: make(map[string]models.Capacity)}
}

// SetCapacity stores the capacity snapshot for a segment.
func (r *InMemoryCapacityRepo) SetCapacity(segmentID string, c models.Capacity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capacity[segmentID] = c
}

func (r *InMemoryCapacityRepo) GetSegmentCapacity(ctx context.Context, segmentID string) (*models.Capacity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capacity[segmentID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

type segmentDateKey struct {
	segmentID string
	date      string
}

// InMemoryStatsRepo stores one stats row per (segment, date).
type InMemoryStatsRepo struct {
	mu    sync.RWMutex
	stats map[segmentDateKey]*models.DailyStats
}

// NewInMemoryStatsRepo creates an empty stats repo.
func NewInMemoryStatsRepo() *InMemoryStatsRepo {
	return &InMemoryStatsRepo{stats: make(map[segmentDateKey]*models.DailyStats)}
}

func (r *InMemoryStatsRepo) UpsertDailyStats(ctx context.Context, s *models.DailyStats) error {
	if s == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.stats[segmentDateKey{s.SegmentID, s.Date}] = &cp
	return nil
}

func (r *InMemoryStatsRepo) GetDailyStats(ctx context.Context, segmentID, date string) (*models.DailyStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stats[segmentDateKey{segmentID, date}]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// Count returns the number of stored stats rows.
func (r *InMemoryStatsRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stats)
}

// InMemoryPlanRepo stores one plan per (segment, date) with versioned writes.
type InMemoryPlanRepo struct {
	mu    sync.RWMutex
	plans map[segmentDateKey]*models.Plan
	byID  map[string]segmentDateKey
}

// NewInMemoryPlanRepo creates an empty plan repo.
func NewInMemoryPlanRepo() *InMemoryPlanRepo {
	return &InMemoryPlanRepo{
		plans: make(map[segmentDateKey]*models.Plan),
		byID:  make(map[string]segmentDateKey),
	}
}

// PutPlan stores a plan as-is, assigning an ID and version when missing.
func (r *InMemoryPlanRepo) PutPlan(p *models.Plan) *models.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Version == 0 {
		cp.Version = 1
	}
	if cp.OrchestrationStatus == "" {
		cp.OrchestrationStatus = models.OrchestrationPending
	}
	k := segmentDateKey{cp.SegmentID, cp.Date}
	r.plans[k] = &cp
	r.byID[cp.ID] = k
	out := cp
	return &out
}

func (r *InMemoryPlanRepo) GetPlan(ctx context.Context, segmentID, date string) (*models.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[segmentDateKey{segmentID, date}]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *InMemoryPlanRepo) ListPlansWithGap(ctx context.Context, date string) ([]*models.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*models.Plan
	for k, p := range r.plans {
		if k.date == date {
			cp := *p
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SegmentID < res[j].SegmentID })
	return res, nil
}

func (r *InMemoryPlanRepo) UpsertPlan(ctx context.Context, p *models.Plan) (*models.Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	k := segmentDateKey{p.SegmentID, p.Date}
	existing, ok := r.plans[k]
	if !ok {
		cp := *p
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		cp.OrchestrationStatus = models.OrchestrationPending
		cp.Version = 1
		cp.UpdatedAt = now
		r.plans[k] = &cp
		r.byID[cp.ID] = k
		out := cp
		return &out, nil
	}
	existing.TargetLeadsPerDay = p.TargetLeadsPerDay
	existing.LeadGap = p.LeadGap
	existing.LeadGapPercentage = p.LeadGapPercentage
	existing.TargetDailyBudget = p.TargetDailyBudget
	existing.Version++
	existing.UpdatedAt = now
	out := *existing
	return &out, nil
}

func (r *InMemoryPlanRepo) LatestActualBudget(ctx context.Context, segmentID, before string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *models.Plan
	for k, p := range r.plans {
		if k.segmentID != segmentID || k.date >= before || p.ActualDailyBudget <= 0 {
			continue
		}
		if latest == nil || p.Date > latest.Date {
			latest = p
		}
	}
	if latest == nil {
		return 0, nil
	}
	return latest.ActualDailyBudget, nil
}

func (r *InMemoryPlanRepo) UpdatePlanStatus(ctx context.Context, planID string, expectedVersion int64, u models.PlanStatusUpdate) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.byID[planID]
	if !ok {
		return 0, ErrPlanConflict
	}
	p := r.plans[k]
	if expectedVersion != AnyVersion && p.Version != expectedVersion {
		return 0, ErrPlanConflict
	}
	applyStatusUpdate(p, u)
	return p.Version, nil
}

func (r *InMemoryPlanRepo) MarkPlanError(ctx context.Context, segmentID, date, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[segmentDateKey{segmentID, date}]
	if !ok {
		return nil
	}
	applyStatusUpdate(p, models.PlanStatusUpdate{Status: models.OrchestrationError, Notes: notes})
	return nil
}

func applyStatusUpdate(p *models.Plan, u models.PlanStatusUpdate) {
	p.OrchestrationStatus = u.Status
	p.OrchestrationNotes = u.Notes
	if u.ActualDailyBudget != nil {
		p.ActualDailyBudget = *u.ActualDailyBudget
	}
	if u.LastOrchestrationAt != nil {
		t := *u.LastOrchestrationAt
		p.LastOrchestrationAt = &t
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()
}

// InMemoryOrchestrationLog is an append-only slice of log entries.
type InMemoryOrchestrationLog struct {
	mu      sync.RWMutex
	entries []*models.OrchestrationLogEntry
}

// NewInMemoryOrchestrationLog creates an empty orchestration log.
func NewInMemoryOrchestrationLog() *InMemoryOrchestrationLog {
	return &InMemoryOrchestrationLog{}
}

func (l *InMemoryOrchestrationLog) AppendOrchestrationLog(ctx context.Context, e *models.OrchestrationLogEntry) error {
	if e == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *e
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	l.entries = append(l.entries, &cp)
	return nil
}

func (l *InMemoryOrchestrationLog) ListOrchestrationLog(ctx context.Context, segmentID, date string) ([]*models.OrchestrationLogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var res []*models.OrchestrationLogEntry
	for _, e := range l.entries {
		if e.SegmentID == segmentID && (date == "" || e.Date == date) {
			cp := *e
			res = append(res, &cp)
		}
	}
	return res, nil
}

// Len returns the number of entries across all segments.
func (l *InMemoryOrchestrationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// InMemorySuggestionRepo is an append-only slice of suggestions.
type InMemorySuggestionRepo struct {
	mu          sync.RWMutex
	suggestions []*models.OptimizationSuggestion
}

// NewInMemorySuggestionRepo creates an empty suggestion repo.
func NewInMemorySuggestionRepo() *InMemorySuggestionRepo {
	return &InMemorySuggestionRepo{}
}

func (r *InMemorySuggestionRepo) AppendSuggestion(ctx context.Context, s *models.OptimizationSuggestion) error {
	if s == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.suggestions = append(r.suggestions, &cp)
	return nil
}

func (r *InMemorySuggestionRepo) ListSuggestions(ctx context.Context, campaignID string) ([]*models.OptimizationSuggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*models.OptimizationSuggestion
	for _, s := range r.suggestions {
		if campaignID == "" || s.CampaignID == campaignID {
			cp := *s
			res = append(res, &cp)
		}
	}
	return res, nil
}

// InMemoryPerformanceRepo stores daily campaign performance rows.
type InMemoryPerformanceRepo struct {
	mu   sync.RWMutex
	rows []models.CampaignPerformance
}

// NewInMemoryPerformanceRepo creates an empty performance repo.
func NewInMemoryPerformanceRepo() *InMemoryPerformanceRepo {
	return &InMemoryPerformanceRepo{}
}

// AddPerformance appends one day of campaign metrics.
func (r *InMemoryPerformanceRepo) AddPerformance(p models.CampaignPerformance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, p)
}

func (r *InMemoryPerformanceRepo) CampaignTotals(ctx context.Context, campaignIDs []string, from time.Time) (map[string]models.PerformanceTotals, error) {
	wanted := make(map[string]struct{}, len(campaignIDs))
	for _, id := range campaignIDs {
		wanted[id] = struct{}{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	totals := make(map[string]models.PerformanceTotals)
	for _, row := range r.rows {
		if _, ok := wanted[row.CampaignID]; !ok || row.Date.Before(from) {
			continue
		}
		t := totals[row.CampaignID]
		t.Clicks += row.Clicks
		t.Impressions += row.Impressions
		t.CostMicros += row.CostMicros
		t.Conversions += row.Conversions
		t.ConversionValue += row.ConversionValue
		totals[row.CampaignID] = t
	}
	return totals, nil
}

// NewInMemoryRepositories wires a complete in-memory store.
func NewInMemoryRepositories() *Repositories {
	return &Repositories{
		Segments:         NewInMemorySegmentRepo(),
		Leads:            NewInMemoryLeadRepo(),
		Capacity:         NewInMemoryCapacityRepo(),
		Stats:            NewInMemoryStatsRepo(),
		Plans:            NewInMemoryPlanRepo(),
		OrchestrationLog: NewInMemoryOrchestrationLog(),
		Suggestions:      NewInMemorySuggestionRepo(),
		Performance:      NewInMemoryPerformanceRepo(),
	}
}
