// Package leadflow implements the daily lead flow control loop: aggregate
// lead statistics per segment, plan demand against partner capacity, move
// ad budgets toward the gap and optimize the running campaigns.
package leadflow

import (
	"fmt"
	"time"
)

// Stage names used for scheduling, metrics and the run ledger.
const (
	StageAggregate       = "aggregate"
	StagePlan            = "plan"
	StageOrchestrate     = "orchestrate"
	StageOptimize        = "optimize"
	StageOptimizeBudgets = "optimize-budgets"
)

// Stages lists every runnable stage in pipeline order.
var Stages = []string{StageAggregate, StagePlan, StageOrchestrate, StageOptimize, StageOptimizeBudgets}

// ItemResult is the outcome of one segment or campaign inside a stage.
type ItemResult struct {
	SegmentID  string `json:"segment_id,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StageSummary is the JSON-serializable report of one stage run.
type StageSummary struct {
	Stage      string       `json:"stage"`
	Date       string       `json:"date,omitempty"`
	Success    bool         `json:"success"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Total      int          `json:"total"`
	Mode       string       `json:"mode,omitempty"`
	Message    string       `json:"message,omitempty"`
	Error      string       `json:"error,omitempty"`
	Results    []ItemResult `json:"results"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

func newSummary(stage, date string, now time.Time) *StageSummary {
	return &StageSummary{
		Stage:     stage,
		Date:      date,
		Success:   true,
		Results:   []ItemResult{},
		StartedAt: now,
	}
}

func (s *StageSummary) add(r ItemResult) {
	s.Results = append(s.Results, r)
	s.Total++
	if r.Success {
		s.Succeeded++
	} else {
		s.Failed++
	}
}

// finish stamps the end time. A stage succeeds only when no item failed.
func (s *StageSummary) finish(now time.Time) *StageSummary {
	s.FinishedAt = now
	s.Success = s.Failed == 0
	if !s.Success {
		s.Error = fmt.Sprintf("%d of %d items failed", s.Failed, s.Total)
	}
	return s
}

// Optimizer modes.
const (
	ModeAuto            = "auto"
	ModeSuggestionsOnly = "suggestions_only"
)

func modeFor(autoApply bool) string {
	if autoApply {
		return ModeAuto
	}
	return ModeSuggestionsOnly
}
