package models

import (
	"errors"
	"time"
)

// OrchestrationStatus tracks a plan through budget orchestration.
type OrchestrationStatus string

const (
	OrchestrationPending    OrchestrationStatus = "pending"
	OrchestrationProcessing OrchestrationStatus = "processing"
	OrchestrationCompleted  OrchestrationStatus = "completed"
	OrchestrationError      OrchestrationStatus = "error"
)

// Plan is the demand plan for one segment on one date.
type Plan struct {
	ID                string  `json:"id"`
	SegmentID         string  `json:"segment_id"`
	Date              string  `json:"date"` // YYYY-MM-DD
	TargetLeadsPerDay int     `json:"target_leads_per_day"`
	LeadGap           int     `json:"lead_gap"` // target - actual; positive = shortage
	LeadGapPercentage float64 `json:"lead_gap_percentage"`

	TargetDailyBudget float64 `json:"target_daily_budget_google_ads"`
	ActualDailyBudget float64 `json:"actual_daily_budget_google_ads"`

	OrchestrationStatus OrchestrationStatus `json:"orchestration_status"`
	OrchestrationNotes  string              `json:"orchestration_notes,omitempty"`
	LastOrchestrationAt *time.Time          `json:"last_orchestration_at,omitempty"`

	// Version increments on every write; status transitions are conditional on it.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentBudget is the last known daily budget for the plan's campaign.
func (p *Plan) CurrentBudget() float64 {
	if p.ActualDailyBudget > 0 {
		return p.ActualDailyBudget
	}
	if p.TargetDailyBudget > 0 {
		return p.TargetDailyBudget
	}
	return 0
}

// Validate checks plan identity fields.
func (p *Plan) Validate() error {
	if p.SegmentID == "" {
		return errors.New("plan segment_id is required")
	}
	if _, err := time.Parse(DateLayout, p.Date); err != nil {
		return errors.New("plan date must be YYYY-MM-DD")
	}
	return nil
}

// PlanStatusUpdate is a status transition written by the orchestrator.
// ActualDailyBudget is only written when non-nil.
type PlanStatusUpdate struct {
	Status              OrchestrationStatus
	Notes               string
	ActualDailyBudget   *float64
	LastOrchestrationAt *time.Time
}

// DateLayout is the calendar date format used for every (segment, date) key.
const DateLayout = "2006-01-02"
