package models

import "time"

// ChangeType is the kind of change an optimizer proposes.
type ChangeType string

const (
	ChangeNone            ChangeType = "NO_CHANGE"
	ChangeBudgetIncrease  ChangeType = "BUDGET_INCREASE"
	ChangeBudgetDecrease  ChangeType = "BUDGET_DECREASE"
	ChangePauseCandidates ChangeType = "PAUSE_CANDIDATES"
)

// OptimizationSuggestion is a recorded, unapplied optimizer recommendation.
type OptimizationSuggestion struct {
	ID                    string     `json:"id"`
	SegmentID             string     `json:"segment_id,omitempty"`
	CampaignID            string     `json:"google_ads_campaign_id"`
	SuggestedChangeType   ChangeType `json:"suggested_change_type"`
	SuggestedBudgetMicros int64      `json:"suggested_new_budget_micros"`
	CurrentBudgetMicros   int64      `json:"current_budget_micros"`
	Reason                string     `json:"reason"`
	CPL                   *float64   `json:"cpl_eur,omitempty"`
	TargetCPL             float64    `json:"target_cpl_eur"`
	LeadsCount            int        `json:"leads_count"`
	CreatedAt             time.Time  `json:"created_at"`
}
