package models

import "time"

// Channel identifies the ad channel a budget action targets.
type Channel string

const ChannelGoogleAds Channel = "google_ads"

// ActionType is the direction of a budget adjustment.
type ActionType string

const (
	ActionBudgetIncrease ActionType = "budget_increase"
	ActionBudgetDecrease ActionType = "budget_decrease"
)

// ActionStatus is the outcome of an orchestration attempt.
type ActionStatus string

const (
	ActionSuccess ActionStatus = "success"
	ActionFailed  ActionStatus = "failed"
)

// OrchestrationLogEntry is the immutable audit record of one budget adjustment attempt.
type OrchestrationLogEntry struct {
	ID           string       `json:"id"`
	SegmentID    string       `json:"segment_id"`
	PlanID       string       `json:"plan_id"`
	Date         string       `json:"date"`
	Channel      Channel      `json:"channel"`
	ActionType   ActionType   `json:"action_type"`
	OldValue     float64      `json:"old_value"`
	NewValue     float64      `json:"new_value"`
	Status       ActionStatus `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	ExecutedAt   time.Time    `json:"executed_at"`
}
