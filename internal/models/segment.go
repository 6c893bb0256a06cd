package models

import "errors"

// Segment is a branch x region market partition driving one ad campaign.
type Segment struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	Branch         string  `json:"branch"`
	Region         string  `json:"region"`
	IsActive       bool    `json:"is_active"`
	TargetCPL      float64 `json:"target_cpl_eur,omitempty"`       // 0 = use configured default
	MinDailyBudget float64 `json:"min_daily_budget_eur,omitempty"` // 0 = use configured default
	MaxDailyBudget float64 `json:"max_daily_budget_eur,omitempty"` // 0 = use configured default
	CampaignID     string  `json:"google_ads_campaign_id,omitempty"`
	CustomerID     string  `json:"google_ads_customer_id,omitempty"`
}

// Validate checks the fields the pipeline depends on.
func (s *Segment) Validate() error {
	if s.ID == "" {
		return errors.New("segment id is required")
	}
	if s.Code == "" {
		return errors.New("segment code is required")
	}
	if s.MinDailyBudget < 0 || s.MaxDailyBudget < 0 {
		return errors.New("segment budgets must be non-negative")
	}
	if s.MaxDailyBudget > 0 && s.MinDailyBudget > s.MaxDailyBudget {
		return errors.New("segment min budget exceeds max budget")
	}
	return nil
}

// HasCampaign reports whether the segment is linked to an ad campaign.
func (s *Segment) HasCampaign() bool {
	return s.CampaignID != ""
}

// Capacity is the partner capacity snapshot for a segment.
type Capacity struct {
	CapacityPartners   int `json:"capacity_partners"`
	CapacityTotalLeads int `json:"capacity_total_leads"`
	CurrentOpenLeads   int `json:"current_open_leads"`
}
