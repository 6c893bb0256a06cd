package models

import "time"

// DailyStats is the aggregated lead generation snapshot for one segment on one date.
type DailyStats struct {
	SegmentID      string `json:"segment_id"`
	Date           string `json:"date"` // YYYY-MM-DD
	LeadsGenerated int    `json:"leads_generated"`
	LeadsAccepted  int    `json:"leads_accepted"`
	LeadsRejected  int    `json:"leads_rejected"`
	LeadsPending   int    `json:"leads_pending"`

	// AvgCPL is nil when no accepted lead carried a price.
	AvgCPL       *float64 `json:"avg_cpl"`
	TotalRevenue float64  `json:"total_revenue"`

	AdSpend       float64 `json:"google_ads_spend"`
	AdClicks      int64   `json:"google_ads_clicks"`
	AdImpressions int64   `json:"google_ads_impressions"`

	PartnerLeads       int `json:"partner_leads"`
	CapacityPartners   int `json:"capacity_partners"`
	CapacityTotalLeads int `json:"capacity_total_leads"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CampaignPerformance is one day of imported campaign metrics.
type CampaignPerformance struct {
	CampaignID      string    `json:"google_ads_campaign_id"`
	Date            time.Time `json:"date"`
	Clicks          int64     `json:"clicks"`
	Impressions     int64     `json:"impressions"`
	CostMicros      int64     `json:"cost_micros"`
	Conversions     float64   `json:"conversions"`
	ConversionValue float64   `json:"conv_value"`
}

// PerformanceTotals is campaign performance summed over a window.
type PerformanceTotals struct {
	Clicks          int64   `json:"clicks"`
	Impressions     int64   `json:"impressions"`
	CostMicros      int64   `json:"cost_micros"`
	Conversions     float64 `json:"conversions"`
	ConversionValue float64 `json:"conv_value"`
}
