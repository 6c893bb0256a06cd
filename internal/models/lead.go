package models

import "time"

// LeadStatus is the lifecycle state of a lead in the SaaS lead table.
type LeadStatus string

const (
	LeadStatusNew      LeadStatus = "new"
	LeadStatusPending  LeadStatus = "pending"
	LeadStatusAccepted LeadStatus = "accepted"
	LeadStatusRejected LeadStatus = "rejected"
)

// Lead is the read model of a generated lead.
type Lead struct {
	ID              string     `json:"id"`
	SegmentID       string     `json:"segment_id"`
	Status          LeadStatus `json:"status"`
	PriceAtPurchase *float64   `json:"price_at_purchase,omitempty"`
	AssignedTo      *string    `json:"assigned_to,omitempty"`
	CampaignID      string     `json:"google_ads_campaign_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// IsPending reports whether the lead still awaits a partner decision.
func (l *Lead) IsPending() bool {
	return l.Status == LeadStatusNew || l.Status == LeadStatusPending
}
