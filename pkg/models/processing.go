package models

import "time"

// ProcessingLog is the per-event summary published to the processing-logs
// topic after an event completes its pipeline.
type ProcessingLog struct {
	CampaignID      string          `json:"campaign_id"`
	TenantID        string          `json:"tenant_id"`
	ProcessedAt     time.Time       `json:"processed_at"`
	TriggeredRules  []string        `json:"triggered_rules"`
	MetricsSnapshot MetricsSnapshot `json:"metrics_snapshot"`
}
