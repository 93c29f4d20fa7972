package models

import "time"

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

type AlertSource string

const (
	AlertSourceRuleAction AlertSource = "rule_action"
	AlertSourceRuleLoad   AlertSource = "rule_load"
	AlertSourceSupervisor AlertSource = "supervisor"
)

// Alert is published to the alerts queue by alert_only actions, by rule-load
// validation failures, and by fatal supervisor states.
type Alert struct {
	AlertID    string        `json:"alert_id"`
	TenantID   string        `json:"tenant_id,omitempty"`
	CampaignID string        `json:"campaign_id,omitempty"`
	RuleID     string        `json:"rule_id,omitempty"`
	Severity   AlertSeverity `json:"severity"`
	Source     AlertSource   `json:"source"`
	Message    string        `json:"message"`
	Timestamp  time.Time     `json:"timestamp"`
}
