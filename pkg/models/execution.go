package models

import "time"

type ExecutionStatus string

const (
	ExecutionSuccess      ExecutionStatus = "success"
	ExecutionFailed       ExecutionStatus = "failed"
	ExecutionSkippedQuota ExecutionStatus = "skipped_quota"
)

// ExecutionRecord is the append-only audit entry for one attempted action.
// Written once to the audit store and published to the executions log topic;
// never mutated afterward.
type ExecutionRecord struct {
	ExecutionID   string          `json:"execution_id" bson:"execution_id"`
	RuleID        string          `json:"rule_id" bson:"rule_id"`
	CampaignID    string          `json:"campaign_id" bson:"campaign_id"`
	TenantID      string          `json:"tenant_id" bson:"tenant_id"`
	ActionType    string          `json:"action_type" bson:"action_type"`
	AttemptedAt   time.Time       `json:"attempted_at" bson:"attempted_at"`
	Status        ExecutionStatus `json:"status" bson:"status"`
	Error         string          `json:"error,omitempty" bson:"error,omitempty"`
	BeforeMetrics MetricsSnapshot `json:"before_metrics" bson:"before_metrics"`
}

func (r ExecutionRecord) Succeeded() bool {
	return r.Status == ExecutionSuccess
}

// MetricsSnapshot captures the campaign metrics observed when a rule fired.
type MetricsSnapshot struct {
	CTR         float64 `json:"ctr" bson:"ctr"`
	CPC         float64 `json:"cpc" bson:"cpc"`
	Spend       float64 `json:"spend" bson:"spend"`
	Conversions int64   `json:"conversions" bson:"conversions"`
	Budget      float64 `json:"budget" bson:"budget"`
}
