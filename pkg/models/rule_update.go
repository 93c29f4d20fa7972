package models

import "time"

const (
	RuleChangeCreated = "created"
	RuleChangeUpdated = "updated"
	RuleChangeDeleted = "deleted"
)

// RuleUpdateEvent is published by the rule-management API whenever a tenant's
// rules change; the engine consumes it to invalidate the tenant's cache entry.
type RuleUpdateEvent struct {
	TenantID   string    `json:"tenant_id"`
	RuleID     string    `json:"rule_id,omitempty"`
	ChangeType string    `json:"change_type"`
	OccurredAt time.Time `json:"occurred_at"`
}
