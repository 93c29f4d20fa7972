package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"adpilot/internal/logger"
	"adpilot/internal/rules"
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func insertRule(t *testing.T, db *sql.DB, rule rules.Rule) {
	t.Helper()

	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		t.Fatalf("failed to marshal conditions: %v", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		t.Fatalf("failed to marshal actions: %v", err)
	}

	var gate interface{}
	if rule.ConfidenceGate != nil {
		encoded, err := json.Marshal(rule.ConfidenceGate)
		if err != nil {
			t.Fatalf("failed to marshal confidence gate: %v", err)
		}
		gate = encoded
	}

	var appliesTo interface{}
	if rule.AppliesTo != "" {
		appliesTo = rule.AppliesTo
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx, `
		INSERT INTO automation_rules (id, tenant_id, name, active, conditions, actions, confidence_gate, applies_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rule.ID, rule.TenantID, rule.Name, rule.Active, conditions, actions, gate, appliesTo)
	if err != nil {
		t.Fatalf("failed to insert rule: %v", err)
	}
}

func pauseRuleFixture(id, tenantID string) rules.Rule {
	return rules.Rule{
		ID:       id,
		TenantID: tenantID,
		Name:     "low ctr pause",
		Active:   true,
		Conditions: []rules.Condition{
			{Metric: rules.MetricCTR, Operator: rules.OpLess, Threshold: 0.01, MinSampleCount: 50},
		},
		Actions: []rules.Action{
			{Type: rules.ActionPauseCampaign, Priority: 1, MaxExecutionsPerDay: 1},
		},
	}
}
