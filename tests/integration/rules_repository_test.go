package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adpilot/internal/rules"
)

func TestPostgresRepository_GetActiveRules(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	ctx := context.Background()

	insertRule(t, infra.PostgresDB, pauseRuleFixture("rule-1", "tenant-1"))

	budgetRule := pauseRuleFixture("rule-2", "tenant-1")
	budgetRule.Name = "overspend throttle"
	budgetRule.Conditions = []rules.Condition{
		{Metric: rules.MetricSpend, Operator: rules.OpGreater, Threshold: 500},
	}
	budgetRule.Actions = []rules.Action{
		{Type: rules.ActionDecreaseBudget, Priority: 1, MaxExecutionsPerDay: 2,
			Parameters: map[string]interface{}{"percent": 25.0}},
		{Type: rules.ActionAlertOnly, Priority: 2, MaxExecutionsPerDay: 10},
	}
	budgetRule.ConfidenceGate = &rules.ConfidenceGate{
		Enabled:             true,
		ConfidenceThreshold: 0.7,
		FallbackToRule:      true,
	}
	budgetRule.AppliesTo = `campaign.budget >= 100.0`
	insertRule(t, infra.PostgresDB, budgetRule)

	inactive := pauseRuleFixture("rule-3", "tenant-1")
	inactive.Active = false
	insertRule(t, infra.PostgresDB, inactive)

	otherTenant := pauseRuleFixture("rule-4", "tenant-2")
	insertRule(t, infra.PostgresDB, otherTenant)

	repo := rules.NewRepository(infra.PostgresDB, createTestLogger(), nil)

	loaded, err := repo.GetActiveRules(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2, "inactive and foreign-tenant rules are excluded")

	assert.Equal(t, "rule-1", loaded[0].ID)
	assert.Equal(t, "rule-2", loaded[1].ID)

	gate := loaded[1].ConfidenceGate
	require.NotNil(t, gate)
	assert.True(t, gate.Enabled)
	assert.InDelta(t, 0.7, gate.ConfidenceThreshold, 1e-9)
	assert.True(t, gate.FallbackToRule)
	assert.Equal(t, `campaign.budget >= 100.0`, loaded[1].AppliesTo)
	assert.InDelta(t, 25.0, loaded[1].Actions[0].FloatParam("percent", 0), 1e-9)
}

func TestPostgresRepository_ExcludesInvalidRules(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	ctx := context.Background()

	insertRule(t, infra.PostgresDB, pauseRuleFixture("good-rule", "tenant-1"))

	duplicate := pauseRuleFixture("bad-rule", "tenant-1")
	duplicate.Actions = []rules.Action{
		{Type: rules.ActionPauseCampaign, Priority: 1, MaxExecutionsPerDay: 1},
		{Type: rules.ActionAlertOnly, Priority: 1, MaxExecutionsPerDay: 1},
	}
	insertRule(t, infra.PostgresDB, duplicate)

	var excluded []string
	repo := rules.NewRepository(infra.PostgresDB, createTestLogger(),
		func(ctx context.Context, tenantID, ruleID string, cause error) {
			excluded = append(excluded, ruleID)
		})

	loaded, err := repo.GetActiveRules(ctx, "tenant-1")
	require.NoError(t, err)

	require.Len(t, loaded, 1)
	assert.Equal(t, "good-rule", loaded[0].ID)
	assert.Equal(t, []string{"bad-rule"}, excluded, "duplicate priorities are rejected at load time")
}

func TestPostgresRepository_DefaultsMaxExecutions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)

	rule := pauseRuleFixture("rule-1", "tenant-1")
	rule.Actions[0].MaxExecutionsPerDay = 0
	insertRule(t, infra.PostgresDB, rule)

	repo := rules.NewRepository(infra.PostgresDB, createTestLogger(), nil)
	loaded, err := repo.GetActiveRules(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 5, loaded[0].Actions[0].MaxExecutionsPerDay)
}
