package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"adpilot/internal/logger"
	"adpilot/pkg/metrics"
)

type Repository interface {
	GetActiveRules(ctx context.Context, tenantID string) ([]Rule, error)
}

// InvalidRuleFunc is called for each rule excluded at load time so the caller
// can raise an operational alert.
type InvalidRuleFunc func(ctx context.Context, tenantID, ruleID string, cause error)

type PostgresRepository struct {
	db        *sql.DB
	logger    logger.Logger
	onInvalid InvalidRuleFunc
}

func NewRepository(db *sql.DB, log logger.Logger, onInvalid InvalidRuleFunc) Repository {
	return &PostgresRepository{db: db, logger: log, onInvalid: onInvalid}
}

func (r *PostgresRepository) GetActiveRules(ctx context.Context, tenantID string) ([]Rule, error) {
	query := `
		SELECT id, tenant_id, name, active, conditions, actions, confidence_gate, applies_to, created_at, updated_at
		FROM automation_rules
		WHERE tenant_id = $1 AND active = true
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}

		if verr := rule.Validate(); verr != nil {
			metrics.RulesRejectedTotal.WithLabelValues("validation").Inc()
			r.logger.WarnwCtx(ctx, "Excluding invalid rule from active set",
				"rule_id", rule.ID,
				"tenant_id", tenantID,
				"error", verr,
			)
			if r.onInvalid != nil {
				r.onInvalid(ctx, tenantID, rule.ID, verr)
			}
			continue
		}
		rule.Normalize()
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return rules, nil
}

func scanRule(rows *sql.Rows) (*Rule, error) {
	var (
		rule           Rule
		conditionsJSON []byte
		actionsJSON    []byte
		gateJSON       []byte
		appliesTo      sql.NullString
	)

	if err := rows.Scan(
		&rule.ID,
		&rule.TenantID,
		&rule.Name,
		&rule.Active,
		&conditionsJSON,
		&actionsJSON,
		&gateJSON,
		&appliesTo,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	if err := json.Unmarshal(conditionsJSON, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode conditions for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal(actionsJSON, &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions for rule %s: %w", rule.ID, err)
	}
	if len(gateJSON) > 0 {
		var gate ConfidenceGate
		if err := json.Unmarshal(gateJSON, &gate); err != nil {
			return nil, fmt.Errorf("failed to decode confidence gate for rule %s: %w", rule.ID, err)
		}
		rule.ConfidenceGate = &gate
	}
	if appliesTo.Valid {
		rule.AppliesTo = appliesTo.String
	}

	return &rule, nil
}
