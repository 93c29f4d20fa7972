package rules

import (
	"fmt"
	"sort"
	"time"

	"adpilot/internal/constants"
)

type MetricType string

const (
	MetricCTR         MetricType = "ctr"
	MetricCPC         MetricType = "cpc"
	MetricCPM         MetricType = "cpm"
	MetricSpend       MetricType = "spend"
	MetricBudget      MetricType = "budget"
	MetricConversions MetricType = "conversions"
	MetricImpressions MetricType = "impressions"
	MetricClicks      MetricType = "clicks"
	MetricFrequency   MetricType = "frequency"
	MetricReach       MetricType = "reach"
)

func (m MetricType) Valid() bool {
	switch m {
	case MetricCTR, MetricCPC, MetricCPM, MetricSpend, MetricBudget,
		MetricConversions, MetricImpressions, MetricClicks, MetricFrequency, MetricReach:
		return true
	}
	return false
}

type Operator string

const (
	OpGreater   Operator = ">"
	OpLess      Operator = "<"
	OpGreaterEq Operator = ">="
	OpLessEq    Operator = "<="
	OpEqual     Operator = "=="
	OpNotEqual  Operator = "!="
)

func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterEq, OpLessEq, OpEqual, OpNotEqual:
		return true
	}
	return false
}

type ActionType string

const (
	ActionPauseCampaign  ActionType = "pause_campaign"
	ActionIncreaseBudget ActionType = "increase_budget"
	ActionDecreaseBudget ActionType = "decrease_budget"
	ActionChangeBid      ActionType = "change_bid"
	ActionRotateCreative ActionType = "rotate_creative"
	ActionAlertOnly      ActionType = "alert_only"
	ActionDuplicateAdSet ActionType = "duplicate_adset"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionPauseCampaign, ActionIncreaseBudget, ActionDecreaseBudget,
		ActionChangeBid, ActionRotateCreative, ActionAlertOnly, ActionDuplicateAdSet:
		return true
	}
	return false
}

type Condition struct {
	Metric         MetricType `json:"metric"`
	Operator       Operator   `json:"operator"`
	Threshold      float64    `json:"threshold"`
	MinSampleCount int64      `json:"min_sample_count"`
	WindowMinutes  int        `json:"window_minutes,omitempty"`
}

type ConfidenceGate struct {
	Enabled             bool    `json:"enabled"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	FallbackToRule      bool    `json:"fallback_to_rule"`
}

type Action struct {
	Type                ActionType             `json:"type"`
	Priority            int                    `json:"priority"`
	Parameters          map[string]interface{} `json:"parameters,omitempty"`
	MaxExecutionsPerDay int                    `json:"max_executions_per_day"`
}

// FloatParam reads a numeric parameter, tolerating the json number types the
// rule-management API produces.
func (a Action) FloatParam(key string, def float64) float64 {
	v, ok := a.Parameters[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

func (a Action) StringParam(key string, def string) string {
	v, ok := a.Parameters[key]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

type Rule struct {
	ID             string
	TenantID       string
	Name           string
	Active         bool
	Conditions     []Condition
	Actions        []Action
	ConfidenceGate *ConfidenceGate
	AppliesTo      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate enforces the load-time invariants. Rules failing validation are
// excluded from the active set rather than mis-evaluated at runtime.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %s has no conditions", r.ID)
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("rule %s has no actions", r.ID)
	}

	for i, c := range r.Conditions {
		if !c.Metric.Valid() {
			return fmt.Errorf("rule %s condition %d: unknown metric %q", r.ID, i, c.Metric)
		}
		if !c.Operator.Valid() {
			return fmt.Errorf("rule %s condition %d: unknown operator %q", r.ID, i, c.Operator)
		}
		if c.MinSampleCount < 0 {
			return fmt.Errorf("rule %s condition %d: negative min_sample_count", r.ID, i)
		}
	}

	seen := make(map[int]ActionType, len(r.Actions))
	for i, a := range r.Actions {
		if !a.Type.Valid() {
			return fmt.Errorf("rule %s action %d: unknown action type %q", r.ID, i, a.Type)
		}
		if prev, dup := seen[a.Priority]; dup {
			return fmt.Errorf("rule %s: duplicate action priority %d (%s and %s)", r.ID, a.Priority, prev, a.Type)
		}
		seen[a.Priority] = a.Type
	}

	if g := r.ConfidenceGate; g != nil && g.Enabled {
		if g.ConfidenceThreshold < 0 || g.ConfidenceThreshold > 1 {
			return fmt.Errorf("rule %s: confidence threshold %.3f outside [0,1]", r.ID, g.ConfidenceThreshold)
		}
	}

	return nil
}

// Normalize applies parameter defaults after a successful Validate.
func (r *Rule) Normalize() {
	for i := range r.Actions {
		if r.Actions[i].MaxExecutionsPerDay < 1 {
			r.Actions[i].MaxExecutionsPerDay = constants.DefaultMaxExecutionsPerDay
		}
	}
}

// SortedActions returns the actions in execution order, lowest priority
// number first. The receiver's slice is not modified.
func (r *Rule) SortedActions() []Action {
	sorted := make([]Action, len(r.Actions))
	copy(sorted, r.Actions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// PrimaryAction is the highest-priority action, used as the subject of
// confidence predictions.
func (r *Rule) PrimaryAction() *Action {
	if len(r.Actions) == 0 {
		return nil
	}
	sorted := r.SortedActions()
	return &sorted[0]
}
