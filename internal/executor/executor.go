package executor

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"adpilot/internal/constants"
	"adpilot/internal/events"
	"adpilot/internal/logger"
	"adpilot/internal/platform"
	"adpilot/internal/quota"
	"adpilot/internal/rules"
	"adpilot/pkg/metrics"
	"adpilot/pkg/models"
)

// AlertFunc delivers alert_only actions to the alerts queue.
type AlertFunc func(ctx context.Context, alert models.Alert) error

type ExecutionResult struct {
	Action     rules.Action
	Status     models.ExecutionStatus
	Error      string
	ExecutedAt time.Time
}

// Actions for one rule+campaign pair must never run concurrently: a second
// event for the same campaign has to observe the first event's quota
// reservations and keep platform calls ordered. Striped locks keep the lock
// table bounded; a hash collision only over-serializes.
const lockStripes = 64

// Executor runs a matched rule's actions in ascending priority order, strictly
// sequentially per rule+campaign. The rate limiter is shared across all
// invocations so concurrent event processing cannot exceed the platform's
// tolerated call rate.
type Executor struct {
	platform      platform.Client
	quota         *quota.Tracker
	limiter       *rate.Limiter
	publishAlert  AlertFunc
	logger        logger.Logger
	actionTimeout time.Duration
	locks         [lockStripes]sync.Mutex
}

type Options struct {
	PlatformRPS   float64
	PlatformBurst int
	ActionTimeout time.Duration
}

func New(client platform.Client, tracker *quota.Tracker, publishAlert AlertFunc, opts Options, log logger.Logger) *Executor {
	rps := opts.PlatformRPS
	if rps <= 0 {
		rps = constants.DefaultPlatformRPS
	}
	burst := opts.PlatformBurst
	if burst < 1 {
		burst = 1
	}
	timeout := opts.ActionTimeout
	if timeout <= 0 {
		timeout = constants.DefaultActionTimeout
	}
	return &Executor{
		platform:      client,
		quota:         tracker,
		limiter:       rate.NewLimiter(rate.Limit(rps), burst),
		publishAlert:  publishAlert,
		logger:        log,
		actionTimeout: timeout,
	}
}

// ExecuteActions attempts every action of the rule against the event's
// campaign. Quota denial and per-action failures are recorded in the results
// and never abort the remaining actions.
func (e *Executor) ExecuteActions(ctx context.Context, rule *rules.Rule, event *events.MetricsEvent) []ExecutionResult {
	mu := e.lockFor(rule.ID, event.CampaignID)
	mu.Lock()
	defer mu.Unlock()

	sorted := rule.SortedActions()
	results := make([]ExecutionResult, 0, len(sorted))

	for _, action := range sorted {
		result := ExecutionResult{Action: action, ExecutedAt: time.Now().UTC()}

		allowed, err := e.quota.TryReserve(ctx, rule.ID, string(action.Type), event.CampaignID, action.MaxExecutionsPerDay)
		if err != nil || !allowed {
			result.Status = models.ExecutionSkippedQuota
			if err != nil {
				result.Error = fmt.Sprintf("quota store error: %v", err)
			}
			metrics.ActionsExecutedTotal.WithLabelValues(string(action.Type), string(result.Status)).Inc()
			results = append(results, result)
			continue
		}

		if err := e.limiter.Wait(ctx); err != nil {
			result.Status = models.ExecutionFailed
			result.Error = fmt.Sprintf("pacing interrupted: %v", err)
			metrics.ActionsExecutedTotal.WithLabelValues(string(action.Type), string(result.Status)).Inc()
			results = append(results, result)
			continue
		}

		start := time.Now()
		err = e.executeAction(ctx, rule, event, action)
		metrics.ObserveActionDuration(string(action.Type), time.Since(start))

		if err != nil {
			result.Status = models.ExecutionFailed
			result.Error = err.Error()
			e.logger.WarnwCtx(ctx, "Action execution failed",
				"rule_id", rule.ID,
				"campaign_id", event.CampaignID,
				"action_type", action.Type,
				"error", err,
			)
		} else {
			result.Status = models.ExecutionSuccess
		}
		metrics.ActionsExecutedTotal.WithLabelValues(string(action.Type), string(result.Status)).Inc()
		results = append(results, result)
	}

	return results
}

func (e *Executor) lockFor(ruleID, campaignID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(ruleID))
	h.Write([]byte{0})
	h.Write([]byte(campaignID))
	return &e.locks[h.Sum32()%lockStripes]
}

func (e *Executor) executeAction(ctx context.Context, rule *rules.Rule, event *events.MetricsEvent, action rules.Action) error {
	actionCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()

	switch action.Type {
	case rules.ActionPauseCampaign:
		return e.platform.PauseCampaign(actionCtx, event.CampaignID)

	case rules.ActionIncreaseBudget:
		percent := action.FloatParam("percent", constants.DefaultBudgetChangePercent)
		newBudget := event.Budget * (1 + percent/100)
		return e.platform.UpdateBudget(actionCtx, event.CampaignID, newBudget)

	case rules.ActionDecreaseBudget:
		percent := action.FloatParam("percent", constants.DefaultBudgetChangePercent)
		newBudget := event.Budget * (1 - percent/100)
		return e.platform.UpdateBudget(actionCtx, event.CampaignID, newBudget)

	case rules.ActionChangeBid:
		percent := action.FloatParam("adjust_percent", constants.DefaultBidChangePercent)
		newBid := event.CPC * (1 + percent/100)
		return e.platform.UpdateBid(actionCtx, event.CampaignID, newBid)

	case rules.ActionRotateCreative:
		creativeID := action.StringParam("backup_creative_id", "")
		if creativeID == "" {
			return fmt.Errorf("rotate_creative requires backup_creative_id parameter")
		}
		return e.platform.UpdateCreative(actionCtx, event.CampaignID, creativeID)

	case rules.ActionDuplicateAdSet:
		adSetID := action.StringParam("adset_id", "")
		if adSetID == "" {
			return fmt.Errorf("duplicate_adset requires adset_id parameter")
		}
		return e.platform.DuplicateAdSet(actionCtx, event.CampaignID, adSetID)

	case rules.ActionAlertOnly:
		return e.sendAlert(actionCtx, rule, event, action)

	default:
		return fmt.Errorf("unsupported action type: %s", action.Type)
	}
}

func (e *Executor) sendAlert(ctx context.Context, rule *rules.Rule, event *events.MetricsEvent, action rules.Action) error {
	message := action.StringParam("message", fmt.Sprintf("rule %q matched for campaign %s", rule.Name, event.CampaignID))
	severity := models.AlertSeverity(action.StringParam("severity", string(models.AlertSeverityWarning)))

	alert := models.Alert{
		AlertID:    uuid.New().String(),
		TenantID:   event.TenantID,
		CampaignID: event.CampaignID,
		RuleID:     rule.ID,
		Severity:   severity,
		Source:     models.AlertSourceRuleAction,
		Message:    message,
		Timestamp:  time.Now().UTC(),
	}
	return e.publishAlert(ctx, alert)
}
