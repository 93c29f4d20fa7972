package quota

import (
	"context"
	"fmt"
	"time"

	"adpilot/internal/constants"
	"adpilot/internal/logger"
	"adpilot/pkg/metrics"
)

// Tracker enforces the per-day execution ceiling for one
// (rule, action type, campaign) triple. Because the underlying increment is
// atomic, N callers racing for the last slot produce exactly one reservation.
type Tracker struct {
	store  Store
	keyTTL time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewTracker(store Store, keyTTL time.Duration, log logger.Logger) *Tracker {
	if keyTTL <= 0 {
		keyTTL = constants.QuotaKeyTTL
	}
	return &Tracker{
		store:  store,
		keyTTL: keyTTL,
		logger: log,
		now:    time.Now,
	}
}

// TryReserve claims one execution slot. A store error denies the reservation:
// without quota accounting no action may run.
func (t *Tracker) TryReserve(ctx context.Context, ruleID, actionType, campaignID string, limit int) (bool, error) {
	key := t.key(ruleID, actionType, campaignID)

	count, err := t.store.IncrWithTTL(ctx, key, t.keyTTL)
	if err != nil {
		metrics.QuotaStoreFailuresTotal.Inc()
		t.logger.ErrorwCtx(ctx, "Quota store error, denying reservation",
			"key", key,
			"error", err,
		)
		return false, err
	}

	if count > int64(limit) {
		metrics.QuotaDeniedTotal.WithLabelValues(actionType).Inc()
		return false, nil
	}
	return true, nil
}

func (t *Tracker) key(ruleID, actionType, campaignID string) string {
	date := t.now().UTC().Format("2006-01-02")
	return fmt.Sprintf("%s:%s:%s:%s:%s", constants.QuotaKeyPrefix, date, ruleID, actionType, campaignID)
}
