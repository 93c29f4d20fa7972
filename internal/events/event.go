package events

import "time"

// MetricsEvent is one campaign performance snapshot from the metrics stream.
// Derived rates (ctr, cpc, cpm) arrive precomputed by the metrics producer;
// the engine evaluates rules against them as-is.
type MetricsEvent struct {
	CampaignID  string    `json:"campaign_id"`
	TenantID    string    `json:"tenant_id"`
	Timestamp   time.Time `json:"timestamp"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Conversions int64     `json:"conversions"`
	Spend       float64   `json:"spend"`
	Budget      float64   `json:"budget"`
	CTR         float64   `json:"ctr"`
	CPC         float64   `json:"cpc"`
	CPM         float64   `json:"cpm"`
	Frequency   float64   `json:"frequency"`
	Reach       int64     `json:"reach"`
	SampleCount int64     `json:"sample_count"`
}

// Metric returns the named metric value. The boolean is false when the event
// does not carry the metric, which callers treat as "condition not satisfied"
// rather than an error.
func (e *MetricsEvent) Metric(name string) (float64, bool) {
	switch name {
	case "impressions":
		return float64(e.Impressions), true
	case "clicks":
		return float64(e.Clicks), true
	case "conversions":
		return float64(e.Conversions), true
	case "spend":
		return e.Spend, true
	case "budget":
		return e.Budget, true
	case "ctr":
		return e.CTR, true
	case "cpc":
		return e.CPC, true
	case "cpm":
		return e.CPM, true
	case "frequency":
		return e.Frequency, true
	case "reach":
		return float64(e.Reach), true
	default:
		return 0, false
	}
}

// Snapshot captures the metric values recorded alongside executed actions.
func (e *MetricsEvent) Snapshot() map[string]float64 {
	return map[string]float64{
		"impressions": float64(e.Impressions),
		"clicks":      float64(e.Clicks),
		"conversions": float64(e.Conversions),
		"spend":       e.Spend,
		"budget":      e.Budget,
		"ctr":         e.CTR,
		"cpc":         e.CPC,
		"cpm":         e.CPM,
	}
}
