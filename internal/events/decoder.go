package events

import (
	"encoding/json"
	"fmt"
)

// DecodeError marks an event as malformed. Malformed events are counted and
// skipped, never retried.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed metrics event: %s", e.Reason)
}

func IsDecodeError(err error) bool {
	_, ok := err.(*DecodeError)
	return ok
}

// Decode parses and validates a raw metrics event payload.
func Decode(payload []byte) (*MetricsEvent, error) {
	var ev MetricsEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	if err := validate(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func validate(ev *MetricsEvent) error {
	if ev.CampaignID == "" {
		return &DecodeError{Reason: "missing campaign_id"}
	}
	if ev.TenantID == "" {
		return &DecodeError{Reason: "missing tenant_id"}
	}
	if ev.Impressions < 0 || ev.Clicks < 0 || ev.Conversions < 0 || ev.Reach < 0 {
		return &DecodeError{Reason: "negative counter value"}
	}
	if ev.Spend < 0 {
		return &DecodeError{Reason: "negative spend"}
	}
	if ev.SampleCount < 0 {
		return &DecodeError{Reason: "negative sample_count"}
	}
	if ev.Clicks > ev.Impressions {
		return &DecodeError{Reason: "clicks exceed impressions"}
	}
	return nil
}
