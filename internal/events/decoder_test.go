package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ValidEvent(t *testing.T) {
	payload := []byte(`{
		"campaign_id": "camp-1",
		"tenant_id": "tenant-1",
		"timestamp": "2026-08-29T10:00:00Z",
		"impressions": 10000,
		"clicks": 150,
		"conversions": 12,
		"spend": 42.5,
		"budget": 100.0,
		"ctr": 0.015,
		"cpc": 0.28,
		"sample_count": 10000
	}`)

	ev, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "camp-1", ev.CampaignID)
	assert.Equal(t, "tenant-1", ev.TenantID)
	assert.Equal(t, int64(10000), ev.Impressions)
	assert.Equal(t, int64(150), ev.Clicks)
	assert.InDelta(t, 0.015, ev.CTR, 1e-9)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), ev.Timestamp)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		reason  string
	}{
		{
			name:    "invalid json",
			payload: `{not json`,
			reason:  "invalid json",
		},
		{
			name:    "missing campaign id",
			payload: `{"tenant_id": "t1", "impressions": 10}`,
			reason:  "missing campaign_id",
		},
		{
			name:    "missing tenant id",
			payload: `{"campaign_id": "c1", "impressions": 10}`,
			reason:  "missing tenant_id",
		},
		{
			name:    "negative impressions",
			payload: `{"campaign_id": "c1", "tenant_id": "t1", "impressions": -5}`,
			reason:  "negative counter value",
		},
		{
			name:    "negative spend",
			payload: `{"campaign_id": "c1", "tenant_id": "t1", "spend": -1.5}`,
			reason:  "negative spend",
		},
		{
			name:    "clicks exceed impressions",
			payload: `{"campaign_id": "c1", "tenant_id": "t1", "impressions": 10, "clicks": 20}`,
			reason:  "clicks exceed impressions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.payload))
			require.Error(t, err)
			assert.Nil(t, ev)
			assert.True(t, IsDecodeError(err))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestMetricsEvent_Metric(t *testing.T) {
	ev := &MetricsEvent{
		Impressions: 1000,
		Clicks:      50,
		Spend:       12.5,
		CTR:         0.05,
	}

	v, ok := ev.Metric("impressions")
	assert.True(t, ok)
	assert.Equal(t, 1000.0, v)

	v, ok = ev.Metric("ctr")
	assert.True(t, ok)
	assert.InDelta(t, 0.05, v, 1e-9)

	_, ok = ev.Metric("unknown_metric")
	assert.False(t, ok)
}
