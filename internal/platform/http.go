package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"adpilot/internal/config"
	"adpilot/internal/constants"
	"adpilot/internal/logger"
	"adpilot/pkg/errors"
)

type HTTPClient struct {
	baseURL  string
	apiToken string
	client   *http.Client
	logger   logger.Logger
}

func NewHTTPClient(cfg config.PlatformConfig, log logger.Logger) *HTTPClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = constants.DefaultActionTimeout
	}
	return &HTTPClient{
		baseURL:  cfg.BaseURL,
		apiToken: cfg.APIToken,
		client:   &http.Client{Timeout: timeout},
		logger:   log,
	}
}

func (c *HTTPClient) PauseCampaign(ctx context.Context, campaignID string) error {
	return c.post(ctx, fmt.Sprintf("/campaigns/%s/pause", campaignID), nil)
}

func (c *HTTPClient) UpdateBudget(ctx context.Context, campaignID string, newBudget float64) error {
	return c.post(ctx, fmt.Sprintf("/campaigns/%s/budget", campaignID), map[string]interface{}{
		"budget": newBudget,
	})
}

func (c *HTTPClient) UpdateBid(ctx context.Context, campaignID string, newBid float64) error {
	return c.post(ctx, fmt.Sprintf("/campaigns/%s/bid", campaignID), map[string]interface{}{
		"bid": newBid,
	})
}

func (c *HTTPClient) UpdateCreative(ctx context.Context, campaignID string, creativeID string) error {
	return c.post(ctx, fmt.Sprintf("/campaigns/%s/creative", campaignID), map[string]interface{}{
		"creative_id": creativeID,
	})
}

func (c *HTTPClient) DuplicateAdSet(ctx context.Context, campaignID string, adSetID string) error {
	return c.post(ctx, fmt.Sprintf("/campaigns/%s/adsets/%s/duplicate", campaignID, adSetID), nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload map[string]interface{}) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal platform request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build platform request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCollaborator, "platform request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Wrap(
			fmt.Errorf("status %d: %s", resp.StatusCode, string(detail)),
			errors.ErrCollaborator,
			"platform returned non-success status",
		)
	}

	return nil
}
