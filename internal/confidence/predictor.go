package confidence

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
	"adpilot/pkg/circuitbreaker"
	"adpilot/pkg/errors"
)

// Prediction is the ML collaborator's judgment for one proposed action.
type Prediction struct {
	Confidence           float64 `json:"confidence"`
	PredictedImprovement float64 `json:"predicted_improvement"`
}

type Predictor interface {
	Predict(ctx context.Context, ruleID string, actionType string, features map[string]float64) (*Prediction, error)
}

type predictRequest struct {
	RuleID     string             `json:"rule_id"`
	ActionType string             `json:"action_type"`
	Features   map[string]float64 `json:"features"`
}

type HTTPPredictor struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

func NewHTTPPredictor(cfg config.ConfidenceConfig, log logger.Logger) *HTTPPredictor {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = constants.DefaultPredictTimeout
	}
	return &HTTPPredictor{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

func (p *HTTPPredictor) Predict(ctx context.Context, ruleID string, actionType string, features map[string]float64) (*Prediction, error) {
	body, err := json.Marshal(predictRequest{
		RuleID:     ruleID,
		ActionType: actionType,
		Features:   features,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCollaborator, "confidence service request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Wrap(
			fmt.Errorf("status %d: %s", resp.StatusCode, string(payload)),
			errors.ErrCollaborator,
			"confidence service returned non-OK status",
		)
	}

	var prediction Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, errors.Wrap(err, errors.ErrCollaborator, "failed to decode prediction")
	}

	return &prediction, nil
}

// BreakerPredictor shields the gate from a slow or flapping ML collaborator.
// Callers already treat any predictor error as confidence 0, so an open
// breaker simply fast-fails into that path.
type BreakerPredictor struct {
	inner   Predictor
	breaker *circuitbreaker.Wrapper
}

func NewBreakerPredictor(inner Predictor, cfg circuitbreaker.Config) *BreakerPredictor {
	return &BreakerPredictor{
		inner:   inner,
		breaker: circuitbreaker.NewWrapper(cfg),
	}
}

func (p *BreakerPredictor) Predict(ctx context.Context, ruleID string, actionType string, features map[string]float64) (*Prediction, error) {
	result, err := p.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return p.inner.Predict(ctx, ruleID, actionType, features)
	})
	p.breaker.RecordRequest(err == nil)
	if err != nil {
		return nil, err
	}
	return result.(*Prediction), nil
}
