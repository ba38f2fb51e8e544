// Package prediction calls the fire-risk and fire-type ML services.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
	"github.com/i474232898/wildfire-risk-aggregation/internal/upstream"
)

// Client talks to the two model services.
type Client struct {
	riskBaseURL string
	typeBaseURL string
	httpCfg     upstream.HTTPClientConfig
	circuit     *gobreaker.CircuitBreaker
	clock       clockwork.Clock
	metrics     *observability.Metrics
}

func NewClient(client *http.Client, clock clockwork.Clock, riskBaseURL, typeBaseURL string, metrics *observability.Metrics) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		riskBaseURL: strings.TrimRight(riskBaseURL, "/"),
		typeBaseURL: strings.TrimRight(typeBaseURL, "/"),
		httpCfg: upstream.HTTPClientConfig{
			Client:  client,
			Timeout: 5 * time.Second,
			Clock:   clock,
		},
		circuit: upstream.NewBreaker("ml"),
		clock:   clock,
		metrics: metrics,
	}
}

// PredictFireRisk returns the model's confidence that coord will burn.
func (c *Client) PredictFireRisk(ctx context.Context, f Features) (float64, error) {
	var out struct {
		Confidence *float64 `json:"confidence"`
	}
	if err := c.post(ctx, "fire_risk", c.riskBaseURL+"/predictFireRisk", f, &out); err != nil {
		return 0, err
	}
	if out.Confidence == nil {
		return 0, fmt.Errorf("%w: missing confidence", upstream.ErrMalformedResponse)
	}
	return *out.Confidence, nil
}

// PredictFireType classifies a detected fire.
func (c *Client) PredictFireType(ctx context.Context, f FireTypeFeatures) (string, error) {
	var out struct {
		PredictedType string `json:"predictedType"`
	}
	if err := c.post(ctx, "fire_type", c.typeBaseURL+"/api/predictFireType", f, &out); err != nil {
		return "", err
	}
	if out.PredictedType == "" {
		return "", fmt.Errorf("%w: missing predictedType", upstream.ErrMalformedResponse)
	}
	return out.PredictedType, nil
}

func (c *Client) post(ctx context.Context, model, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	start := c.clock.Now()
	resp, err := upstream.Do(ctx, c.httpCfg, c.circuit, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if c.metrics != nil {
		c.metrics.PredictionLatency.WithLabelValues(model).Observe(c.clock.Since(start).Seconds())
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamFailures.WithLabelValues(model).Inc()
		}
		return fmt.Errorf("%s prediction: %w", model, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s prediction: %w: %v", model, upstream.ErrMalformedResponse, err)
	}
	return nil
}
