// Package engine is the client for the remote geospatial computation engine.
// The engine is a black box: it searches image catalogs, reduces image
// expressions over regions and renders thumbnails.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
	"github.com/i474232898/wildfire-risk-aggregation/internal/upstream"
)

var errNoCredentials = errors.New("engine credentials file not configured")

// Config locates the engine and its service-account credentials.
type Config struct {
	BaseURL         string
	CredentialsFile string
}

// Client talks to the engine over JSON/HTTP. Every data operation waits for
// the session to be established first.
type Client struct {
	cfg       Config
	httpCfg   upstream.HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
	lifecycle *Lifecycle
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu    sync.RWMutex
	token string
}

func NewClient(cfg Config, client *http.Client, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg: cfg,
		// Engine calls are never retried here; a failed session is retried by
		// the init job and failed reductions degrade per component.
		httpCfg: upstream.HTTPClientConfig{
			Client:  client,
			Timeout: 30 * time.Second,
		},
		circuit:   upstream.NewBreaker("engine"),
		lifecycle: NewLifecycle(),
		logger:    logger,
		metrics:   metrics,
	}
}

// Lifecycle exposes the session state for readiness checks and scheduling.
func (c *Client) Lifecycle() *Lifecycle {
	return c.lifecycle
}

// Initialize establishes a session. It is safe to call repeatedly; once the
// engine is ready further calls are no-ops.
func (c *Client) Initialize(ctx context.Context) error {
	err := c.lifecycle.TryInitialize(ctx, c.authenticate)
	switch {
	case err == nil:
		if c.metrics != nil {
			c.metrics.EngineReady.Set(1)
		}
		return nil
	case errors.Is(err, errInitInProgress):
		return nil
	default:
		return err
	}
}

func (c *Client) authenticate(ctx context.Context) error {
	if c.cfg.CredentialsFile == "" {
		return errNoCredentials
	}
	creds, err := os.ReadFile(c.cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("read engine credentials: %w", err)
	}
	if !json.Valid(creds) {
		return fmt.Errorf("engine credentials %s: not valid JSON", c.cfg.CredentialsFile)
	}

	var session struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/v1/sessions", json.RawMessage(creds), &session, false); err != nil {
		return fmt.Errorf("create engine session: %w", err)
	}
	if session.Token == "" {
		return fmt.Errorf("create engine session: %w: empty token", upstream.ErrMalformedResponse)
	}

	c.mu.Lock()
	c.token = session.Token
	c.mu.Unlock()

	c.logger.Info("geospatial engine session established")
	return nil
}

// SearchScenes lists scenes intersecting q.Point, newest first.
func (c *Client) SearchScenes(ctx context.Context, q SceneQuery) ([]Scene, error) {
	if err := c.lifecycle.Wait(ctx); err != nil {
		return nil, err
	}
	var out struct {
		Scenes []Scene `json:"scenes"`
	}
	if err := c.post(ctx, "/v1/scenes:search", q, &out, true); err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Collection, err)
	}
	sort.SliceStable(out.Scenes, func(i, j int) bool {
		return out.Scenes[i].CapturedAt.After(out.Scenes[j].CapturedAt)
	})
	return out.Scenes, nil
}

// ReduceRegion evaluates r and returns one value per output band. A nil value
// means the band had no valid pixels in the region.
func (c *Client) ReduceRegion(ctx context.Context, r ReduceRequest) (map[string]*float64, error) {
	if err := c.lifecycle.Wait(ctx); err != nil {
		return nil, err
	}
	var out struct {
		Values map[string]*float64 `json:"values"`
	}
	if err := c.post(ctx, "/v1/images:reduceRegion", r, &out, true); err != nil {
		return nil, fmt.Errorf("reduce region: %w", err)
	}
	if out.Values == nil {
		return map[string]*float64{}, nil
	}
	return out.Values, nil
}

// Thumbnail renders r and returns a URL for the image.
func (c *Client) Thumbnail(ctx context.Context, r ThumbnailRequest) (string, error) {
	if err := c.lifecycle.Wait(ctx); err != nil {
		return "", err
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/v1/images:thumbnail", r, &out, true); err != nil {
		return "", fmt.Errorf("thumbnail: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("thumbnail: %w: empty url", upstream.ErrMalformedResponse)
	}
	return out.URL, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any, auth bool) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	var token string
	if auth {
		c.mu.RLock()
		token = c.token
		c.mu.RUnlock()
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path

	resp, err := upstream.Do(ctx, c.httpCfg, c.circuit, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	})
	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamFailures.WithLabelValues("engine").Inc()
		}
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", upstream.ErrMalformedResponse, err)
	}
	return nil
}
