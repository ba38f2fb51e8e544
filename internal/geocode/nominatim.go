package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/upstream"
)

const DefaultUserAgent = "WildfireMonitoringApp/1.0"

// NominatimProvider reverse-geocodes against OpenStreetMap Nominatim.
// Retries are left to the Resolver.
type NominatimProvider struct {
	baseURL   string
	userAgent string
	httpCfg   upstream.HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
}

func NewNominatimProvider(client *http.Client, userAgent string) *NominatimProvider {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &NominatimProvider{
		baseURL:   "https://nominatim.openstreetmap.org/reverse",
		userAgent: userAgent,
		httpCfg:   upstream.HTTPClientConfig{Client: client},
		circuit:   upstream.NewBreaker("nominatim"),
	}
}

// WithBaseURL points the provider at a different endpoint.
func (p *NominatimProvider) WithBaseURL(u string) *NominatimProvider {
	p.baseURL = u
	return p
}

func (p *NominatimProvider) Name() string { return "nominatim" }

func (p *NominatimProvider) Reverse(ctx context.Context, coord geo.Coordinate) (string, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("format", "json")
		values.Set("lat", strconv.FormatFloat(coord.Lat(), 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(coord.Lng(), 'f', -1, 64))
		values.Set("zoom", "10")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", p.userAgent)
		return req, nil
	}

	resp, err := upstream.Do(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", upstream.ErrMalformedResponse, err)
	}
	return payload.DisplayName, nil
}
