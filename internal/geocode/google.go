package geocode

import (
	"context"
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
)

// GoogleProvider reverse-geocodes through the Google Geocoding API.
type GoogleProvider struct {
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

// NewGoogleProvider configures the geocoder package with apiKey. The key is
// package-global in the underlying library, so only one GoogleProvider should
// exist per process.
func NewGoogleProvider(apiKey string) *GoogleProvider {
	geocoder.ApiKey = apiKey
	return &GoogleProvider{reverse: geocoder.GeocodingReverse}
}

func (p *GoogleProvider) Name() string { return "google" }

// Reverse returns the first formatted address. The library call cannot be
// cancelled, so ctx only bounds how long we wait for it.
func (p *GoogleProvider) Reverse(ctx context.Context, coord geo.Coordinate) (string, error) {
	type result struct {
		name string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		addrs, err := p.reverse(geocoder.Location{Latitude: coord.Lat(), Longitude: coord.Lng()})
		if err != nil {
			ch <- result{err: fmt.Errorf("google reverse geocode: %w", err)}
			return
		}
		for _, a := range addrs {
			if a.FormattedAddress != "" {
				ch <- result{name: a.FormattedAddress}
				return
			}
		}
		ch <- result{}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.name, r.err
	}
}
