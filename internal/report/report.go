// Package report assembles the location risk report from its independent
// sources.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/i474232898/wildfire-risk-aggregation/internal/imagery"
	"github.com/i474232898/wildfire-risk-aggregation/internal/risk"
	"github.com/i474232898/wildfire-risk-aggregation/internal/weather"
)

// Report is built once per request and never modified afterwards.
type Report struct {
	RequestID          string                      `json:"requestId"`
	Lat                float64                     `json:"lat"`
	Lng                float64                     `json:"lng"`
	Index              float64                     `json:"index"`
	RiskLevel          risk.Level                  `json:"riskLevel"`
	PreviewURL         string                      `json:"previewUrl"`
	HistoricalBaseline *imagery.Baseline           `json:"historicalBaseline"`
	HistoricalWeather  *weather.HistoricalSnapshot `json:"historicalWeather"`
	LocationName       string                      `json:"locationName"`
	Weather            weather.CurrentResult       `json:"weather"`
	GeneratedAt        time.Time                   `json:"generatedAt"`
}

// PipelineError is a failure that aborts the whole report.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

type requestIDKey struct{}

// WithRequestID attaches the inbound request ID so the report carries it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
