package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
	"github.com/i474232898/wildfire-risk-aggregation/internal/report"
	"github.com/i474232898/wildfire-risk-aggregation/internal/risk"
)

type recordingWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error { return nil }

func sampleReport() *report.Report {
	return &report.Report{
		RequestID:   "req-1",
		Lat:         41.42,
		Lng:         -122.09,
		Index:       0.1,
		RiskLevel:   risk.Moderate,
		GeneratedAt: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(sampleReport())
	require.NoError(t, err)

	assert.Equal(t, []byte("41.420000,-122.090000"), msg.Key)
	assert.Contains(t, string(msg.Value), `"riskLevel":"Moderate"`)
	assert.Contains(t, string(msg.Value), `"requestId":"req-1"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "risk_level", msg.Headers[0].Key)
	assert.Equal(t, []byte("Moderate"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2025-06-10T09:00:00Z"), msg.Headers[1].Value)
}

func TestPublish_WriteErrorIsSwallowed(t *testing.T) {
	m := observability.NewMetricsForTesting()
	w := &recordingWriter{err: errors.New("broker down")}
	p := &Publisher{writer: w, logger: observability.NopLogger(), metrics: m}

	p.Publish(context.Background(), sampleReport())

	assert.Len(t, w.msgs, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsPublished.WithLabelValues("error")), 0)
}

func TestCompletionCountsDeliveries(t *testing.T) {
	m := observability.NewMetricsForTesting()
	p := &Publisher{logger: observability.NopLogger(), metrics: m}

	p.completed(make([]kafkago.Message, 2), nil)
	p.completed(make([]kafkago.Message, 1), errors.New("timeout"))

	assert.InDelta(t, 2, testutil.ToFloat64(m.EventsPublished.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsPublished.WithLabelValues("error")), 0)
}
