// Package events publishes finished location reports to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
	"github.com/i474232898/wildfire-risk-aggregation/internal/report"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per report. It implements report.Publisher.
type Publisher struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates an async Kafka producer for topic. Delivery results
// are reported through the writer's completion callback.
func NewPublisher(brokers []string, topic string, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	p := &Publisher{logger: logger, metrics: metrics}
	p.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		Async:        true,
		Completion:   p.completed,
	}
	return p
}

// Publish never fails the caller; errors are logged and counted.
func (p *Publisher) Publish(ctx context.Context, r *report.Report) {
	msg, err := serializeToMessage(r)
	if err != nil {
		p.record("error")
		p.logger.Error("report serialization failed", "request_id", r.RequestID, "error", err)
		return
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.record("error")
		p.logger.Warn("report publish failed", "request_id", r.RequestID, "error", err)
	}
}

func (p *Publisher) completed(msgs []kafkago.Message, err error) {
	if err != nil {
		p.logger.Warn("report delivery failed", "messages", len(msgs), "error", err)
		p.record("error")
		return
	}
	for range msgs {
		p.record("success")
	}
}

func (p *Publisher) record(outcome string) {
	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(outcome).Inc()
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage keys the message by coordinate so reports for the same
// place land on the same partition.
func serializeToMessage(r *report.Report) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("%.6f,%.6f", r.Lat, r.Lng)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "risk_level", Value: []byte(r.RiskLevel)},
			{Key: "generated_at", Value: []byte(r.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
