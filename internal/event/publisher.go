package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"airtel-gateway/internal/config"
	"airtel-gateway/internal/message"
	"github.com/VictoriaMetrics/metrics"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultBatchSize    = 100
	DefaultBatchTimeout = 100
)

var (
	publishSuccessCounter = metrics.GetOrCreateCounter(`payment_event_publish_total{result="success"}`)
	publishErrorCounter   = metrics.GetOrCreateCounter(`payment_event_publish_total{result="error"}`)
)

func NewWriter(cfg config.Kafka) *kafka.Writer {
	batchSize := cfg.Writer.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batchTimeout := cfg.Writer.BatchTimeoutMs
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Broker.URL),
		Topic:                  cfg.Topic.PaymentEvents,
		Balancer:               &kafka.ReferenceHash{},
		BatchSize:              batchSize,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           time.Duration(batchTimeout) * time.Millisecond,
		Async:                  false,
		AllowAutoTopicCreation: false,
	}
}

// Publisher writes terminal payment events to the payment-events topic,
// keyed by correlation id to keep per-attempt ordering.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewPublisher(writer *kafka.Writer, logger *slog.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event message.PaymentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		publishErrorCounter.Inc()
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.Payload.CorrelationID.String()),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "Error writing payment event to Kafka", "error", err)
		publishErrorCounter.Inc()
		return err
	}

	p.logger.InfoContext(ctx, "Published payment event", "event", event.Event, "id", event.ID)
	publishSuccessCounter.Inc()

	return nil
}
