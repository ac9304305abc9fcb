package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/config"
	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/couchcryptid/storm-alert-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// publishTimeout bounds a single alert write.
const publishTimeout = 10 * time.Second

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes alerts to the fan-out topic as they begin playing.
type Writer struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		Async:        true,
		Completion: func(msgs []kafkago.Message, err error) {
			outcome := "success"
			if err != nil {
				outcome = "error"
				logger.Warn("alert publish failed", "error", err, "count", len(msgs))
			}
			metrics.AlertsPublished.WithLabelValues(outcome).Add(float64(len(msgs)))
		},
	}
	return &Writer{writer: w, logger: logger, metrics: metrics}
}

// Publish hands the alert to the writer. With an async writer it returns
// without waiting for the broker; delivery is reported via metrics.
func (w *Writer) Publish(a domain.Alert) {
	msg, err := serializeToMessage(a)
	if err != nil {
		w.logger.Warn("alert publish skipped", "alert_id", a.ID, "error", err)
		w.metrics.AlertsPublished.WithLabelValues("error").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		w.logger.Warn("alert publish failed", "alert_id", a.ID, "error", err)
		w.metrics.AlertsPublished.WithLabelValues("error").Inc()
	}
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Alert into a Kafka message keyed by alert id.
func serializeToMessage(a domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_kind", Value: []byte(a.Kind.String())},
			{Key: "event_type", Value: []byte(a.EventType)},
			{Key: "composed_at", Value: []byte(a.ComposedAt.Format(time.RFC3339))},
		},
	}, nil
}
