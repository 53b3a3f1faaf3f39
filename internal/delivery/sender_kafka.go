package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
)

// KafkaSender publishes batches to a Kafka topic instead of an HTTP
// collector, for deployments that ingest telemetry through the streaming
// pipeline. One message per envelope, keyed by batch ID so a batch lands in
// one partition in order.
type KafkaSender struct {
	writer *kafka.Writer
}

// NewKafkaSender creates a sender over the given brokers and topic.
func NewKafkaSender(brokers []string, topic string) *KafkaSender {
	return &KafkaSender{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    DefaultMaxQueueSize,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Zstd,
		},
	}
}

// Send publishes every envelope of the batch. The endpoint argument is
// ignored; the topic is fixed at construction.
func (k *KafkaSender) Send(ctx context.Context, endpoint string, payload metrics.BatchPayload) error {
	msgs := make([]kafka.Message, 0, len(payload.Metrics))
	for _, env := range payload.Metrics {
		value, err := json.Marshal(struct {
			metrics.Envelope
			ClientContext metrics.ClientContext `json:"client_context"`
		}{Envelope: env, ClientContext: payload.ClientContext})
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(payload.BatchID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(env.Type)},
				{Key: "client_id", Value: []byte(payload.ClientContext.ClientID)},
			},
		})
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write batch %s: %w", payload.BatchID, err)
	}
	return nil
}

// Close shuts the underlying writer down.
func (k *KafkaSender) Close() error {
	if err := k.writer.Close(); err != nil {
		log.Errorf("failed to close kafka writer: %v", err)
		return err
	}
	return nil
}
