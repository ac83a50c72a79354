package attemptlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes attempts to a Kafka topic for the downstream
// abuse-analysis consumers. Delivery is fire-and-forget; the worker already
// treats sink errors as non-fatal.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to the given brokers (comma-separated).
func NewKafkaSink(brokers, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

type attemptPayload struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	RaceID    string `json:"race_id"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
	CreatedAt string `json:"created_at"`
}

func (s *KafkaSink) Publish(ctx context.Context, attempt Attempt) error {
	payload, err := json.Marshal(attemptPayload{
		ID:        attempt.ID,
		SessionID: attempt.SessionID,
		RaceID:    attempt.RaceID,
		Status:    string(attempt.Status),
		ErrorCode: attempt.ErrorCode,
		LatencyMs: attempt.LatencyMs,
		CreatedAt: attempt.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal attempt payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(attempt.SessionID),
		Value: payload,
	}
	// Async produce: the worker swallows errors either way, and blocking the
	// audit loop on broker acknowledgement would back-pressure admissions.
	s.client.Produce(ctx, record, nil)
	return nil
}

// Close flushes pending records and releases the client.
func (s *KafkaSink) Close(ctx context.Context) error {
	if err := s.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	s.client.Close()
	return nil
}
