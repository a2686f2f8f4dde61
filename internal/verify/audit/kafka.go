package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaStore publishes snapshots to a topic keyed by correlation id, so all
// snapshots of one request land on the same partition in order.
type KafkaStore struct {
	client *kgo.Client
	topic  string
}

// NewKafkaStore connects a snapshot publisher to the given brokers.
func NewKafkaStore(brokers []string, topic string) (*KafkaStore, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &KafkaStore{client: client, topic: topic}, nil
}

type kafkaSnapshot struct {
	CorrelationID string          `json:"correlationId"`
	Operation     string          `json:"operation"`
	Stage         string          `json:"stage"`
	ResultCode    string          `json:"resultCode,omitempty"`
	Message       string          `json:"message,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (s *KafkaStore) Append(ctx context.Context, snap Snapshot) error {
	value, err := json.Marshal(kafkaSnapshot{
		CorrelationID: snap.CorrelationID,
		Operation:     snap.Operation,
		Stage:         string(snap.Stage),
		ResultCode:    snap.ResultCode,
		Message:       snap.Message,
		Payload:       snap.Payload,
		Timestamp:     snap.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal audit snapshot: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(snap.CorrelationID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit snapshot: %w", err)
	}
	return nil
}

func (s *KafkaStore) Close() {
	s.client.Close()
}
