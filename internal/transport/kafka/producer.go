package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/IBM/sarama"

	"parcel-dispatch/internal/domain"
)

var newSyncProducer = sarama.NewSyncProducer

// Producer publishes domain events keyed by delivery id, so one delivery stays on one partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer creates a new Kafka producer. It returns nil when Kafka is not configured.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	p, err := newSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{producer: p, topic: topic}, nil
}

// OnEvent publishes e. It is an events.Handler.
func (p *Producer) OnEvent(_ context.Context, e domain.Event) error {
	if p == nil {
		return nil
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Name, err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(e.DeliveryID, 10)),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(e.Name)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish event %s of delivery %d: %w", e.Name, e.DeliveryID, err)
	}
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
