package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/banking/dnfbp-risk/internal/config"
	"github.com/banking/dnfbp-risk/internal/domain"
)

// EvidencePublisher announces issued bundles on the evidence topic.
// Events carry links, never the bundle itself.
type EvidencePublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewEvidencePublisher connects a synchronous producer
func NewEvidencePublisher(cfg config.KafkaConfig) (*EvidencePublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Version = sarama.V2_8_0_0
	if cfg.EnableIdempotent {
		config.Producer.Idempotent = true
		config.Net.MaxOpenRequests = 1
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return NewEvidencePublisherWithProducer(producer, cfg.EvidenceTopic), nil
}

// NewEvidencePublisherWithProducer wraps an existing producer
func NewEvidencePublisherWithProducer(producer sarama.SyncProducer, topic string) *EvidencePublisher {
	return &EvidencePublisher{
		producer: producer,
		topic:    topic,
	}
}

// PublishEvidenceIssued sends event keyed by run id
func (p *EvidencePublisher) PublishEvidenceIssued(ctx context.Context, event *domain.EvidenceIssued) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.RunID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte("evidence.issued")},
			{Key: []byte("ruleset_id"), Value: []byte(event.RulesetID)},
		},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to publish evidence event: %w", err)
	}
	return nil
}

func (p *EvidencePublisher) Close() error {
	return p.producer.Close()
}
