package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/banking/dnfbp-risk/internal/config"
	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/banking/dnfbp-risk/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxRetries = 3

// EvidenceGenerator turns a scoring request into an issued bundle
type EvidenceGenerator interface {
	GenerateEvidence(ctx context.Context, req domain.ScoreRequest) (*domain.EvidenceRef, error)
}

// RequestConsumer reads scoring requests from Kafka and issues evidence for each
type RequestConsumer struct {
	consumerGroup sarama.ConsumerGroup
	generator     EvidenceGenerator
	topics        []string
	logger        *zap.Logger
}

func NewRequestConsumer(cfg config.KafkaConfig, generator EvidenceGenerator, logger *zap.Logger) (*RequestConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Version = sarama.V2_8_0_0

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &RequestConsumer{
		consumerGroup: consumerGroup,
		generator:     generator,
		topics:        []string{cfg.RequestTopic},
		logger:        logger,
	}, nil
}

func (c *RequestConsumer) Start(ctx context.Context) error {
	handler := &requestHandler{
		generator: c.generator,
		backoff:   time.Second,
		logger:    c.logger,
	}

	for {
		if err := c.consumerGroup.Consume(ctx, c.topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error("Error from consumer", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil // Context canceled
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second): // Retry backoff
		}
	}
}

func (c *RequestConsumer) Close() error {
	return c.consumerGroup.Close()
}

type requestHandler struct {
	generator EvidenceGenerator
	backoff   time.Duration
	logger    *zap.Logger
}

func (h *requestHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *requestHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }
func (h *requestHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.processMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

// processMessage issues evidence for one request. Malformed and invalid
// requests are dropped; other failures are retried with linear backoff.
func (h *requestHandler) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) *domain.EvidenceRef {
	var req domain.ScoreRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		h.logger.Error("Failed to unmarshal scoring request",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil // Skip malformed
	}
	if req.RequestID == "" {
		req.RequestID = requestIDFromHeaders(msg.Headers)
	}

	for i := 0; i < maxRetries; i++ {
		ref, err := h.generator.GenerateEvidence(ctx, req)
		if err == nil {
			h.logger.Info("Evidence issued for request",
				zap.String("request_id", req.RequestID),
				zap.String("run_id", ref.RunID),
			)
			return ref
		}
		if errors.Is(err, service.ErrInvalidRequest) {
			h.logger.Error("Dropping invalid scoring request",
				zap.String("request_id", req.RequestID),
				zap.Error(err),
			)
			return nil
		}
		h.logger.Error("Failed to issue evidence",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
			zap.Int("retry", i+1),
		)
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Duration(i+1) * h.backoff): // Simple backoff
			}
		}
	}

	h.logger.Error("Dropping scoring request after retries", zap.String("request_id", req.RequestID))
	return nil
}

// requestIDFromHeaders reads a request_id header, or mints one
func requestIDFromHeaders(headers []*sarama.RecordHeader) string {
	for _, h := range headers {
		if h != nil && string(h.Key) == "request_id" && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return uuid.NewString()
}
