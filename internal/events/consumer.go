// Package events ingests transactions from Kafka and feeds them through
// the detection pipeline.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/banking/aml-engine/internal/config"
	"github.com/banking/aml-engine/internal/domain"
	"github.com/banking/aml-engine/internal/pipeline"
	"go.uber.org/zap"
)

type TransactionConsumer struct {
	consumerGroup sarama.ConsumerGroup
	pipeline      *pipeline.Pipeline
	topics        []string
	logger        *zap.Logger
}

func NewTransactionConsumer(cfg config.KafkaConfig, p *pipeline.Pipeline, logger *zap.Logger) (*TransactionConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Version = sarama.V2_8_0_0

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &TransactionConsumer{
		consumerGroup: consumerGroup,
		pipeline:      p,
		topics:        []string{cfg.TransactionTopic},
		logger:        logger,
	}, nil
}

func (c *TransactionConsumer) Start(ctx context.Context) error {
	handler := &transactionHandler{
		pipeline: c.pipeline,
		logger:   c.logger,
	}

	for {
		if err := c.consumerGroup.Consume(ctx, c.topics, handler); err != nil {
			if ctx.Err() != nil {
				return nil // Context canceled
			}
			c.logger.Error("Error from consumer", zap.Error(err))
			time.Sleep(time.Second * 5) // Retry backoff
		}
	}
}

func (c *TransactionConsumer) Close() error {
	return c.consumerGroup.Close()
}

type transactionHandler struct {
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

func (h *transactionHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *transactionHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }
func (h *transactionHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.processMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func (h *transactionHandler) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) {
	var tx domain.Transaction
	if err := json.Unmarshal(msg.Value, &tx); err != nil {
		h.logger.Error("Failed to unmarshal transaction", zap.Error(err))
		return // Skip malformed
	}
	if err := tx.Validate(); err != nil {
		h.logger.Warn("Rejecting invalid transaction",
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
		return
	}

	// Retry mechanism for processing
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		if _, err := h.pipeline.Process(ctx, &tx); err != nil {
			h.logger.Error("Failed to process transaction",
				zap.String("topic", msg.Topic),
				zap.Error(err),
				zap.Int("retry", i+1),
			)
			if i < maxRetries-1 {
				time.Sleep(time.Duration(i+1) * time.Second) // Simple backoff
				continue
			}
			h.logger.Error("Dropping transaction after retries", zap.String("transaction_id", tx.ID))
		}
		break // Success
	}
}
