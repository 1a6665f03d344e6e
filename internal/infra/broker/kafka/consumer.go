package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	logger  *slog.Logger
}

// NewConsumer joins groupID. Without an explicit config it starts from the
// newest offset so a follower only sees changes made after it started.
func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg == nil {
		cfg = sarama.NewConfig()
		cfg.ClientID = "ownercal"
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Version = sarama.V2_5_0_0
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, handler: handler, logger: logger}, nil
}

// Run consumes topics until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	h := consumerGroupHandler{handler: c.handler, logger: c.logger}
	for {
		if err := c.group.Consume(ctx, topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler MessageHandler
	logger  *slog.Logger
}

func (h consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := h.handler.Handle(sess.Context(), message); err != nil {
			// left unmarked; the handler decides whether a redelivery helps
			if h.logger != nil {
				h.logger.Warn("kafka message not handled",
					"topic", message.Topic, "partition", message.Partition, "offset", message.Offset, "error", err)
			}
			continue
		}
		sess.MarkMessage(message, "")
	}
	return nil
}
