package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"ordercore/config"
	"ordercore/pkg/logger"
)

// ErrDiscard marks a message that can never be processed. Handlers wrap it
// so the delivery is rejected without requeue.
var ErrDiscard = errors.New("discard message")

type Handler func(ctx context.Context, body []byte) error

type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  config.RabbitMQConfig
}

func NewConsumer(cfg config.RabbitMQConfig) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.Qos(cfg.PrefetchCount, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
		config:  cfg,
	}, nil
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// ConsumeQueue feeds every delivery on queueName to handler until ctx is
// cancelled or the channel closes.
func (c *Consumer) ConsumeQueue(ctx context.Context, queueName string, handler Handler) error {
	if err := declareQueue(c.channel, queueName); err != nil {
		return err
	}

	msgs, err := c.channel.Consume(
		queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log := logger.L().With(zap.String("queue", queueName))
	log.Info("started consuming")

	for {
		select {
		case <-ctx.Done():
			log.Info("stopped consuming")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", queueName)
			}
			settle(ctx, log, msg, handler)
		}
	}
}

// settle runs handler and acks, requeues or rejects the delivery.
func settle(ctx context.Context, log *zap.Logger, msg amqp.Delivery, handler Handler) {
	err := handler(ctx, msg.Body)
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Warn("ack failed", zap.Error(ackErr))
		}
	case errors.Is(err, ErrDiscard):
		log.Warn("rejecting message", zap.String("message_id", msg.MessageId), zap.Error(err))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			log.Warn("reject failed", zap.Error(nackErr))
		}
	default:
		log.Error("error processing message, requeueing", zap.String("message_id", msg.MessageId), zap.Error(err))
		if nackErr := msg.Nack(false, true); nackErr != nil {
			log.Warn("nack failed", zap.Error(nackErr))
		}
	}
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

// ParseJSON decodes a message body; malformed bodies are marked for discard.
func ParseJSON(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDiscard, err)
	}
	return nil
}
