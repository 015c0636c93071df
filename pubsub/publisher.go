package pubsub

import (
	"context"
	"encoding/json"
	"fitpulse-chat/contract"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
)

// OfflineMessageKey is the routing key of a message that reached no live connection.
const OfflineMessageKey = "chat.message.offline.v1"

type rmqPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

// New declares the topic exchange and returns a publisher writing persistent JSON envelopes.
func New(ctx context.Context, opts ConnectionOptions, exchange string) (contract.IPublisher, error) {
	conn, err := DialWithRetry(ctx, opts)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, err
	}

	return &rmqPublisher{conn: conn, exchange: exchange, log: opts.Logger}, nil
}

func (r *rmqPublisher) Publish(ctx context.Context, key string, payload any) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	env := NewEnvelope(key, payload)
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx, r.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     env.Meta.ID,
			CorrelationId: env.Meta.ID,
			Type:          key,
			Timestamp:     env.Meta.Time,
			Body:          body,
		},
	)
	if err == nil {
		r.log.Debug("published", slog.String("key", key), slog.String("exchange", r.exchange))
	}
	return err
}

func (r *rmqPublisher) Close() error {
	return r.conn.Close()
}

// LogPublisher stands in for the broker when none is configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (l *LogPublisher) Publish(_ context.Context, key string, payload any) error {
	env := NewEnvelope(key, payload)
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	l.log.Info("event not published, no broker configured", "key", key, "envelope", string(body))
	return nil
}

func (l *LogPublisher) Close() error { return nil }
