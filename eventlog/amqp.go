package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/warp/slot-engine/booking"
)

// RoutingKeyPrefix prefixes every published routing key, e.g. "slots.BookingCreated".
const RoutingKeyPrefix = "slots."

// publisher is the part of *amqp.Channel the sink uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes events as JSON to a topic exchange for external indexers.
type AMQP struct {
	conn     *amqp.Connection
	ch       publisher
	exchange string
}

func NewAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQP{conn: conn, ch: ch, exchange: exchange}, nil
}

func newAMQPWithPublisher(p publisher, exchange string) *AMQP {
	return &AMQP{ch: p, exchange: exchange}
}

func (a *AMQP) Append(ctx context.Context, e booking.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return a.ch.PublishWithContext(ctx, a.exchange, RoutingKeyPrefix+string(e.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.At,
		Type:         string(e.Kind),
		Body:         body,
	})
}

func (a *AMQP) Close() error {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
