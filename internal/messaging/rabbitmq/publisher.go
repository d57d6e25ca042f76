// Package rabbitmq carries lifecycle events over an AMQP topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

const DefaultExchange = "beautyboosters.jobs"

// RoutingKey returns the topic key for an event, for example "job.assigned".
func RoutingKey(t domain.EventType) string {
	return "job." + string(t)
}

type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	timeout  time.Duration
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
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
	return &Publisher{conn: conn, ch: ch, exchange: exchange, timeout: 5 * time.Second}, nil
}

// Publish sends ev as JSON. The request context may already be done by the
// time an event fires, so the send uses its own deadline.
func (p *Publisher) Publish(ctx context.Context, ev domain.LifecycleEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(ev.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.JobID + ":" + string(ev.Type) + ":" + ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
