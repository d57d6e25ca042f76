package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

// Handler processes one decoded event. Returning an error requeues it.
type Handler func(ctx context.Context, ev domain.LifecycleEvent) error

type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	// Bindings are topic patterns such as "job.*" or "job.assigned".
	Bindings []string
	Prefetch int
}

type Consumer struct {
	cfg    ConsumerConfig
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

func NewConsumer(cfg ConsumerConfig, logger *slog.Logger) (*Consumer, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if len(cfg.Bindings) == 0 {
		cfg.Bindings = []string{"job.*"}
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 8
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	fail := func(step string, err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	for _, key := range cfg.Bindings {
		if err := ch.QueueBind(q.Name, key, cfg.Exchange, false, nil); err != nil {
			return fail("bind "+key, err)
		}
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		return fail("set qos", err)
	}
	cfg.Queue = q.Name
	return &Consumer{cfg: cfg, conn: conn, ch: ch, logger: logger}, nil
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handle(ctx, d, h)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, h Handler) {
	var ev domain.LifecycleEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		// Malformed bodies never decode; requeueing would loop forever.
		c.logger.Warn("drop malformed event", "routing_key", d.RoutingKey, "err", err)
		_ = d.Nack(false, false)
		return
	}
	if err := h(ctx, ev); err != nil {
		c.logger.Warn("handle event, requeueing", "routing_key", d.RoutingKey, "job_id", ev.JobID, "err", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
