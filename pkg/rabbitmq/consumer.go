package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Delivery is the part of an AMQP delivery a handler sees.
type Delivery struct {
	RoutingKey  string
	MessageID   string
	Redelivered bool
	Body        []byte
}

// Settlement tells the consumer what to do with a handled delivery.
type Settlement int

const (
	// Ack removes the delivery from the queue.
	Ack Settlement = iota
	// Requeue returns the delivery for another attempt.
	Requeue
	// Discard rejects the delivery without requeueing. A dead-letter exchange
	// on the queue receives it.
	Discard
)

func (s Settlement) String() string {
	switch s {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case Discard:
		return "discard"
	}
	return fmt.Sprintf("settlement(%d)", int(s))
}

// Handler processes one delivery. ctx is cancelled when the consumer stops.
type Handler func(ctx context.Context, d Delivery) Settlement

// Subscription binds one durable queue to routing keys of a topic exchange.
type Subscription struct {
	Exchange string
	Queue    string
	// Prefetch caps unacknowledged deliveries; zero leaves the broker default.
	Prefetch int
	Handlers map[string]Handler
}

// Consumer drains subscribed queues over a single channel.
type Consumer struct {
	conn   *amqp091.Connection
	ch     *amqp091.Channel
	logger *zap.Logger
}

func NewConsumer(amqpURL string, logger *zap.Logger) (*Consumer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch, logger: logger.With(zap.String("component", "rabbitmq_consumer"))}, nil
}

// Consume declares the exchange and queue, binds every routing key in sub
// and dispatches deliveries until ctx is done or the channel closes. It
// returns once the subscription is in place.
func (c *Consumer) Consume(ctx context.Context, sub Subscription) error {
	handlers := make(map[string]Handler, len(sub.Handlers))
	for routingKey, handler := range sub.Handlers {
		if handler != nil {
			handlers[routingKey] = handler
		}
	}
	if len(handlers) == 0 {
		return errors.New("subscription has no handlers")
	}

	if err := c.ch.ExchangeDeclare(sub.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", sub.Exchange, err)
	}
	q, err := c.ch.QueueDeclare(sub.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", sub.Queue, err)
	}
	if sub.Prefetch > 0 {
		if err := c.ch.Qos(sub.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set prefetch: %w", err)
		}
	}
	for routingKey := range handlers {
		if err := c.ch.QueueBind(q.Name, routingKey, sub.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", routingKey, err)
		}
	}

	msgs, err := c.ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	go c.run(ctx, msgs, handlers)
	return nil
}

func (c *Consumer) run(ctx context.Context, msgs <-chan amqp091.Delivery, handlers map[string]Handler) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped", zap.Error(ctx.Err()))
			return
		case d, ok := <-msgs:
			if !ok {
				c.logger.Warn("delivery channel closed")
				return
			}
			c.deliver(ctx, handlers, d)
		}
	}
}

// deliver runs the handler bound to d's routing key and settles d. Deliveries
// with no handler are discarded.
func (c *Consumer) deliver(ctx context.Context, handlers map[string]Handler, d amqp091.Delivery) {
	log := c.logger.With(zap.String("routing_key", d.RoutingKey), zap.String("message_id", d.MessageId))

	settlement := Discard
	if handler, ok := handlers[d.RoutingKey]; ok {
		settlement = handler(ctx, Delivery{
			RoutingKey:  d.RoutingKey,
			MessageID:   d.MessageId,
			Redelivered: d.Redelivered,
			Body:        d.Body,
		})
	} else {
		log.Warn("no handler for routing key")
	}

	var err error
	switch settlement {
	case Ack:
		err = d.Ack(false)
	case Requeue:
		log.Warn("handler failed; requeueing", zap.Bool("redelivered", d.Redelivered))
		err = d.Nack(false, true)
	default:
		log.Warn("discarding delivery")
		err = d.Reject(false)
	}
	if err != nil {
		log.Error("settle delivery failed", zap.Stringer("settlement", settlement), zap.Error(err))
	}
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
