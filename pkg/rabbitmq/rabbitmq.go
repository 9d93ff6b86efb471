package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	amqp "github.com/streadway/amqp"
)

const (
	// EventsExchange is the topic exchange every tweet event is published to.
	EventsExchange = "twitapp.events"
	// EventsQueue receives every event routed through EventsExchange.
	EventsQueue = "tweet_events"
)

// Channel is the subset of *amqp.Channel the client uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// ChannelOpener opens a new channel on the underlying connection.
type ChannelOpener func() (Channel, error)

// Client holds the RabbitMQ connection, the publishing channel and any open
// consumer channels. Each consumer gets its own channel so its acks never
// interleave with publishes.
type Client struct {
	conn      *amqp.Connection
	channel   Channel
	open      ChannelOpener
	mu        sync.Mutex // guards channel and consumers
	consumers []Channel
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
}

// NewClient connects to RabbitMQ and declares the events exchange and queue.
func NewClient(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, oops.Code("RABBITMQ_CONNECT_FAILED").Wrapf(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, oops.Code("RABBITMQ_CONNECT_FAILED").Wrapf(err, "failed to open channel")
	}

	open := func() (Channel, error) { return conn.Channel() }
	c, err := newClient(conn, ch, open)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	slog.Info("rabbitmq connected", "exchange", EventsExchange, "queue", EventsQueue)
	return c, nil
}

// NewClientWithChannels wraps an already open publishing channel; consumers
// get their channels from open. Close only closes channels, never a connection.
func NewClientWithChannels(ch Channel, open ChannelOpener) (*Client, error) {
	return newClient(nil, ch, open)
}

func newClient(conn *amqp.Connection, ch Channel, open ChannelOpener) (*Client, error) {
	if err := ch.ExchangeDeclare(
		EventsExchange, // name
		"topic",        // kind
		true,           // durable
		false,          // delete when unused
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return nil, oops.Code("RABBITMQ_DECLARE_FAILED").Wrapf(err, "failed to declare %s", EventsExchange)
	}
	if err := declareEventsQueue(ch); err != nil {
		return nil, err
	}
	return &Client{conn: conn, channel: ch, open: open}, nil
}

func declareEventsQueue(ch Channel) error {
	if _, err := ch.QueueDeclare(
		EventsQueue, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	); err != nil {
		return oops.Code("RABBITMQ_DECLARE_FAILED").Wrapf(err, "failed to declare %s", EventsQueue)
	}
	if err := ch.QueueBind(EventsQueue, "#", EventsExchange, false, nil); err != nil {
		return oops.Code("RABBITMQ_DECLARE_FAILED").Wrapf(err, "failed to bind %s", EventsQueue)
	}
	return nil
}

// Close closes every consumer channel, the publishing channel and the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	consumers := c.consumers
	c.consumers = nil
	c.mu.Unlock()

	var errs []error
	for _, ch := range consumers {
		if err := ch.Close(); err != nil {
			errs = append(errs, oops.Wrapf(err, "failed to close consumer channel"))
		}
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, oops.Wrapf(err, "failed to close channel"))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, oops.Wrapf(err, "failed to close connection"))
		}
	}
	return errors.Join(errs...)
}

// Publish marshals payload to JSON and publishes it to EventsExchange under routingKey.
func (c *Client) Publish(ctx context.Context, routingKey string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return oops.Code("RABBITMQ_PUBLISH_FAILED").
			With("routing_key", routingKey).
			Wrapf(err, "failed to marshal event")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		EventsExchange, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return oops.Code("RABBITMQ_PUBLISH_FAILED").
			With("routing_key", routingKey).
			Wrapf(err, "failed to publish event")
	}

	slog.DebugContext(ctx, "event published", "routing_key", routingKey)
	return nil
}

// ConsumeTweetEvents opens a dedicated channel and delivers every message on
// EventsQueue to handler until that channel closes. A handler error nacks the
// message without requeueing it.
func (c *Client) ConsumeTweetEvents(handler func(msg amqp.Delivery) error) error {
	if c.open == nil {
		return oops.Code("RABBITMQ_CONSUME_FAILED").Errorf("client cannot open a consumer channel")
	}
	ch, err := c.open()
	if err != nil {
		return oops.Code("RABBITMQ_CONSUME_FAILED").Wrapf(err, "failed to open consumer channel")
	}
	c.mu.Lock()
	c.consumers = append(c.consumers, ch)
	c.mu.Unlock()
	defer c.releaseConsumer(ch)

	msgs, err := ch.Consume(
		EventsQueue, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return oops.Code("RABBITMQ_CONSUME_FAILED").Wrapf(err, "failed to register consumer")
	}

	for msg := range msgs {
		if err := handler(msg); err != nil {
			slog.Warn("event handling failed",
				"routing_key", msg.RoutingKey, "delivery_tag", msg.DeliveryTag, "error", err)
			if nackErr := msg.Nack(false, false); nackErr != nil {
				slog.Warn("nack failed", "delivery_tag", msg.DeliveryTag, "error", nackErr)
			}
			continue
		}
		if ackErr := msg.Ack(false); ackErr != nil {
			slog.Warn("ack failed", "delivery_tag", msg.DeliveryTag, "error", ackErr)
		}
	}
	return nil
}

// releaseConsumer closes ch unless Close already did.
func (c *Client) releaseConsumer(ch Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.consumers {
		if existing == ch {
			c.consumers = append(c.consumers[:i], c.consumers[i+1:]...)
			if err := ch.Close(); err != nil {
				slog.Debug("consumer channel close failed", "error", err)
			}
			return
		}
	}
}

// LogTweetEvent is a handler for ConsumeTweetEvents that logs each event.
func LogTweetEvent(msg amqp.Delivery) error {
	var event map[string]any
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return oops.Code("RABBITMQ_BAD_EVENT").
			With("routing_key", msg.RoutingKey).
			Wrapf(err, "failed to decode event")
	}
	slog.Info("tweet event received", "routing_key", msg.RoutingKey, "event", event)
	return nil
}
