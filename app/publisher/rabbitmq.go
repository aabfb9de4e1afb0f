package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lysyi3m/rss-rules/app/channel"
)

// Publisher announces finished extraction passes to downstream consumers.
type Publisher interface {
	PublishExtraction(ctx context.Context, msg ExtractionMessage) error
	Close() error
}

type ExtractionMessage struct {
	Channel            string         `json:"channel"`
	Source             string         `json:"source"`
	Items              []channel.Item `json:"items"`
	MissingTitle       int            `json:"missing_title"`
	MissingLink        int            `json:"missing_link"`
	MissingDescription int            `json:"missing_description"`
	Timestamp          time.Time      `json:"timestamp"`
}

// NewExtractionMessage builds the message for one extraction pass.
func NewExtractionMessage(name, source string, result *channel.Extraction) ExtractionMessage {
	return ExtractionMessage{
		Channel:            name,
		Source:             source,
		Items:              result.Items,
		MissingTitle:       result.MissingTitle,
		MissingLink:        result.MissingLink,
		MissingDescription: result.MissingDescription,
		Timestamp:          time.Now().UTC(),
	}
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    amqpChannel
	exchange   string
	routingKey string
}

func NewRabbitMQ(cfg Config) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	slog.Info("Connected to RabbitMQ",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (r *RabbitMQ) PublishExtraction(ctx context.Context, msg ExtractionMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    msg.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.Debug("Published extraction", "channel", msg.Channel, "items", len(msg.Items))

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// Nop discards messages. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishExtraction(context.Context, ExtractionMessage) error { return nil }

func (Nop) Close() error { return nil }
