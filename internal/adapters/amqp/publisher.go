package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
)

// Default topology.
const (
	DefaultExchange   = "triage.records"
	RoutingKeyCreated = "record.created"
)

// MessageTypeRecordCreated tags envelopes carrying a new submission record.
const MessageTypeRecordCreated = "record.created"

// Message is the envelope published for each record.
type Message struct {
	ID        string                   `json:"id"`
	Type      string                   `json:"type"`
	Payload   *domain.SubmissionRecord `json:"payload"`
	Timestamp time.Time                `json:"timestamp"`
}

// channel is the subset of *amqp.Channel used by the publisher.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements ports.RecordPublisher on RabbitMQ.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *slog.Logger
}

type Option func(*Publisher)

// WithLogger sets the logger used for publish diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithExchange overrides the exchange name.
func WithExchange(name string) Option {
	return func(p *Publisher) {
		p.exchange = name
	}
}

// Dial connects to the broker and declares a durable topic exchange.
func Dial(url string, opts ...Option) (*Publisher, error) {
	p := newPublisher(opts...)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}

	p.conn = conn
	p.ch = ch
	p.logger.Info("connected to RabbitMQ", "exchange", p.exchange)
	return p, nil
}

func newPublisher(opts ...Option) *Publisher {
	p := &Publisher{
		exchange: DefaultExchange,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends the record as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, record *domain.SubmissionRecord) error {
	msg := &Message{
		ID:        uuid.NewString(),
		Type:      MessageTypeRecordCreated,
		Payload:   record,
		Timestamp: time.Now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return fmt.Errorf("no channel available")
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyCreated, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", p.exchange, RoutingKeyCreated, err)
	}

	p.logger.Debug("published record",
		"exchange", p.exchange,
		"message_id", msg.ID,
		"job_id", record.JobID,
	)
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			first = fmt.Errorf("close channel: %w", err)
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && first == nil {
			first = fmt.Errorf("close connection: %w", err)
		}
		p.conn = nil
	}
	return first
}
