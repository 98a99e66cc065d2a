package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker/v2"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/order"
)

// SequenceSource numbers the events of one order.
type SequenceSource interface {
	Next(ctx context.Context, orderID int64) (int64, error)
}

type PublisherOptions struct {
	Producer string
	Logger   *slog.Logger

	// Consecutive publish failures before the breaker opens, and how long it
	// stays open before letting a probe through.
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
}

// Publisher emits enveloped order events on the shared topic exchange.
// Publishing goes through a circuit breaker so a dead broker fails fast
// instead of adding the publish timeout to every request.
type Publisher struct {
	ch       Channel
	seq      SequenceSource
	producer string
	breaker  *gobreaker.CircuitBreaker[struct{}]
	now      func() time.Time
}

func NewPublisher(conn *amqp.Connection, seq SequenceSource, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := newPublisher(ch, seq, opts)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(ch Channel, seq SequenceSource, opts PublisherOptions) (*Publisher, error) {
	if err := declareEventsExchange(ch); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	producer := opts.Producer
	if producer == "" {
		producer = defaultProducer
	}
	maxFailures := opts.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := opts.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "rabbitmq-publish",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Publisher{
		ch:       ch,
		seq:      seq,
		producer: producer,
		breaker:  breaker,
		now:      time.Now,
	}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, o *order.Order) error {
	return publish(ctx, p, OrderCreatedRoutingKey, EventTypeOrderCreated, orderCreatedSchema,
		o.ID, newOrderCreatedPayload(o))
}

func (p *Publisher) PublishOrderStatusChanged(ctx context.Context, o *order.Order, previous order.Status) error {
	return publish(ctx, p, OrderStatusChangedRoutingKey, EventTypeOrderStatusChanged, orderStatusChangedSchema,
		o.ID, newOrderStatusChangedPayload(o, previous))
}

func publish[T any](ctx context.Context, p *Publisher, routingKey, name, schema string, orderID int64, payload T) error {
	// Skip reserving a sequence number for a message that cannot be sent.
	if p.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("publish %s: %w", name, gobreaker.ErrOpenState)
	}

	seq, err := p.seq.Next(ctx, orderID)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	env := newEnvelope(name, schema, MetadataFromContext(ctx), orderPartitionKey(orderID), seq, p.producer, payload, p.now().UTC())
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", name, err)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.EventID,
		CorrelationId: env.CorrelationID,
		Type:          name,
		Timestamp:     env.OccurredAt,
		Body:          body,
	}
	if err := p.publishJSON(ctx, routingKey, msg); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	_, err := p.breaker.Execute(func() (struct{}, error) {
		pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		return struct{}{}, p.ch.PublishWithContext(pubCtx, EventsExchange, routingKey, false, false, msg)
	})
	return err
}
