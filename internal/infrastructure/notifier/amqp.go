package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/events"
	"github.com/deskline/queue-api/internal/infrastructure/metrics"
)

// AMQPPublisher mirrors change events onto a durable topic exchange for
// consumers outside this service. Routing keys look like
// "org.<organization>.<table>.<op>".
type AMQPPublisher struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	exchange string
	mu       sync.Mutex
	log      zerolog.Logger
}

var _ events.Publisher = (*AMQPPublisher)(nil)

// NewAMQPPublisher dials url, declares the exchange and enables publisher
// confirms.
func NewAMQPPublisher(url, exchange string, log zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		log:      log.With().Str("component", "amqp-publisher").Logger(),
	}, nil
}

// RoutingKey returns the topic key for event.
func RoutingKey(event events.ChangeEvent) string {
	return fmt.Sprintf("org.%s.%s.%s", event.OrganizationID, event.Table, event.Op)
}

// Publish sends event and waits for the broker's confirmation.
func (p *AMQPPublisher) Publish(ctx context.Context, event events.ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(
		ctx, p.exchange, RoutingKey(event), false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     event.ID,
			CorrelationId: event.RowID,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		metrics.RecordEventPublished(DriverAMQP, "error")
		return fmt.Errorf("publish: %w", err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		metrics.RecordEventPublished(DriverAMQP, "error")
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		metrics.RecordEventPublished(DriverAMQP, "nacked")
		return fmt.Errorf("broker rejected event %s", event.ID)
	}

	metrics.RecordEventPublished(DriverAMQP, "ok")
	p.log.Debug().Str("key", RoutingKey(event)).Str("exchange", p.exchange).Msg("published")
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}
