package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"delivery-backend/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	queueSize      = 256
	publishTimeout = 5 * time.Second
)

// Envelope is the body of every broker message.
type Envelope struct {
	Type       string      `json:"type"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurredAt"`
}

type outgoing struct {
	routingKey string
	body       []byte
}

// AMQPPublisher sends domain events to a topic exchange, routed by event
// type. Publish only enqueues; a single worker talks to the broker, and a
// full queue drops the event.
type AMQPPublisher struct {
	url      string
	exchange string
	log      *zap.Logger
	queue    chan outgoing

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher connects and declares the exchange.
func NewAMQPPublisher(url, exchange string, log *zap.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		url:      url,
		exchange: exchange,
		log:      log,
		queue:    make(chan outgoing, queueSize),
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: failed to declare exchange %q: %w", p.exchange, err)
	}

	p.mu.Lock()
	p.conn = conn
	p.ch = ch
	p.mu.Unlock()
	return nil
}

// Publish implements services.Publisher.
func (p *AMQPPublisher) Publish(eventType string, payload interface{}) {
	body, err := json.Marshal(Envelope{Type: eventType, Payload: payload, OccurredAt: time.Now().UTC()})
	if err != nil {
		metrics.EventsPublished.WithLabelValues(eventType, "failed").Inc()
		p.log.Error("event encode failed", zap.String("type", eventType), zap.Error(err))
		return
	}
	select {
	case p.queue <- outgoing{routingKey: eventType, body: body}:
	default:
		metrics.EventsPublished.WithLabelValues(eventType, "dropped").Inc()
		p.log.Warn("event queue full, dropping event", zap.String("type", eventType))
	}
}

// Run drains the queue until ctx is done.
func (p *AMQPPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			if err := p.send(ctx, msg); err != nil {
				metrics.EventsPublished.WithLabelValues(msg.routingKey, "failed").Inc()
				p.log.Warn("event publish failed", zap.String("type", msg.routingKey), zap.Error(err))
				continue
			}
			metrics.EventsPublished.WithLabelValues(msg.routingKey, "sent").Inc()
		}
	}
}

// send publishes one message, reconnecting once if the channel has died.
func (p *AMQPPublisher) send(ctx context.Context, msg outgoing) error {
	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()

	if ch == nil || ch.IsClosed() {
		p.Close()
		if err := p.connect(); err != nil {
			return err
		}
		p.mu.Lock()
		ch = p.ch
		p.mu.Unlock()
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return ch.PublishWithContext(pubCtx, p.exchange, msg.routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Body:         msg.body,
	})
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
