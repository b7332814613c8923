// Package queue carries booking and ledger events over RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrClosed = errors.New("publisher closed")

// Publisher sends JSON events to a durable topic exchange. A dropped
// connection is redialed on the next Publish.
type Publisher struct {
	url      string
	exchange string
	loggerf  func(format string, args ...interface{})

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

func NewPublisher(url, exchange string, loggerf func(format string, args ...interface{})) (*Publisher, error) {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	p := &Publisher{url: url, exchange: exchange, loggerf: loggerf}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.ch == nil || p.ch.IsClosed() || p.conn.IsClosed() {
		p.loggerf("level=warn msg=\"rabbitmq channel lost, reconnecting\" exchange=%s", p.exchange)
		p.release()
		if err := p.connect(); err != nil {
			return err
		}
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         routingKey,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.release()
	return nil
}

func (p *Publisher) release() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// LogPublisher writes events to the application log. It is used when no
// broker is configured.
type LogPublisher struct {
	loggerf func(format string, args ...interface{})
}

func NewLogPublisher(loggerf func(format string, args ...interface{})) *LogPublisher {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &LogPublisher{loggerf: loggerf}
}

func (p *LogPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	p.loggerf("level=info msg=\"event\" key=%s body=%s", routingKey, body)
	return nil
}
