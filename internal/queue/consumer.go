package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventLogQueue = "hotel.eventlog"
	maxBackoff    = 30 * time.Second
)

// Consumer appends every event on the exchange to w, one line per event.
type Consumer struct {
	url      string
	exchange string
	queue    string
	loggerf  func(format string, args ...interface{})

	mu sync.Mutex
	w  io.Writer
}

func NewConsumer(url, exchange string, w io.Writer, loggerf func(format string, args ...interface{})) *Consumer {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Consumer{url: url, exchange: exchange, queue: EventLogQueue, w: w, loggerf: loggerf}
}

// Run consumes until ctx is cancelled, redialing with exponential backoff.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.loggerf("level=warn msg=\"event consumer dial failed\" retry_in=%s err=%v", backoff, err)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.loggerf("level=warn msg=\"event consumer loop ended, reconnecting\" err=%v", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.loggerf("level=warn msg=\"event consumer qos failed\" err=%v", err)
	}
	if err := ch.ExchangeDeclare(c.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(c.queue, "#", c.exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.RoutingKey, d.Timestamp, d.Body); err != nil {
				c.loggerf("level=error msg=\"event rejected\" key=%s err=%v", d.RoutingKey, err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle writes one event line. Bodies that are not JSON are rejected.
func (c *Consumer) Handle(routingKey string, ts time.Time, body []byte) error {
	line, err := FormatLine(routingKey, ts, body)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.w, line); err != nil {
		return fmt.Errorf("write event log: %w", err)
	}
	return nil
}

// FormatLine renders "[RFC3339] key | {compact json}\n".
func FormatLine(routingKey string, ts time.Time, body []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return "", fmt.Errorf("event body is not json: %w", err)
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("[%s] %s | %s\n", ts.UTC().Format(time.RFC3339), routingKey, buf.String()), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
