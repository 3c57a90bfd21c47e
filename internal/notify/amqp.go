package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultQueue = "carebook_notifications"

// Message is the body published for each notification.
type Message struct {
	Notification
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

type publisher interface {
	GetNextPublishSeqNo() uint64
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPDispatcher publishes notifications to a durable RabbitMQ queue and
// waits for the broker to confirm each one. Rejected messages land on the
// queue's dead-letter twin.
type AMQPDispatcher struct {
	ch        publisher
	closer    func() error
	confirms  <-chan amqp.Confirmation
	queue     string
	templates *Templates
	log       *zap.Logger
	now       func() time.Time
	mu        sync.Mutex
}

func DeadLetterQueue(queue string) string {
	return queue + "_dlq"
}

func NewAMQPDispatcher(conn *amqp.Connection, queue string, templates *Templates, log *zap.Logger) (*AMQPDispatcher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if templates == nil {
		templates = NewTemplates()
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	dlq := DeadLetterQueue(queue)
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare %s: %w", dlq, err)
	}
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare %s: %w", queue, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	return &AMQPDispatcher{
		ch:        ch,
		closer:    ch.Close,
		confirms:  ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		queue:     queue,
		templates: templates,
		log:       log.With(zap.String("component", "notify"), zap.String("queue", queue)),
		now:       time.Now,
	}, nil
}

func (d *AMQPDispatcher) Enqueue(ctx context.Context, n Notification) error {
	subject, body, err := d.templates.Render(n.Kind, n.Payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(Message{
		Notification: n,
		Subject:      subject,
		Body:         body,
		EnqueuedAt:   d.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(n.Kind),
		MessageId:    n.AppointmentID.String() + ":" + string(n.Kind),
		Timestamp:    d.now().UTC(),
		Body:         raw,
	}

	// Confirmations arrive in publish order. A publish that gave up on its
	// context leaves a late confirm behind; anything tagged below this
	// publish's sequence number belongs to such an earlier message.
	d.mu.Lock()
	defer d.mu.Unlock()

	seq := d.ch.GetNextPublishSeqNo()
	if err := d.ch.PublishWithContext(ctx, "", d.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", d.queue, err)
	}
	for {
		select {
		case c, ok := <-d.confirms:
			if !ok {
				return errors.New("amqp channel closed before confirm")
			}
			if c.DeliveryTag < seq {
				d.log.Debug("discarding stale confirm", zap.Uint64("delivery_tag", c.DeliveryTag), zap.Bool("ack", c.Ack))
				continue
			}
			if !c.Ack {
				return fmt.Errorf("publish to %s: broker nacked delivery %d", d.queue, c.DeliveryTag)
			}
		case <-ctx.Done():
			return fmt.Errorf("publish to %s: %w", d.queue, ctx.Err())
		}
		break
	}

	d.log.Debug("notification published", zap.String("kind", string(n.Kind)), zap.Stringer("appointment_id", n.AppointmentID))
	return nil
}

func (d *AMQPDispatcher) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}
