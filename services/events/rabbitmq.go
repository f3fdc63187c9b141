package eventsvc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/edvora/edvora/core"
)

// RabbitMQPublisher publishes events to durable queues of the default exchange.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	mu       sync.Mutex // guards channel use & declared
	declared map[string]struct{}
}

var _ core.EventPublisher = (*RabbitMQPublisher)(nil)

func NewRabbitMQPublisher(conf *core.Config) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(conf.RabbitMQ.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to rabbitmq")
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}
	return &RabbitMQPublisher{
		conn:     conn,
		channel:  channel,
		declared: make(map[string]struct{}),
	}, nil
}

func (p *RabbitMQPublisher) declare(queue string) error {
	if _, ok := p.declared[queue]; ok {
		return nil
	}
	_, err := p.channel.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}
	p.declared[queue] = struct{}{}
	return nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.declare(queue); err != nil {
		return errors.Wrap(err, "declaring queue")
	}
	err := p.channel.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now().UTC(),
		},
	)
	return errors.Wrap(err, "publishing")
}

func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
