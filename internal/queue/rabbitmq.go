package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultQueueName holds pending title generation jobs.
	DefaultQueueName = "conversation_title_jobs"
	// DefaultDLQName collects jobs that exhausted their retries or
	// could not be decoded.
	DefaultDLQName = "conversation_title_jobs_dlq"
	// DefaultExchangeName is the direct exchange both queues bind to.
	DefaultExchangeName = "taskpilot_jobs"

	jobRoutingKey = "jobs"
	dlqRoutingKey = "dlq"
)

// RabbitMQQueue is a JobQueue backed by a durable RabbitMQ topology:
// one direct exchange, a work queue and a dead letter queue. A nack
// without requeue moves the message to the DLQ.
type RabbitMQQueue struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	dlq      string
	exchange string
}

// NewRabbitMQQueue dials the broker and declares the topology.
func NewRabbitMQQueue(amqpURL string) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q := &RabbitMQQueue{
		conn:     conn,
		channel:  ch,
		queue:    DefaultQueueName,
		dlq:      DefaultDLQName,
		exchange: DefaultExchangeName,
	}
	if err := q.declareTopology(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return q, nil
}

func (q *RabbitMQQueue) declareTopology() error {
	if err := q.channel.ExchangeDeclare(q.exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := q.channel.QueueDeclare(q.dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}
	if err := q.channel.QueueBind(q.dlq, dlqRoutingKey, q.exchange, false, nil); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    q.exchange,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}
	if _, err := q.channel.QueueDeclare(q.queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := q.channel.QueueBind(q.queue, jobRoutingKey, q.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Enqueue publishes a job as a persistent JSON message.
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	err = q.channel.PublishWithContext(ctx, q.exchange, jobRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    job.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Consume opens a dedicated consumer channel and bridges deliveries
// into Message values. Acks are manual; the caller decides per job.
// Undecodable payloads are dead lettered immediately and reported on
// the error channel. Both channels close when ctx is cancelled or the
// broker drops the consumer.
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open consumer channel: %w", err)
	}

	// Per-consumer prefetch keeps dispatch fair across worker replicas.
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("start consumer: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() { _ = ch.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- errors.New("delivery channel closed")
					return
				}

				var job Job
				if err := json.Unmarshal(delivery.Body, &job); err != nil {
					_ = delivery.Nack(false, false)
					errChan <- fmt.Errorf("unmarshal job: %w", err)
					continue
				}

				msg := &Message{
					Job:         &job,
					DeliveryTag: delivery.DeliveryTag,
					Channel:     ch,
				}
				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// Close shuts down the publish channel and the connection.
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
