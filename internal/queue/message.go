package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message wraps a job with its delivery metadata so consumers can ack
// or reject it after processing.
type Message struct {
	Job         *Job
	DeliveryTag uint64
	Channel     *amqp.Channel
}

// Ack acknowledges the message, removing it from the queue.
func (m *Message) Ack() error {
	return m.Channel.Ack(m.DeliveryTag, false)
}

// Nack rejects the message. With requeue false the broker routes it to
// the dead letter queue.
func (m *Message) Nack(requeue bool) error {
	return m.Channel.Nack(m.DeliveryTag, false, requeue)
}

// GetJob returns the job carried by the message.
func (m *Message) GetJob() *Job {
	return m.Job
}
