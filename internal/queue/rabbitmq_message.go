package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message wraps a Task with its RabbitMQ delivery information
type Message struct {
	Task        *Task
	DeliveryTag uint64
	Channel     *amqp.Channel
}

// Ack acknowledges the message
func (m *Message) Ack() error {
	return m.Channel.Ack(m.DeliveryTag, false)
}

// Nack negatively acknowledges the message
func (m *Message) Nack(requeue bool) error {
	return m.Channel.Nack(m.DeliveryTag, false, requeue)
}

// GetTask returns the wrapped task
func (m *Message) GetTask() *Task {
	return m.Task
}

var _ MessageInterface = (*Message)(nil)
