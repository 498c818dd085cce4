package amqp

import (
	"github.com/streadway/amqp"
)

// Channel is the part of *amqp.Channel used by the admin and the listener containers.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Connection is the connection handle passed to the provider admin and to listener registration.
type Connection interface {
	// Channel opens a new channel on the current connection.
	Channel() (Channel, error)

	// Connected returns a channel which is closed when the connection is established.
	// After a connection loss a new, open channel is returned until reconnect succeeds.
	Connected() <-chan struct{}

	// Closing returns a channel which is closed when the connection is being closed for good.
	Closing() <-chan struct{}
}

var _ Channel = (*amqp.Channel)(nil)
