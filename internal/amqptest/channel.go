package amqptest

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"

	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
)

type fakeConsumer struct {
	queue string
	stop  chan struct{}
	done  chan struct{}
}

// Channel is a fake amqp channel bound to a Broker.
type Channel struct {
	broker *Broker

	lock      sync.Mutex
	closed    bool
	notify    []chan *amqp.Error
	consumers []string

	Qoses []int
}

func (c *Channel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return c.broker.declare("exchange:" + name + ":" + kind)
}

func (c *Channel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if err := c.broker.declare("queue:" + name); err != nil {
		return amqp.Queue{}, err
	}
	return amqp.Queue{Name: name}, nil
}

func (c *Channel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return c.broker.declare("binding:" + name + ":" + exchange + ":" + key)
}

func (c *Channel) Qos(prefetchCount, prefetchSize int, global bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.Qoses = append(c.Qoses, prefetchCount)
	return nil
}

func (c *Channel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return nil, amqp.ErrClosed
	}

	c.broker.lock.Lock()
	if err := c.broker.ConsumeErr[queue]; err != nil {
		c.broker.lock.Unlock()
		return nil, err
	}
	if _, exists := c.broker.consumers[consumer]; exists {
		c.broker.lock.Unlock()
		return nil, errors.Errorf("consumer tag %s already in use", consumer)
	}
	in := c.broker.queue(queue)
	fc := &fakeConsumer{queue: queue, stop: make(chan struct{}), done: make(chan struct{})}
	c.broker.consumers[consumer] = fc
	c.broker.lock.Unlock()

	c.consumers = append(c.consumers, consumer)

	out := make(chan amqp.Delivery)
	go func() {
		defer close(fc.done)
		defer close(out)

		for {
			select {
			case <-fc.stop:
				return
			case d := <-in:
				select {
				case out <- d:
				case <-fc.stop:
					// not delivered, put it back for other consumers
					in <- d
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *Channel) Cancel(consumer string, noWait bool) error {
	c.broker.lock.Lock()
	fc, ok := c.broker.consumers[consumer]
	delete(c.broker.consumers, consumer)
	c.broker.lock.Unlock()

	if !ok {
		return nil
	}

	close(fc.stop)
	<-fc.done

	return nil
}

func (c *Channel) NotifyClose(ch chan *amqp.Error) chan *amqp.Error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		close(ch)
		return ch
	}
	c.notify = append(c.notify, ch)

	return ch
}

func (c *Channel) Close() error {
	c.closeWithError(nil)
	return nil
}

func (c *Channel) closeWithError(err *amqp.Error) {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	c.closed = true
	consumers := c.consumers
	notify := c.notify
	c.lock.Unlock()

	for _, tag := range consumers {
		_ = c.Cancel(tag, false)
	}

	for _, ch := range notify {
		if err != nil {
			select {
			case ch <- err:
			default:
			}
		}
		close(ch)
	}
}

var _ amqpinfra.Channel = (*Channel)(nil)
