// Package amqptest provides an in-memory implementation of amqp.Connection for tests.
package amqptest

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"

	"github.com/ThreeDotsLabs/watermill-autoconfig/message"
	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
)

// Outcome of a delivery, as reported by the consumer.
type Outcome struct {
	Acked   bool
	Nacked  bool
	Requeue bool
}

// Broker is a fake AMQP connection: it records declarations and routes published
// messages directly to queues by name.
type Broker struct {
	lock sync.Mutex

	queues    map[string]chan amqp.Delivery
	declared  []string
	outcomes  map[uint64]Outcome
	consumers map[string]*fakeConsumer
	channels  []*Channel
	nextTag   uint64

	// ChannelErr is returned by Channel when set.
	ChannelErr error
	// DeclareErr is returned by every declaration when set.
	DeclareErr error
	// ConsumeErr is returned by Consume for the given queues.
	ConsumeErr map[string]error

	connected chan struct{}
	closing   chan struct{}
	closeOnce sync.Once

	marshaler amqpinfra.Marshaler
}

func NewBroker() *Broker {
	connected := make(chan struct{})
	close(connected)

	return &Broker{
		queues:     map[string]chan amqp.Delivery{},
		outcomes:   map[uint64]Outcome{},
		consumers:  map[string]*fakeConsumer{},
		ConsumeErr: map[string]error{},
		connected:  connected,
		closing:    make(chan struct{}),
		marshaler:  amqpinfra.DefaultMarshaler{},
	}
}

func (b *Broker) Channel() (amqpinfra.Channel, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.ChannelErr != nil {
		return nil, b.ChannelErr
	}

	ch := &Channel{broker: b}
	b.channels = append(b.channels, ch)

	return ch, nil
}

func (b *Broker) Connected() <-chan struct{} {
	return b.connected
}

func (b *Broker) Closing() <-chan struct{} {
	return b.closing
}

// Close simulates closing the connection for good.
func (b *Broker) Close() {
	b.closeOnce.Do(func() {
		close(b.closing)
	})
}

// Declared returns all declarations in order, formatted as "exchange:name:type",
// "queue:name" or "binding:queue:exchange:key".
func (b *Broker) Declared() []string {
	b.lock.Lock()
	defer b.lock.Unlock()

	return append([]string(nil), b.declared...)
}

// OpenedChannels returns the number of channels opened so far.
func (b *Broker) OpenedChannels() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.channels)
}

// ActiveConsumers returns the consumer tags consuming from queue.
func (b *Broker) ActiveConsumers(queue string) []string {
	b.lock.Lock()
	defer b.lock.Unlock()

	var tags []string
	for tag, c := range b.consumers {
		if c.queue == queue {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Publish marshals msg and puts it on queue. It returns the delivery tag.
func (b *Broker) Publish(t *testing.T, queue string, msg *message.Message) uint64 {
	t.Helper()

	publishing, err := b.marshaler.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	return b.PublishRaw(queue, publishing)
}

// PublishRaw puts publishing on queue as if it was published by another client.
func (b *Broker) PublishRaw(queue string, publishing amqp.Publishing) uint64 {
	b.lock.Lock()
	b.nextTag++
	tag := b.nextTag
	q := b.queue(queue)
	b.lock.Unlock()

	q <- amqp.Delivery{
		Acknowledger: b,
		Headers:      publishing.Headers,
		ContentType:  publishing.ContentType,
		MessageId:    publishing.MessageId,
		DeliveryMode: publishing.DeliveryMode,
		DeliveryTag:  tag,
		RoutingKey:   queue,
		Body:         publishing.Body,
	}

	return tag
}

// Outcome returns how delivery tag was settled.
func (b *Broker) Outcome(tag uint64) (Outcome, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	o, ok := b.outcomes[tag]
	return o, ok
}

// WaitForOutcome waits until delivery tag is acked or nacked.
func (b *Broker) WaitForOutcome(t *testing.T, tag uint64, timeout time.Duration) Outcome {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if o, ok := b.Outcome(tag); ok {
			return o
		}
		time.Sleep(time.Millisecond * 5)
	}

	t.Fatalf("delivery %d was not settled within %s", tag, timeout)
	return Outcome{}
}

// WaitForConsumers waits until count consumers are consuming from queue.
func (b *Broker) WaitForConsumers(t *testing.T, queue string, count int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(b.ActiveConsumers(queue)) == count {
			return
		}
		time.Sleep(time.Millisecond * 5)
	}

	t.Fatalf("expected %d consumers on %s, got %v", count, queue, b.ActiveConsumers(queue))
}

// CloseChannels simulates the broker closing every open channel with an error.
func (b *Broker) CloseChannels() {
	b.lock.Lock()
	channels := append([]*Channel(nil), b.channels...)
	b.lock.Unlock()

	for _, ch := range channels {
		ch.closeWithError(&amqp.Error{Code: amqp.ChannelError, Reason: "closed by test"})
	}
}

func (b *Broker) Ack(tag uint64, multiple bool) error {
	return b.settle(tag, Outcome{Acked: true})
}

func (b *Broker) Nack(tag uint64, multiple bool, requeue bool) error {
	return b.settle(tag, Outcome{Nacked: true, Requeue: requeue})
}

func (b *Broker) Reject(tag uint64, requeue bool) error {
	return b.settle(tag, Outcome{Nacked: true, Requeue: requeue})
}

func (b *Broker) settle(tag uint64, outcome Outcome) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if _, ok := b.outcomes[tag]; ok {
		return errors.Errorf("delivery %d already settled", tag)
	}
	b.outcomes[tag] = outcome

	return nil
}

// queue must be called with b.lock held.
func (b *Broker) queue(name string) chan amqp.Delivery {
	q, ok := b.queues[name]
	if !ok {
		q = make(chan amqp.Delivery, 1024)
		b.queues[name] = q
	}
	return q
}

func (b *Broker) declare(entry string) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.DeclareErr != nil {
		return b.DeclareErr
	}
	b.declared = append(b.declared, entry)

	return nil
}

var _ amqpinfra.Connection = (*Broker)(nil)
var _ amqp.Acknowledger = (*Broker)(nil)
