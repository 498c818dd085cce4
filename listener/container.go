package listener

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/converter"
	internalSync "github.com/ThreeDotsLabs/watermill-autoconfig/internal/sync"
	"github.com/ThreeDotsLabs/watermill-autoconfig/lang/function"
	"github.com/ThreeDotsLabs/watermill-autoconfig/message"
	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
)

// DeliveryObserver is called after every delivery is settled with the queue name,
// the listener name, the message (nil when it could not be unmarshaled) and the listener error.
type DeliveryObserver = function.FourConsumer[string, string, *message.Message, error]

// ContainerInfo describes a running container.
type ContainerInfo struct {
	Name       string   `json:"name"`
	Method     string   `json:"method"`
	Converter  string   `json:"converter"`
	QueueNames []string `json:"queue_names"`
}

// Container consumes the queues of a single listener registration.
// Every queue gets its own consumers, each on its own channel.
type Container struct {
	name       string
	queueNames []string

	method    method
	converter converter.MessageConverter
	conn      amqpinfra.Connection

	config            amqpinfra.Config
	consumersPerQueue int
	reconnectDelay    time.Duration
	closeTimeout      time.Duration
	observer          DeliveryObserver

	logger watermill.LoggerAdapter

	closing   chan struct{}
	closed    bool
	closeLock sync.Mutex

	consumersWg sync.WaitGroup
}

func (c *Container) Info() ContainerInfo {
	return ContainerInfo{
		Name:       c.name,
		Method:     c.method.name,
		Converter:  c.converter.Name(),
		QueueNames: append([]string(nil), c.queueNames...),
	}
}

func (c *Container) start() {
	for _, queueName := range c.queueNames {
		for i := 0; i < c.consumersPerQueue; i++ {
			c.consumersWg.Add(1)
			go c.consumeLoop(queueName)
		}
	}

	c.logger.Info("Listener container started", watermill.LogFields{
		"queue_names":         c.queueNames,
		"consumers_per_queue": c.consumersPerQueue,
	})
}

// Close stops consuming and waits until in-flight deliveries are settled,
// at most for RegistrarConfig.CloseTimeout.
func (c *Container) Close() error {
	c.closeLock.Lock()
	if c.closed {
		c.closeLock.Unlock()
		return nil
	}
	c.closed = true
	close(c.closing)
	c.closeLock.Unlock()

	if timeouted := internalSync.WaitGroupTimeout(&c.consumersWg, c.closeTimeout); timeouted {
		return errors.Errorf("consumers did not stop within %s", c.closeTimeout)
	}
	c.logger.Info("Listener container closed", nil)

	return nil
}

func (c *Container) consumeLoop(queueName string) {
	defer c.consumersWg.Done()

	logFields := watermill.LogFields{"amqp_queue_name": queueName}

ReconnectLoop:
	for {
		c.logger.Debug("Waiting for connection in ReconnectLoop", logFields)

		select {
		case <-c.conn.Connected():
			// runConsumer blocks until the channel fails or the container is closed
			if err := c.runConsumer(queueName, logFields); err != nil {
				c.logger.Error("Consumer stopped", err, logFields)
			}
		case <-c.closing:
			break ReconnectLoop
		case <-c.conn.Closing():
			break ReconnectLoop
		}

		select {
		case <-c.closing:
			break ReconnectLoop
		case <-c.conn.Closing():
			break ReconnectLoop
		case <-time.After(c.reconnectDelay):
		}
	}

	c.logger.Debug("Stopped consuming", logFields)
}

func (c *Container) runConsumer(queueName string, logFields watermill.LogFields) (err error) {
	channel, err := c.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "cannot open channel")
	}
	defer func() {
		if closeErr := channel.Close(); closeErr != nil && closeErr != amqp.ErrClosed {
			c.logger.Error("Failed to close channel", closeErr, logFields)
		}
	}()

	qos := c.config.Consume.Qos
	if qos != (amqpinfra.QosConfig{}) {
		if err := channel.Qos(qos.PrefetchCount, qos.PrefetchSize, qos.Global); err != nil {
			return errors.Wrap(err, "cannot set qos")
		}
	}

	notifyCloseChannel := channel.NotifyClose(make(chan *amqp.Error, 1))

	consumerTag := c.consumerTag()
	logFields = logFields.Add(watermill.LogFields{"consumer_tag": consumerTag})

	deliveries, err := channel.Consume(
		queueName,
		consumerTag,
		false, // acks are sent after the listener method returns
		c.config.Consume.Exclusive,
		c.config.Consume.NoLocal,
		c.config.Consume.NoWait,
		c.config.Consume.Arguments,
	)
	if err != nil {
		return errors.Wrapf(err, "cannot consume from queue %s", queueName)
	}

	c.logger.Info("Starting consuming from AMQP channel", logFields)

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Debug("Deliveries channel closed", logFields)
				return nil
			}
			c.handleDelivery(queueName, consumerTag, delivery, logFields)

		case amqpErr := <-notifyCloseChannel:
			if amqpErr == nil {
				return nil
			}
			return errors.Wrap(amqpErr, "channel closed")

		case <-c.closing:
			c.logger.Debug("Closing from container received", logFields)
			if err := channel.Cancel(consumerTag, false); err != nil {
				c.logger.Error("Cannot cancel consumer", err, logFields)
			}
			return nil
		}
	}
}

func (c *Container) consumerTag() string {
	prefix := c.config.Consume.ConsumerTagPrefix
	if prefix == "" {
		prefix = "autoconfig"
	}
	return prefix + "-" + watermill.NewShortUUID()
}

func (c *Container) handleDelivery(queueName, consumerTag string, delivery amqp.Delivery, logFields watermill.LogFields) {
	msg, err := c.config.Marshaler.Unmarshal(delivery)
	if err != nil {
		c.logger.Error("Cannot unmarshal message, rejecting", err, logFields)
		c.settle(delivery, ConversionError{Err: err}, logFields)
		c.observer.Accept(queueName, c.name, nil, err)
		return
	}

	msgLogFields := logFields.Add(watermill.LogFields{"message_uuid": msg.UUID})
	c.logger.Trace("Received message", msgLogFields)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msg.SetContext(message.WithDeliveryInfo(ctx, queueName, c.name, consumerTag))

	handlerErr := c.process(msg)
	if handlerErr != nil {
		c.logger.Error("Listener failed", handlerErr, msgLogFields)
		msg.Nack()
	} else {
		msg.Ack()
	}

	c.settle(delivery, handlerErr, msgLogFields)
	c.observer.Accept(queueName, c.name, msg, handlerErr)
}

func (c *Container) process(msg *message.Message) error {
	arg, err := c.converter.FromMessage(msg, c.method.argType)
	if err != nil {
		return ConversionError{Err: err}
	}

	return c.method.invoke(msg.Context(), arg)
}

func (c *Container) settle(delivery amqp.Delivery, handlerErr error, logFields watermill.LogFields) {
	if handlerErr == nil {
		if err := delivery.Ack(false); err != nil {
			c.logger.Error("Cannot ack message", err, logFields)
			return
		}
		c.logger.Trace("Message acked", logFields)
		return
	}

	requeue := !c.config.Consume.NoRequeueOnNack
	var conversionErr ConversionError
	if errors.As(handlerErr, &conversionErr) {
		requeue = false
	}

	if err := delivery.Nack(false, requeue); err != nil {
		c.logger.Error("Cannot nack message", err, logFields)
		return
	}
	c.logger.Trace("Message nacked", logFields.Add(watermill.LogFields{"requeue": requeue}))
}
