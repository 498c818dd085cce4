package amqp

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
)

// Admin declares broker topology. It is the admin handle used by the provider activation.
type Admin struct {
	conn   Connection
	logger watermill.LoggerAdapter
}

func NewAdmin(conn Connection, logger watermill.LoggerAdapter) (*Admin, error) {
	if conn == nil {
		return nil, errors.New("missing connection")
	}

	return &Admin{
		conn:   conn,
		logger: watermill.LoggerOrNop(logger),
	}, nil
}

// Declare declares the whole topology on a single channel.
// Declaration stops at the first error, as the broker closes the channel after a failed declare.
func (a *Admin) Declare(topology Topology) (err error) {
	if err := topology.Validate(); err != nil {
		return errors.Wrap(err, "invalid topology")
	}
	if topology.IsEmpty() {
		a.logger.Debug("Empty topology, nothing to declare", nil)
		return nil
	}

	channel, err := a.conn.Channel()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := channel.Close(); closeErr != nil {
			err = multierror.Append(err, errors.Wrap(closeErr, "cannot close channel"))
		}
	}()

	for _, exchange := range topology.Exchanges {
		if err := a.declareExchange(channel, exchange); err != nil {
			return err
		}
	}
	for _, queue := range topology.Queues {
		if err := a.declareQueue(channel, queue); err != nil {
			return err
		}
	}
	for _, binding := range topology.Bindings {
		if err := a.declareBinding(channel, binding); err != nil {
			return err
		}
	}

	a.logger.Debug("Topology declared", watermill.LogFields{
		"exchanges": len(topology.Exchanges),
		"queues":    len(topology.Queues),
		"bindings":  len(topology.Bindings),
	})

	return nil
}

func (a *Admin) DeclareExchange(exchange ExchangeDeclaration) error {
	return a.Declare(Topology{Exchanges: []ExchangeDeclaration{exchange}})
}

func (a *Admin) DeclareQueue(queue QueueDeclaration) error {
	return a.Declare(Topology{Queues: []QueueDeclaration{queue}})
}

func (a *Admin) DeclareBinding(binding BindingDeclaration) error {
	return a.Declare(Topology{Bindings: []BindingDeclaration{binding}})
}

func (a *Admin) declareExchange(channel Channel, exchange ExchangeDeclaration) error {
	logFields := watermill.LogFields{"amqp_exchange_name": exchange.Name, "amqp_exchange_type": exchange.Type}

	if err := channel.ExchangeDeclare(
		exchange.Name,
		exchange.Type,
		exchange.Durable,
		exchange.AutoDelete,
		exchange.Internal,
		exchange.NoWait,
		exchange.Arguments,
	); err != nil {
		return errors.Wrapf(err, "cannot declare exchange %s", exchange.Name)
	}

	a.logger.Debug("Exchange declared", logFields)
	return nil
}

func (a *Admin) declareQueue(channel Channel, queue QueueDeclaration) error {
	if _, err := channel.QueueDeclare(
		queue.Name,
		queue.Durable,
		queue.AutoDelete,
		queue.Exclusive,
		queue.NoWait,
		queue.Arguments,
	); err != nil {
		return errors.Wrapf(err, "cannot declare queue %s", queue.Name)
	}

	a.logger.Debug("Queue declared", watermill.LogFields{"amqp_queue_name": queue.Name})
	return nil
}

func (a *Admin) declareBinding(channel Channel, binding BindingDeclaration) error {
	logFields := watermill.LogFields{
		"amqp_queue_name":    binding.Queue,
		"amqp_exchange_name": binding.Exchange,
		"amqp_routing_key":   binding.RoutingKey,
	}

	if err := channel.QueueBind(
		binding.Queue,
		binding.RoutingKey,
		binding.Exchange,
		binding.NoWait,
		binding.Arguments,
	); err != nil {
		return errors.Wrapf(err, "cannot bind queue %s to exchange %s", binding.Queue, binding.Exchange)
	}

	a.logger.Debug("Queue bound to exchange", logFields)
	return nil
}
