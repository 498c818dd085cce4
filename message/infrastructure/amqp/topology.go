package amqp

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

// Topology is the set of broker resources declared by the provider activation.
// Exchanges are declared first, then queues, then bindings.
type Topology struct {
	Exchanges []ExchangeDeclaration
	Queues    []QueueDeclaration
	Bindings  []BindingDeclaration
}

// IsEmpty returns true when there is nothing to declare.
func (t Topology) IsEmpty() bool {
	return len(t.Exchanges) == 0 && len(t.Queues) == 0 && len(t.Bindings) == 0
}

// Validate checks that every declaration is complete.
// Bindings are not checked against declared exchanges and queues,
// as they may refer to resources created outside of this service.
func (t Topology) Validate() error {
	var err error

	for i, exchange := range t.Exchanges {
		if exchange.Name == "" {
			err = multierror.Append(err, errors.Errorf("exchange #%d: empty name", i))
		}
		if exchange.Type == "" {
			err = multierror.Append(err, errors.Errorf("exchange %q: empty type", exchange.Name))
		}
	}
	for i, queue := range t.Queues {
		if queue.Name == "" {
			err = multierror.Append(err, errors.Errorf("queue #%d: empty name", i))
		}
	}
	for i, binding := range t.Bindings {
		if binding.Queue == "" {
			err = multierror.Append(err, errors.Errorf("binding #%d: empty queue", i))
		}
		if binding.Exchange == "" {
			err = multierror.Append(err, errors.Errorf("binding #%d: empty exchange", i))
		}
	}

	return err
}

// ExchangeDeclaration describes an exchange, see amqp.Channel.ExchangeDeclare.
type ExchangeDeclaration struct {
	Name string
	// Type is one of direct, fanout, topic or headers.
	Type       string
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Arguments  amqp.Table
}

// QueueDeclaration describes a queue, see amqp.Channel.QueueDeclare.
type QueueDeclaration struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Arguments  amqp.Table
}

// BindingDeclaration binds Queue to Exchange with RoutingKey.
type BindingDeclaration struct {
	Queue      string
	Exchange   string
	RoutingKey string
	NoWait     bool
	Arguments  amqp.Table
}
