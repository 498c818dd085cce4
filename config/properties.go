package config

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/streadway/amqp"

	"github.com/ThreeDotsLabs/watermill-autoconfig/autoconfig"
	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
)

// ProviderActivationSet returns the provider part of the properties.
func (p Properties) ProviderActivationSet() autoconfig.ProviderActivationSet {
	return autoconfig.ProviderActivationSet{
		Enabled:     p.AMQP.Provider.Enabled,
		Description: p.AMQP.Provider.Description,
		Topology:    p.Topology(),
	}
}

// ConsumerActivationSet returns the consumer part of the properties, with bindings in declared order.
func (p Properties) ConsumerActivationSet() autoconfig.ConsumerActivationSet {
	bindings := make([]autoconfig.ListenerBinding, 0, len(p.AMQP.Consumer.MessageListeners))
	for _, l := range p.AMQP.Consumer.MessageListeners {
		bindings = append(bindings, autoconfig.ListenerBinding{
			TargetName:    l.QueueListenerBeanName,
			MethodName:    l.ListenerMethodName,
			ConverterType: l.MessageConverterType,
			QueueNamesRaw: l.QueueNames,
		})
	}

	return autoconfig.ConsumerActivationSet{
		Enabled:     p.AMQP.Consumer.Enabled,
		Description: p.AMQP.Consumer.Description,
		Bindings:    bindings,
	}
}

// Topology returns the broker resources declared by the provider.
func (p Properties) Topology() amqpinfra.Topology {
	var topology amqpinfra.Topology

	for _, e := range p.AMQP.Provider.Exchanges {
		topology.Exchanges = append(topology.Exchanges, amqpinfra.ExchangeDeclaration{
			Name:       e.Name,
			Type:       e.Type,
			Durable:    e.Durable,
			AutoDelete: e.AutoDelete,
			Internal:   e.Internal,
			Arguments:  table(e.Arguments),
		})
	}
	for _, q := range p.AMQP.Provider.Queues {
		topology.Queues = append(topology.Queues, amqpinfra.QueueDeclaration{
			Name:       q.Name,
			Durable:    q.Durable,
			AutoDelete: q.AutoDelete,
			Exclusive:  q.Exclusive,
			Arguments:  table(q.Arguments),
		})
	}
	for _, b := range p.AMQP.Provider.Bindings {
		topology.Bindings = append(topology.Bindings, amqpinfra.BindingDeclaration{
			Queue:      b.Queue,
			Exchange:   b.Exchange,
			RoutingKey: b.RoutingKey,
			Arguments:  table(b.Arguments),
		})
	}

	return topology
}

// AMQPConfig returns the connection and consumer configuration.
func (p Properties) AMQPConfig() amqpinfra.Config {
	config := amqpinfra.NewDurableQueueConfig(p.AMQP.URI)

	reconnect := p.AMQP.Reconnect
	config.Connection.Reconnect = &amqpinfra.ReconnectConfig{
		BackoffInitialInterval:     reconnect.InitialInterval,
		BackoffRandomizationFactor: reconnect.RandomizationFactor,
		BackoffMultiplier:          reconnect.Multiplier,
		BackoffMaxInterval:         reconnect.MaxInterval,
	}

	consume := p.AMQP.Consume
	config.Consume = amqpinfra.ConsumeConfig{
		NoRequeueOnNack:   consume.NoRequeueOnNack,
		ConsumerTagPrefix: consume.ConsumerTagPrefix,
		Exclusive:         consume.Exclusive,
		Qos: amqpinfra.QosConfig{
			PrefetchCount: consume.PrefetchCount,
			PrefetchSize:  consume.PrefetchSize,
			Global:        consume.GlobalQos,
		},
	}

	return config
}

// Validate checks the parts of the properties which are used. A disabled provider
// or consumer is not validated.
func (p Properties) Validate() error {
	var err error

	if p.AMQP.Provider.Enabled || p.AMQP.Consumer.Enabled {
		if validateErr := p.AMQPConfig().ValidateConsumer(); validateErr != nil {
			err = multierror.Append(err, validateErr)
		}
	}

	if p.AMQP.Consume.ConsumersPerQueue < 0 {
		err = multierror.Append(err, errors.Errorf("negative amqp.consume.consumers_per_queue: %d", p.AMQP.Consume.ConsumersPerQueue))
	}

	if p.AMQP.Provider.Enabled {
		if topologyErr := p.Topology().Validate(); topologyErr != nil {
			err = multierror.Append(err, errors.Wrap(topologyErr, "invalid amqp.provider topology"))
		}
	}

	if p.AMQP.Consumer.Enabled {
		for i, l := range p.AMQP.Consumer.MessageListeners {
			if strings.TrimSpace(l.QueueListenerBeanName) == "" {
				err = multierror.Append(err, errors.Errorf("amqp.consumer.message_listeners[%d]: empty queue_listener_bean_name", i))
			}
		}
	}

	if p.Metrics.Enabled && p.Metrics.Addr == "" {
		err = multierror.Append(err, errors.New("empty metrics.addr"))
	}

	return err
}

func table(args map[string]interface{}) amqp.Table {
	if len(args) == 0 {
		return nil
	}

	t := make(amqp.Table, len(args))
	for k, v := range args {
		t[k] = v
	}
	return t
}
