package autoconfig

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
)

type ConsumerActivatorConfig struct {
	Registry   HandlerRegistry
	Converters ConverterFactory
	Connection amqpinfra.Connection
	Listeners  QueueListenerInitializer
}

func (c ConsumerActivatorConfig) Validate() error {
	var err error

	if c.Registry == nil {
		err = multierror.Append(err, errors.New("missing ConsumerActivatorConfig.Registry"))
	}
	if c.Converters == nil {
		err = multierror.Append(err, errors.New("missing ConsumerActivatorConfig.Converters"))
	}
	if c.Connection == nil {
		err = multierror.Append(err, errors.New("missing ConsumerActivatorConfig.Connection"))
	}
	if c.Listeners == nil {
		err = multierror.Append(err, errors.New("missing ConsumerActivatorConfig.Listeners"))
	}

	return err
}

// ConsumerActivator registers the declared listener bindings when the consumer is enabled.
type ConsumerActivator struct {
	config ConsumerActivatorConfig
	logger watermill.LoggerAdapter

	state activationState
}

func NewConsumerActivator(config ConsumerActivatorConfig, logger watermill.LoggerAdapter) (*ConsumerActivator, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid consumer activator config")
	}

	return &ConsumerActivator{
		config: config,
		logger: watermill.LoggerOrNop(logger),
	}, nil
}

// Activate registers descriptor's bindings in declared order.
//
// For every binding the handler is looked up first. Bindings with blank queue names are
// then skipped without an error. Lookup, converter and registration errors are returned
// as they are and abort the remaining bindings.
func (c *ConsumerActivator) Activate(descriptor ConsumerActivationSet) error {
	if !descriptor.Enabled {
		return nil
	}
	if err := c.state.begin(); err != nil {
		return err
	}

	activationID := watermill.NewULID()
	logger := c.logger.With(watermill.LogFields{"activation_id": activationID})

	registered, skipped := 0, 0

	for _, binding := range descriptor.Bindings {
		handler, err := c.config.Registry.Lookup(binding.TargetName)
		if err != nil {
			return err
		}

		if strings.TrimSpace(binding.QueueNamesRaw) == "" {
			skipped++
			continue
		}

		conv, err := c.config.Converters.Resolve(binding.ConverterType)
		if err != nil {
			return err
		}

		queueNames := SplitQueueNames(binding.QueueNamesRaw)

		if err := c.config.Listeners.InitQueueListener(
			handler,
			binding.MethodName,
			conv,
			c.config.Connection,
			queueNames,
		); err != nil {
			return err
		}

		logger.Trace("Listener registered", watermill.LogFields{
			"target":      binding.TargetName,
			"method":      binding.MethodName,
			"converter":   conv.Name(),
			"queue_names": queueNames,
		})
		registered++
	}

	logger.Info("AMQP consumer activated", watermill.LogFields{
		"description":         descriptor.Description,
		"registered_bindings": registered,
		"skipped_bindings":    skipped,
	})

	return nil
}

// Activated reports whether Activate ran with an enabled descriptor.
func (c *ConsumerActivator) Activated() bool {
	c.state.lock.Lock()
	defer c.state.lock.Unlock()

	return c.state.activated
}
