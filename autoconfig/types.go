package autoconfig

import (
	"github.com/ThreeDotsLabs/watermill-autoconfig/converter"
	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
)

// ListenerBinding declares a listener: the registry name of the handler, its method,
// the converter type tag and the comma separated queue names.
type ListenerBinding struct {
	TargetName    string
	MethodName    string
	ConverterType string
	QueueNamesRaw string
}

// ConsumerActivationSet is the consumer part of the configuration.
type ConsumerActivationSet struct {
	Enabled     bool
	Description string
	Bindings    []ListenerBinding
}

// ProviderActivationSet is the provider part of the configuration.
// Topology is declared on the broker when the set is enabled.
type ProviderActivationSet struct {
	Enabled     bool
	Description string
	Topology    amqpinfra.Topology
}

// HandlerRegistry resolves handlers by name.
type HandlerRegistry interface {
	Lookup(name string) (interface{}, error)
}

// ConverterFactory resolves message converters by type tag.
type ConverterFactory interface {
	Resolve(typeTag string) (converter.MessageConverter, error)
}

// QueueListenerInitializer registers handler's method as the listener of queueNames.
type QueueListenerInitializer interface {
	InitQueueListener(
		handler interface{},
		methodName string,
		conv converter.MessageConverter,
		conn amqpinfra.Connection,
		queueNames []string,
	) error
}

// AdminHandle declares broker topology.
type AdminHandle interface {
	Declare(topology amqpinfra.Topology) error
}

// ProviderInitializer performs the provider activation.
type ProviderInitializer func(descriptor ProviderActivationSet, admin AdminHandle) error

// InitProvider is the default ProviderInitializer. It declares descriptor.Topology.
func InitProvider(descriptor ProviderActivationSet, admin AdminHandle) error {
	return admin.Declare(descriptor.Topology)
}
