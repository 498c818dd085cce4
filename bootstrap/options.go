package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/listener"
	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
)

type options struct {
	logger             watermill.LoggerAdapter
	connection         amqpinfra.Connection
	converters         autoconfig.ConverterFactory
	prometheusRegistry *prometheus.Registry
	onDelivery         listener.DeliveryObserver
	providerInit       autoconfig.ProviderInitializer
}

// Option configures Start.
type Option func(*options)

func WithLogger(logger watermill.LoggerAdapter) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConnection makes Start use conn instead of dialing the broker.
// The connection is not closed by Application.Close.
func WithConnection(conn amqpinfra.Connection) Option {
	return func(o *options) {
		o.connection = conn
	}
}

// WithConverters replaces converter.DefaultFactory.
func WithConverters(converters autoconfig.ConverterFactory) Option {
	return func(o *options) {
		o.converters = converters
	}
}

// WithPrometheusRegistry registers the metrics on registry instead of a new one.
func WithPrometheusRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.prometheusRegistry = registry
	}
}

// WithDeliveryObserver adds an observer called after every settled delivery.
func WithDeliveryObserver(observer listener.DeliveryObserver) Option {
	return func(o *options) {
		o.onDelivery = observer
	}
}

// WithProviderInitializer replaces autoconfig.InitProvider.
func WithProviderInitializer(init autoconfig.ProviderInitializer) Option {
	return func(o *options) {
		o.providerInit = init
	}
}
