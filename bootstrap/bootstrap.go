// Package bootstrap runs the startup sequence of a service using the AMQP auto-configuration:
// it connects to the broker, activates the provider and then the consumer and exposes
// the listener metrics.
package bootstrap

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/config"
	"github.com/ThreeDotsLabs/watermill-autoconfig/converter"
	"github.com/ThreeDotsLabs/watermill-autoconfig/lang/function"
	"github.com/ThreeDotsLabs/watermill-autoconfig/listener"
	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
	"github.com/ThreeDotsLabs/watermill-autoconfig/metrics"
)

const metricsSubsystem = "autoconfig"

// Application holds everything started by Start.
type Application struct {
	registrar *listener.Registrar
	metrics   *metrics.ListenerMetrics

	prometheusRegistry *prometheus.Registry

	ownedConnection   *amqpinfra.ConnectionWrapper
	stopMetricsServer func()

	logger watermill.LoggerAdapter

	closeOnce sync.Once
	closeErr  error
}

// Start activates the provider and the consumer described by props.
// Listener bindings refer to handlers registered in handlers.
//
// When neither the provider nor the consumer is enabled, no connection is made.
// Activation errors are returned as they are, after everything started so far is closed.
func Start(ctx context.Context, props config.Properties, handlers autoconfig.HandlerRegistry, opts ...Option) (*Application, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := watermill.LoggerOrNop(o.logger)
	if o.converters == nil {
		o.converters = converter.DefaultFactory()
	}
	if o.prometheusRegistry == nil {
		o.prometheusRegistry = prometheus.NewRegistry()
	}

	if err := props.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid properties")
	}

	app := &Application{
		prometheusRegistry: o.prometheusRegistry,
		logger:             logger,
	}

	listenerMetrics, err := metrics.NewPrometheusMetricsBuilder(o.prometheusRegistry, props.Metrics.Namespace, metricsSubsystem).
		NewListenerMetrics(func() int {
			return len(app.Containers())
		})
	if err != nil {
		return nil, err
	}
	app.metrics = listenerMetrics

	amqpConfig := props.AMQPConfig()
	app.registrar = listener.NewRegistrar(listener.RegistrarConfig{
		AMQP:              amqpConfig,
		ConsumersPerQueue: props.AMQP.Consume.ConsumersPerQueue,
		CloseTimeout:      props.AMQP.Consume.CloseTimeout,
		OnDelivery: function.ChainFourConsumers(
			listenerMetrics.DeliveryObserver(),
			o.onDelivery,
		),
	}, logger)

	if props.Metrics.Enabled {
		app.stopMetricsServer = metrics.ServeHTTP(props.Metrics.Addr, o.prometheusRegistry, app.registrar, logger)
	}

	if !props.AMQP.Provider.Enabled && !props.AMQP.Consumer.Enabled {
		logger.Info("AMQP provider and consumer are disabled, nothing to activate", nil)
		return app, nil
	}

	conn := o.connection
	if conn == nil {
		wrapper, err := amqpinfra.NewConnection(amqpConfig.Connection, logger)
		if err != nil {
			return nil, closeOnError(app, err)
		}
		app.ownedConnection = wrapper
		conn = wrapper
	}

	select {
	case <-conn.Connected():
	case <-ctx.Done():
		return nil, closeOnError(app, errors.Wrap(ctx.Err(), "waiting for AMQP connection"))
	}

	if err := app.activateProvider(props, conn, o.providerInit); err != nil {
		return nil, closeOnError(app, err)
	}
	if err := app.activateConsumer(props, conn, handlers, o.converters); err != nil {
		return nil, closeOnError(app, err)
	}

	return app, nil
}

func (a *Application) activateProvider(props config.Properties, conn amqpinfra.Connection, init autoconfig.ProviderInitializer) error {
	admin, err := amqpinfra.NewAdmin(conn, a.logger)
	if err != nil {
		return err
	}

	provider := autoconfig.NewProviderActivator(init, a.logger.With(watermill.LogFields{"component": metrics.ComponentProvider}))
	if err := provider.Activate(props.ProviderActivationSet(), admin); err != nil {
		return err
	}
	if provider.Activated() {
		a.metrics.ObserveActivation(metrics.ComponentProvider)
	}

	return nil
}

func (a *Application) activateConsumer(
	props config.Properties,
	conn amqpinfra.Connection,
	handlers autoconfig.HandlerRegistry,
	converters autoconfig.ConverterFactory,
) error {
	consumer, err := autoconfig.NewConsumerActivator(autoconfig.ConsumerActivatorConfig{
		Registry:   handlers,
		Converters: converters,
		Connection: conn,
		Listeners:  a.registrar,
	}, a.logger.With(watermill.LogFields{"component": metrics.ComponentConsumer}))
	if err != nil {
		return err
	}

	if err := consumer.Activate(props.ConsumerActivationSet()); err != nil {
		return err
	}
	if consumer.Activated() {
		a.metrics.ObserveActivation(metrics.ComponentConsumer)
	}

	return nil
}

func closeOnError(app *Application, err error) error {
	if closeErr := app.Close(); closeErr != nil {
		app.logger.Error("Cannot close application after failed start", closeErr, nil)
	}
	return err
}

// Containers lists the running listener containers.
func (a *Application) Containers() []listener.ContainerInfo {
	if a.registrar == nil {
		return nil
	}
	return a.registrar.Containers()
}

// PrometheusRegistry returns the registry with the listener metrics.
func (a *Application) PrometheusRegistry() *prometheus.Registry {
	return a.prometheusRegistry
}

// Close stops the listeners, the metrics server and the connection made by Start.
func (a *Application) Close() error {
	a.closeOnce.Do(func() {
		var result error

		if a.registrar != nil {
			if err := a.registrar.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if a.stopMetricsServer != nil {
			a.stopMetricsServer()
		}
		if a.ownedConnection != nil {
			if err := a.ownedConnection.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}

		a.closeErr = result
	})

	return a.closeErr
}
