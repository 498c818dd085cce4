// Package autoconfig activates the AMQP provider and consumer parts of an application at startup.
//
// Both activators are gated by the Enabled flag of their activation set and run once.
// ProviderActivator declares the broker topology through an admin handle. ConsumerActivator
// resolves every declared listener binding against a handler registry and a converter factory
// and registers it with a queue listener initializer:
//
//	consumers, err := autoconfig.NewConsumerActivator(autoconfig.ConsumerActivatorConfig{
//		Registry:   handlers,
//		Converters: converter.DefaultFactory(),
//		Connection: conn,
//		Listeners:  listener.NewRegistrar(listener.RegistrarConfig{AMQP: amqpConfig}, logger),
//	}, logger)
//	if err != nil {
//		return err
//	}
//	if err := consumers.Activate(props.ConsumerActivationSet()); err != nil {
//		return err
//	}
package autoconfig
