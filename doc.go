// Package watermill (watermill-autoconfig) activates AMQP providers and consumers at service startup.
//
// Two activators are driven by configuration, each gated by its own "enabled" flag:
// the provider activator declares broker topology (exchanges, queues, bindings),
// the consumer activator resolves listener handlers by name and registers them
// against queues with a message converter chosen by a type tag.
//
// The root package contains the logging adapters and ID generators shared by all
// other packages. The activation logic lives in the autoconfig package, the startup
// sequence in the bootstrap package.
package watermill
