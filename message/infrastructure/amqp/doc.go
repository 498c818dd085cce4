// Package amqp contains the AMQP side of the auto-configuration: the reconnecting
// connection handle, the admin used to declare topology, and the marshaler turning
// deliveries into messages.
//
// Supported features:
// - Reconnect support
// - TLS support
// - Qos settings for consuming channels
// - Exchange, queue and binding declaration
//
// Consuming itself is done by listener containers (see the listener package), which open
// their own channels on the Connection.
//
// In case of any problem to find which exchange, queue or routing key was declared,
// just enable logging with debug level and check it in logs.
package amqp
