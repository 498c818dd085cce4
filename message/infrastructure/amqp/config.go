package amqp

import (
	"crypto/tls"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

// Config is the configuration shared by the connection, the admin and the listener containers.
type Config struct {
	Connection ConnectionConfig

	Marshaler Marshaler

	Consume ConsumeConfig
}

// NewDurableQueueConfig returns the configuration used for queues declared durable by the provider:
// messages are acked manually and requeued when a listener fails.
func NewDurableQueueConfig(amqpURI string) Config {
	return Config{
		Connection: ConnectionConfig{
			AmqpURI:   amqpURI,
			Reconnect: DefaultReconnectConfig(),
		},

		Marshaler: DefaultMarshaler{},

		Consume: ConsumeConfig{
			Qos: QosConfig{
				PrefetchCount: 1,
			},
		},
	}
}

func (c Config) validate() error {
	var err error

	if c.Connection.AmqpURI == "" {
		err = multierror.Append(err, errors.New("empty Config.Connection.AmqpURI"))
	}
	if c.Connection.AmqpConfig != nil && c.Connection.AmqpConfig.TLSClientConfig != nil && c.Connection.TLSConfig != nil {
		err = multierror.Append(err, errors.New("both Config.Connection.AmqpConfig.TLSClientConfig and Config.Connection.TLSConfig are set"))
	}
	if c.Consume.Qos.PrefetchCount < 0 {
		err = multierror.Append(err, errors.Errorf("negative Config.Consume.Qos.PrefetchCount: %d", c.Consume.Qos.PrefetchCount))
	}
	if c.Consume.Qos.PrefetchSize < 0 {
		err = multierror.Append(err, errors.Errorf("negative Config.Consume.Qos.PrefetchSize: %d", c.Consume.Qos.PrefetchSize))
	}

	return err
}

// ValidateConnection validates the part of the config used to dial the broker.
func (c Config) ValidateConnection() error {
	return c.validate()
}

// ValidateConsumer validates the config used by listener containers.
func (c Config) ValidateConsumer() error {
	err := c.validate()

	if c.Marshaler == nil {
		err = multierror.Append(err, errors.New("missing Config.Marshaler"))
	}

	return err
}

type ConnectionConfig struct {
	AmqpURI string

	TLSConfig  *tls.Config
	AmqpConfig *amqp.Config

	Reconnect *ReconnectConfig
}

// ConsumeConfig contains the settings of every consumer started by a listener container.
type ConsumeConfig struct {
	// When true, a nacked message is dropped (or dead-lettered) instead of being requeued.
	NoRequeueOnNack bool

	// Prefix of the generated consumer tag. A short UUID is appended to keep tags unique.
	ConsumerTagPrefix string

	Exclusive bool
	NoLocal   bool
	NoWait    bool
	Arguments amqp.Table

	Qos QosConfig
}

// QosConfig is passed to amqp.Channel.Qos on every channel opened for consuming.
// See https://www.rabbitmq.com/consumer-prefetch.html
type QosConfig struct {
	PrefetchCount int
	PrefetchSize  int
	Global        bool
}

type ReconnectConfig struct {
	BackoffInitialInterval     time.Duration
	BackoffRandomizationFactor float64
	BackoffMultiplier          float64
	BackoffMaxInterval         time.Duration
}

func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		BackoffInitialInterval:     500 * time.Millisecond,
		BackoffRandomizationFactor: 0.5,
		BackoffMultiplier:          1.5,
		BackoffMaxInterval:         60 * time.Second,
	}
}

func (r ReconnectConfig) backoffConfig() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     r.BackoffInitialInterval,
		RandomizationFactor: r.BackoffRandomizationFactor,
		Multiplier:          r.BackoffMultiplier,
		MaxInterval:         r.BackoffMaxInterval,
		MaxElapsedTime:      0, // reconnecting stops only when the connection is closed
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}
