package amqp

import (
	"sync"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/streadway/amqp"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
)

// ConnectionWrapper manages an AMQP connection, reconnecting when the broker closes it.
type ConnectionWrapper struct {
	config ConnectionConfig

	logger watermill.LoggerAdapter

	amqpConnection     *amqp.Connection
	amqpConnectionLock sync.Mutex
	connected          chan struct{}

	closing   chan struct{}
	closed    bool
	closeLock sync.Mutex
}

// NewConnection dials the broker. It fails fast when the first dial is not successful,
// later connection losses are handled by reconnecting in the background.
func NewConnection(config ConnectionConfig, logger watermill.LoggerAdapter) (*ConnectionWrapper, error) {
	if err := (Config{Connection: config}).ValidateConnection(); err != nil {
		return nil, err
	}

	c := &ConnectionWrapper{
		config:    config,
		logger:    watermill.LoggerOrNop(logger),
		closing:   make(chan struct{}),
		connected: make(chan struct{}),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}

	go c.handleConnectionClose()

	return c, nil
}

func (c *ConnectionWrapper) Close() error {
	c.closeLock.Lock()
	if c.closed {
		c.closeLock.Unlock()
		return nil
	}
	c.closed = true
	close(c.closing)
	c.closeLock.Unlock()

	c.logger.Info("Closing AMQP connection", nil)
	defer c.logger.Info("Closed AMQP connection", nil)

	c.amqpConnectionLock.Lock()
	defer c.amqpConnectionLock.Unlock()

	if c.amqpConnection == nil {
		return nil
	}
	if err := c.amqpConnection.Close(); err != nil && err != amqp.ErrClosed {
		return errors.Wrap(err, "cannot close AMQP connection")
	}

	return nil
}

func (c *ConnectionWrapper) isClosed() bool {
	c.closeLock.Lock()
	defer c.closeLock.Unlock()
	return c.closed
}

func (c *ConnectionWrapper) connect() error {
	c.amqpConnectionLock.Lock()
	defer c.amqpConnectionLock.Unlock()

	var connection *amqp.Connection
	var err error

	if c.config.AmqpConfig != nil {
		connection, err = amqp.DialConfig(c.config.AmqpURI, *c.config.AmqpConfig)
	} else if c.config.TLSConfig != nil {
		connection, err = amqp.DialTLS(c.config.AmqpURI, c.config.TLSConfig)
	} else {
		connection, err = amqp.Dial(c.config.AmqpURI)
	}

	if err != nil {
		return errors.Wrap(err, "cannot connect to AMQP")
	}
	c.amqpConnection = connection
	close(c.connected)

	c.logger.Info("Connected to AMQP", nil)

	return nil
}

// Channel opens a new channel on the current connection.
func (c *ConnectionWrapper) Channel() (Channel, error) {
	if c.isClosed() {
		return nil, errors.New("AMQP connection is closed")
	}
	if !c.IsConnected() {
		return nil, errors.New("not connected to AMQP")
	}

	c.amqpConnectionLock.Lock()
	conn := c.amqpConnection
	c.amqpConnectionLock.Unlock()

	channel, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "cannot open channel")
	}

	return channel, nil
}

func (c *ConnectionWrapper) Connected() <-chan struct{} {
	c.amqpConnectionLock.Lock()
	defer c.amqpConnectionLock.Unlock()

	return c.connected
}

func (c *ConnectionWrapper) Closing() <-chan struct{} {
	return c.closing
}

func (c *ConnectionWrapper) IsConnected() bool {
	select {
	case <-c.Connected():
		return true
	default:
		return false
	}
}

func (c *ConnectionWrapper) handleConnectionClose() {
	for {
		c.logger.Debug("handleConnectionClose is waiting for connection", nil)

		select {
		case <-c.Connected():
		case <-c.closing:
			c.logger.Debug("Stopping handleConnectionClose", nil)
			return
		}

		c.amqpConnectionLock.Lock()
		notifyCloseConnection := c.amqpConnection.NotifyClose(make(chan *amqp.Error, 1))
		c.amqpConnectionLock.Unlock()

		select {
		case <-c.closing:
			c.logger.Debug("Stopping handleConnectionClose", nil)
			return
		case err := <-notifyCloseConnection:
			c.amqpConnectionLock.Lock()
			c.connected = make(chan struct{})
			c.amqpConnectionLock.Unlock()

			if err == nil {
				// graceful close, without an error from the broker
				if c.isClosed() {
					return
				}
			}

			c.logger.Error("Received close notification from AMQP, reconnecting", err, nil)
			c.reconnect()
		}
	}
}

func (c *ConnectionWrapper) reconnect() {
	reconnectConfig := c.config.Reconnect
	if reconnectConfig == nil {
		reconnectConfig = DefaultReconnectConfig()
	}

	if err := backoff.Retry(func() error {
		if c.isClosed() {
			return backoff.Permanent(errors.New("closing AMQP connection"))
		}

		err := c.connect()
		if err == nil {
			return nil
		}

		c.logger.Error("Cannot reconnect to AMQP, retrying", err, nil)

		return err
	}, reconnectConfig.backoffConfig()); err != nil {
		// should only exit, if closing the connection
		c.logger.Error("AMQP reconnect failed", err, nil)
	}
}

var _ Connection = (*ConnectionWrapper)(nil)
