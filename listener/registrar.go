// Package listener registers listener methods against AMQP queues.
//
// Every registration gets its own Container, which consumes each queue with manual
// acknowledgement, converts deliveries into the method's argument type and acks or nacks
// depending on the method's result.
package listener

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/converter"
	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
)

// ErrNoQueueNames is returned when a listener is registered without queues.
var ErrNoQueueNames = errors.New("at least one queue name is required")

// ErrRegistrarClosed is returned by InitQueueListener after Close.
var ErrRegistrarClosed = errors.New("registrar closed")

type RegistrarConfig struct {
	AMQP amqpinfra.Config

	// ConsumersPerQueue is the number of concurrent consumers started for every queue.
	// Defaults to 1.
	ConsumersPerQueue int

	// ReconnectDelay is the pause before a consumer is restarted after its channel failed.
	ReconnectDelay time.Duration

	// CloseTimeout limits how long Close waits for in-flight deliveries. Defaults to 30s.
	CloseTimeout time.Duration

	// OnDelivery is called after every delivery is acked or nacked.
	OnDelivery DeliveryObserver
}

func (c *RegistrarConfig) setDefaults() {
	if c.AMQP.Marshaler == nil {
		c.AMQP.Marshaler = amqpinfra.DefaultMarshaler{}
	}
	if c.ConsumersPerQueue <= 0 {
		c.ConsumersPerQueue = 1
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Millisecond * 100
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = time.Second * 30
	}
}

// Registrar starts listener containers. It is safe for concurrent use.
type Registrar struct {
	config RegistrarConfig
	logger watermill.LoggerAdapter

	containers     []*Container
	containersLock sync.Mutex
	closed         bool
}

func NewRegistrar(config RegistrarConfig, logger watermill.LoggerAdapter) *Registrar {
	config.setDefaults()

	return &Registrar{
		config: config,
		logger: watermill.LoggerOrNop(logger),
	}
}

// InitQueueListener validates the listener method and starts consuming queueNames.
// Nothing is consumed when an error is returned.
func (r *Registrar) InitQueueListener(
	handler interface{},
	methodName string,
	conv converter.MessageConverter,
	conn amqpinfra.Connection,
	queueNames []string,
) error {
	if len(queueNames) == 0 {
		return ErrNoQueueNames
	}
	if conv == nil {
		return errors.New("message converter cannot be nil")
	}
	if conn == nil {
		return errors.New("connection cannot be nil")
	}

	m, err := resolveMethod(handler, methodName)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s.%s", reflect.TypeOf(handler), m.name)
	if reflect.TypeOf(handler).Kind() == reflect.Func {
		name = m.name
	}

	r.containersLock.Lock()
	defer r.containersLock.Unlock()

	if r.closed {
		return ErrRegistrarClosed
	}

	c := &Container{
		name:              name,
		queueNames:        append([]string(nil), queueNames...),
		method:            m,
		converter:         conv,
		conn:              conn,
		config:            r.config.AMQP,
		consumersPerQueue: r.config.ConsumersPerQueue,
		reconnectDelay:    r.config.ReconnectDelay,
		closeTimeout:      r.config.CloseTimeout,
		observer:          r.config.OnDelivery,
		closing:           make(chan struct{}),
		logger: r.logger.With(watermill.LogFields{
			"listener":  name,
			"converter": conv.Name(),
		}),
	}
	c.start()

	r.containers = append(r.containers, c)

	return nil
}

// Containers returns the info of every started container, sorted by name.
func (r *Registrar) Containers() []ContainerInfo {
	r.containersLock.Lock()
	defer r.containersLock.Unlock()

	infos := make([]ContainerInfo, 0, len(r.containers))
	for _, c := range r.containers {
		infos = append(infos, c.Info())
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return infos
}

// Close stops all containers and waits for in-flight deliveries.
func (r *Registrar) Close() error {
	r.containersLock.Lock()
	if r.closed {
		r.containersLock.Unlock()
		return nil
	}
	r.closed = true
	containers := r.containers
	r.containersLock.Unlock()

	var result error
	for _, c := range containers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "cannot close container %s", c.name))
		}
	}

	return result
}
