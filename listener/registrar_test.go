package listener_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/converter"
	"github.com/ThreeDotsLabs/watermill-autoconfig/internal/amqptest"
	"github.com/ThreeDotsLabs/watermill-autoconfig/listener"
	"github.com/ThreeDotsLabs/watermill-autoconfig/message"
	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
)

const defaultTimeout = time.Second * 5

type orderCreated struct {
	ID    string `json:"id"`
	Total int    `json:"total"`
}

type receivedOrder struct {
	order     orderCreated
	queueName string
}

type ordersListener struct {
	received chan receivedOrder
	err      error
	panics   bool
}

func newOrdersListener() *ordersListener {
	return &ordersListener{received: make(chan receivedOrder, 16)}
}

func (l *ordersListener) OnCreated(ctx context.Context, order orderCreated) error {
	if l.panics {
		panic("listener panic")
	}

	l.received <- receivedOrder{order: order, queueName: message.QueueNameFromCtx(ctx)}
	return l.err
}

type observedDelivery struct {
	queue    string
	listener string
	msg      *message.Message
	err      error
}

type deliveryRecorder struct {
	lock       sync.Mutex
	deliveries []observedDelivery
}

func (r *deliveryRecorder) observe(queue, listenerName string, msg *message.Message, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.deliveries = append(r.deliveries, observedDelivery{queue, listenerName, msg, err})
}

func (r *deliveryRecorder) all() []observedDelivery {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]observedDelivery(nil), r.deliveries...)
}

func newJSONMessage(t *testing.T, v interface{}) *message.Message {
	t.Helper()

	msg, err := converter.JSONConverter{}.ToMessage(v)
	require.NoError(t, err)

	return msg
}

func newRegistrar(t *testing.T, config listener.RegistrarConfig) *listener.Registrar {
	t.Helper()

	r := listener.NewRegistrar(config, watermill.NewCaptureLogger())
	t.Cleanup(func() {
		assert.NoError(t, r.Close())
	})

	return r
}

func TestRegistrar_InitQueueListener_acks_on_success(t *testing.T) {
	broker := amqptest.NewBroker()
	recorder := &deliveryRecorder{}
	r := newRegistrar(t, listener.RegistrarConfig{OnDelivery: recorder.observe})

	l := newOrdersListener()
	err := r.InitQueueListener(l, "OnCreated", converter.JSONConverter{}, broker, []string{"orders.created", "orders.updated"})
	require.NoError(t, err)

	broker.WaitForConsumers(t, "orders.created", 1, defaultTimeout)
	broker.WaitForConsumers(t, "orders.updated", 1, defaultTimeout)

	msg := newJSONMessage(t, orderCreated{ID: "1", Total: 100})
	tag := broker.Publish(t, "orders.updated", msg)

	outcome := broker.WaitForOutcome(t, tag, defaultTimeout)
	assert.Equal(t, amqptest.Outcome{Acked: true}, outcome)

	select {
	case received := <-l.received:
		assert.Equal(t, orderCreated{ID: "1", Total: 100}, received.order)
		assert.Equal(t, "orders.updated", received.queueName)
	case <-time.After(defaultTimeout):
		t.Fatal("order not received")
	}

	require.Eventually(t, func() bool { return len(recorder.all()) == 1 }, defaultTimeout, time.Millisecond*10)
	observed := recorder.all()[0]
	assert.Equal(t, "orders.updated", observed.queue)
	assert.Equal(t, "*listener_test.ordersListener.OnCreated", observed.listener)
	assert.Equal(t, msg.UUID, observed.msg.UUID)
	assert.NoError(t, observed.err)
}

func TestRegistrar_InitQueueListener_nacks_with_requeue_on_error(t *testing.T) {
	broker := amqptest.NewBroker()
	r := newRegistrar(t, listener.RegistrarConfig{})

	l := newOrdersListener()
	l.err = errors.New("cannot process order")

	require.NoError(t, r.InitQueueListener(l, "OnCreated", converter.JSONConverter{}, broker, []string{"orders.created"}))

	tag := broker.Publish(t, "orders.created", newJSONMessage(t, orderCreated{ID: "2"}))

	outcome := broker.WaitForOutcome(t, tag, defaultTimeout)
	assert.Equal(t, amqptest.Outcome{Nacked: true, Requeue: true}, outcome)
}

func TestRegistrar_InitQueueListener_no_requeue_on_nack(t *testing.T) {
	broker := amqptest.NewBroker()
	r := newRegistrar(t, listener.RegistrarConfig{
		AMQP: amqpinfra.Config{
			Marshaler: amqpinfra.DefaultMarshaler{},
			Consume:   amqpinfra.ConsumeConfig{NoRequeueOnNack: true},
		},
	})

	l := newOrdersListener()
	l.err = errors.New("cannot process order")

	require.NoError(t, r.InitQueueListener(l, "OnCreated", converter.JSONConverter{}, broker, []string{"orders.created"}))

	tag := broker.Publish(t, "orders.created", newJSONMessage(t, orderCreated{ID: "3"}))

	outcome := broker.WaitForOutcome(t, tag, defaultTimeout)
	assert.Equal(t, amqptest.Outcome{Nacked: true, Requeue: false}, outcome)
}

func TestRegistrar_InitQueueListener_recovers_panic(t *testing.T) {
	broker := amqptest.NewBroker()
	recorder := &deliveryRecorder{}
	r := newRegistrar(t, listener.RegistrarConfig{OnDelivery: recorder.observe})

	l := newOrdersListener()
	l.panics = true

	require.NoError(t, r.InitQueueListener(l, "OnCreated", converter.JSONConverter{}, broker, []string{"orders.created"}))

	tag := broker.Publish(t, "orders.created", newJSONMessage(t, orderCreated{ID: "4"}))

	outcome := broker.WaitForOutcome(t, tag, defaultTimeout)
	assert.Equal(t, amqptest.Outcome{Nacked: true, Requeue: true}, outcome)

	require.Eventually(t, func() bool { return len(recorder.all()) == 1 }, defaultTimeout, time.Millisecond*10)

	var panicErr listener.RecoveredPanicError
	assert.True(t, errors.As(recorder.all()[0].err, &panicErr))
}

func TestRegistrar_InitQueueListener_conversion_error_is_not_requeued(t *testing.T) {
	broker := amqptest.NewBroker()
	r := newRegistrar(t, listener.RegistrarConfig{})

	l := newOrdersListener()
	require.NoError(t, r.InitQueueListener(l, "OnCreated", converter.JSONConverter{}, broker, []string{"orders.created"}))

	tag := broker.Publish(t, "orders.created", message.NewMessage(watermill.NewUUID(), []byte("not json")))

	outcome := broker.WaitForOutcome(t, tag, defaultTimeout)
	assert.Equal(t, amqptest.Outcome{Nacked: true, Requeue: false}, outcome)
	assert.Empty(t, l.received)
}

func TestRegistrar_InitQueueListener_func_handler(t *testing.T) {
	broker := amqptest.NewBroker()
	r := newRegistrar(t, listener.RegistrarConfig{})

	received := make(chan string, 1)
	handler := func(body string) error {
		received <- body
		return nil
	}

	require.NoError(t, r.InitQueueListener(handler, "", converter.SimpleConverter{}, broker, []string{"notifications"}))

	tag := broker.Publish(t, "notifications", message.NewMessage(watermill.NewUUID(), []byte("hello")))
	assert.Equal(t, amqptest.Outcome{Acked: true}, broker.WaitForOutcome(t, tag, defaultTimeout))

	select {
	case body := <-received:
		assert.Equal(t, "hello", body)
	case <-time.After(defaultTimeout):
		t.Fatal("message not received")
	}
}

func TestRegistrar_InitQueueListener_fails_fast(t *testing.T) {
	testCases := []struct {
		Name        string
		Method      string
		QueueNames  []string
		ExpectedErr func(t *testing.T, err error)
	}{
		{
			Name:       "no_queue_names",
			Method:     "OnCreated",
			QueueNames: nil,
			ExpectedErr: func(t *testing.T, err error) {
				assert.Equal(t, listener.ErrNoQueueNames, err)
			},
		},
		{
			Name:       "unknown_method",
			Method:     "OnDeleted",
			QueueNames: []string{"orders.deleted"},
			ExpectedErr: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, listener.ErrMethodNotFound))
			},
		},
		{
			Name:       "default_method_missing",
			Method:     "",
			QueueNames: []string{"orders.created"},
			ExpectedErr: func(t *testing.T, err error) {
				var notFound *listener.MethodNotFoundError
				require.True(t, errors.As(err, &notFound))
				assert.Equal(t, listener.DefaultMethodName, notFound.Method)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			broker := amqptest.NewBroker()
			r := newRegistrar(t, listener.RegistrarConfig{})

			err := r.InitQueueListener(newOrdersListener(), tc.Method, converter.JSONConverter{}, broker, tc.QueueNames)
			require.Error(t, err)
			tc.ExpectedErr(t, err)

			assert.Equal(t, 0, broker.OpenedChannels())
			assert.Empty(t, r.Containers())
		})
	}
}

func TestRegistrar_InitQueueListener_invalid_signature(t *testing.T) {
	broker := amqptest.NewBroker()
	r := newRegistrar(t, listener.RegistrarConfig{})

	err := r.InitQueueListener(func(a, b, c string) {}, "", converter.SimpleConverter{}, broker, []string{"q"})

	var invalid *listener.InvalidSignatureError
	assert.True(t, errors.As(err, &invalid))
	assert.Equal(t, 0, broker.OpenedChannels())
}

func TestRegistrar_consumers_per_queue(t *testing.T) {
	broker := amqptest.NewBroker()
	r := newRegistrar(t, listener.RegistrarConfig{
		AMQP: amqpinfra.Config{
			Marshaler: amqpinfra.DefaultMarshaler{},
			Consume:   amqpinfra.ConsumeConfig{ConsumerTagPrefix: "orders"},
		},
		ConsumersPerQueue: 3,
	})

	require.NoError(t, r.InitQueueListener(newOrdersListener(), "OnCreated", converter.JSONConverter{}, broker, []string{"a", "b"}))

	broker.WaitForConsumers(t, "a", 3, defaultTimeout)
	broker.WaitForConsumers(t, "b", 3, defaultTimeout)

	for _, tag := range broker.ActiveConsumers("a") {
		assert.Contains(t, tag, "orders-")
	}
}

func TestRegistrar_reconnects_after_channel_failure(t *testing.T) {
	broker := amqptest.NewBroker()
	r := newRegistrar(t, listener.RegistrarConfig{ReconnectDelay: time.Millisecond * 10})

	l := newOrdersListener()
	require.NoError(t, r.InitQueueListener(l, "OnCreated", converter.JSONConverter{}, broker, []string{"orders.created"}))

	broker.WaitForConsumers(t, "orders.created", 1, defaultTimeout)
	oldConsumers := broker.ActiveConsumers("orders.created")

	broker.CloseChannels()

	broker.WaitForConsumers(t, "orders.created", 1, defaultTimeout)
	assert.NotEqual(t, oldConsumers, broker.ActiveConsumers("orders.created"))
	assert.Equal(t, 2, broker.OpenedChannels())

	tag := broker.Publish(t, "orders.created", newJSONMessage(t, orderCreated{ID: "5"}))
	assert.Equal(t, amqptest.Outcome{Acked: true}, broker.WaitForOutcome(t, tag, defaultTimeout))
}

func TestRegistrar_Close(t *testing.T) {
	broker := amqptest.NewBroker()
	r := listener.NewRegistrar(listener.RegistrarConfig{}, nil)

	require.NoError(t, r.InitQueueListener(newOrdersListener(), "OnCreated", converter.JSONConverter{}, broker, []string{"orders.created"}))
	broker.WaitForConsumers(t, "orders.created", 1, defaultTimeout)

	require.NoError(t, r.Close())
	assert.Empty(t, broker.ActiveConsumers("orders.created"))

	// idempotent
	require.NoError(t, r.Close())

	err := r.InitQueueListener(newOrdersListener(), "OnCreated", converter.JSONConverter{}, broker, []string{"orders.created"})
	assert.Equal(t, listener.ErrRegistrarClosed, err)
}

func TestRegistrar_Containers(t *testing.T) {
	broker := amqptest.NewBroker()
	r := newRegistrar(t, listener.RegistrarConfig{})

	require.NoError(t, r.InitQueueListener(newOrdersListener(), "OnCreated", converter.JSONConverter{}, broker, []string{"orders.created", ""}))

	assert.Equal(t, []listener.ContainerInfo{
		{
			Name:       "*listener_test.ordersListener.OnCreated",
			Method:     "OnCreated",
			Converter:  "json",
			QueueNames: []string{"orders.created", ""},
		},
	}, r.Containers())
}

type blockingListener struct {
	started chan struct{}
	release chan struct{}
}

func (l blockingListener) HandleMessage(body string) {
	l.started <- struct{}{}
	<-l.release
}

func TestRegistrar_Close_timeout(t *testing.T) {
	broker := amqptest.NewBroker()
	r := listener.NewRegistrar(listener.RegistrarConfig{CloseTimeout: time.Millisecond * 50}, nil)

	l := blockingListener{started: make(chan struct{}, 1), release: make(chan struct{})}
	require.NoError(t, r.InitQueueListener(l, "", converter.SimpleConverter{}, broker, []string{"slow"}))

	tag := broker.Publish(t, "slow", message.NewMessage(watermill.NewUUID(), []byte("x")))

	select {
	case <-l.started:
	case <-time.After(defaultTimeout):
		t.Fatal("listener not called")
	}

	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not stop within 50ms")

	close(l.release)
	assert.Equal(t, amqptest.Outcome{Acked: true}, broker.WaitForOutcome(t, tag, defaultTimeout))
}
