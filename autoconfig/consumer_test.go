package autoconfig_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/converter"
	"github.com/ThreeDotsLabs/watermill-autoconfig/internal/amqptest"
	"github.com/ThreeDotsLabs/watermill-autoconfig/registry"
)

type ordersHandler struct{}

func (ordersHandler) OnMsg(string) {}

type consumerFixture struct {
	registry   *registryMock
	converters *convertersMock
	listeners  *listenersMock
	connection *amqptest.Broker
	logger     *watermill.CaptureLoggerAdapter

	activator *autoconfig.ConsumerActivator
}

func newConsumerFixture(t *testing.T) *consumerFixture {
	t.Helper()

	f := &consumerFixture{
		registry:   &registryMock{},
		converters: &convertersMock{},
		listeners:  &listenersMock{},
		connection: amqptest.NewBroker(),
		logger:     watermill.NewCaptureLogger(),
	}

	activator, err := autoconfig.NewConsumerActivator(autoconfig.ConsumerActivatorConfig{
		Registry:   f.registry,
		Converters: f.converters,
		Connection: f.connection,
		Listeners:  f.listeners,
	}, f.logger)
	require.NoError(t, err)
	f.activator = activator

	return f
}

func (f *consumerFixture) assertExpectations(t *testing.T) {
	f.registry.AssertExpectations(t)
	f.converters.AssertExpectations(t)
	f.listeners.AssertExpectations(t)
}

func (f *consumerFixture) activatedRecords() []watermill.CapturedMessage {
	return f.logger.MessagesWithText(watermill.InfoLogLevel, "AMQP consumer activated")
}

func TestConsumerActivator_disabled(t *testing.T) {
	f := newConsumerFixture(t)

	err := f.activator.Activate(autoconfig.ConsumerActivationSet{
		Enabled:     false,
		Description: "orders listeners",
		Bindings: []autoconfig.ListenerBinding{
			{TargetName: "h1", MethodName: "OnMsg", ConverterType: "default", QueueNamesRaw: "q1"},
		},
	})
	require.NoError(t, err)

	f.registry.AssertNotCalled(t, "Lookup", mock.Anything)
	f.converters.AssertNotCalled(t, "Resolve", mock.Anything)
	f.listeners.AssertNotCalled(t, "InitQueueListener", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.logger.Captured())
	assert.False(t, f.activator.Activated())
}

func TestConsumerActivator_Activate(t *testing.T) {
	f := newConsumerFixture(t)

	handler := ordersHandler{}
	conv := converter.SimpleConverter{}

	f.registry.On("Lookup", "h1").Return(handler, nil).Once()
	f.converters.On("Resolve", "default").Return(conv, nil).Once()
	f.listeners.On("InitQueueListener", handler, "onMsg", conv, f.connection, []string{"q1", "q2"}).Return(nil).Once()

	err := f.activator.Activate(autoconfig.ConsumerActivationSet{
		Enabled:     true,
		Description: "orders listeners",
		Bindings: []autoconfig.ListenerBinding{
			{TargetName: "h1", MethodName: "onMsg", ConverterType: "default", QueueNamesRaw: "q1,q2"},
		},
	})
	require.NoError(t, err)

	f.assertExpectations(t)
	f.listeners.AssertNumberOfCalls(t, "InitQueueListener", 1)

	records := f.activatedRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "orders listeners", records[0].Fields["description"])
	assert.Equal(t, 1, records[0].Fields["registered_bindings"])
	assert.Equal(t, 0, records[0].Fields["skipped_bindings"])
	assert.True(t, f.activator.Activated())
}

func TestConsumerActivator_blank_queue_names_are_skipped(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		t.Run(raw, func(t *testing.T) {
			f := newConsumerFixture(t)

			f.registry.On("Lookup", "h1").Return(ordersHandler{}, nil).Once()

			err := f.activator.Activate(autoconfig.ConsumerActivationSet{
				Enabled:     true,
				Description: "partially configured",
				Bindings: []autoconfig.ListenerBinding{
					{TargetName: "h1", MethodName: "OnMsg", ConverterType: "json", QueueNamesRaw: raw},
				},
			})
			require.NoError(t, err)

			f.assertExpectations(t)
			f.converters.AssertNotCalled(t, "Resolve", mock.Anything)
			f.listeners.AssertNotCalled(t, "InitQueueListener", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

			records := f.activatedRecords()
			require.Len(t, records, 1)
			assert.Equal(t, "partially configured", records[0].Fields["description"])
			assert.Equal(t, 1, records[0].Fields["skipped_bindings"])
		})
	}
}

func TestConsumerActivator_blank_queue_names_still_lookup_handler(t *testing.T) {
	f := newConsumerFixture(t)

	lookupErr := &registry.HandlerNotFoundError{Name: "missing"}
	f.registry.On("Lookup", "missing").Return(nil, lookupErr).Once()

	err := f.activator.Activate(autoconfig.ConsumerActivationSet{
		Enabled: true,
		Bindings: []autoconfig.ListenerBinding{
			{TargetName: "missing", QueueNamesRaw: ""},
		},
	})

	assert.Equal(t, lookupErr, err)
	f.converters.AssertNotCalled(t, "Resolve", mock.Anything)
}

func TestConsumerActivator_split_keeps_empty_segments(t *testing.T) {
	f := newConsumerFixture(t)

	conv := converter.SimpleConverter{}
	f.registry.On("Lookup", "h1").Return(ordersHandler{}, nil)
	f.converters.On("Resolve", "simple").Return(conv, nil)
	f.listeners.On("InitQueueListener", ordersHandler{}, "OnMsg", conv, f.connection, []string{"a", "", "b"}).Return(nil).Once()

	err := f.activator.Activate(autoconfig.ConsumerActivationSet{
		Enabled: true,
		Bindings: []autoconfig.ListenerBinding{
			{TargetName: "h1", MethodName: "OnMsg", ConverterType: "simple", QueueNamesRaw: "a,,b"},
		},
	})
	require.NoError(t, err)

	f.assertExpectations(t)
}

func TestConsumerActivator_unknown_handler_aborts(t *testing.T) {
	f := newConsumerFixture(t)

	conv := converter.JSONConverter{}
	lookupErr := &registry.HandlerNotFoundError{Name: "unknown"}

	f.registry.On("Lookup", "h1").Return(ordersHandler{}, nil).Once()
	f.registry.On("Lookup", "unknown").Return(nil, lookupErr).Once()
	f.converters.On("Resolve", "json").Return(conv, nil).Once()
	f.listeners.On("InitQueueListener", ordersHandler{}, "OnMsg", conv, f.connection, []string{"q1"}).Return(nil).Once()

	err := f.activator.Activate(autoconfig.ConsumerActivationSet{
		Enabled:     true,
		Description: "orders listeners",
		Bindings: []autoconfig.ListenerBinding{
			{TargetName: "h1", MethodName: "OnMsg", ConverterType: "json", QueueNamesRaw: "q1"},
			{TargetName: "unknown", MethodName: "OnMsg", ConverterType: "json", QueueNamesRaw: "q2"},
			{TargetName: "h3", MethodName: "OnMsg", ConverterType: "json", QueueNamesRaw: "q3"},
		},
	})

	// returned unmodified
	assert.Equal(t, lookupErr, err)
	assert.True(t, errors.Is(err, registry.ErrHandlerNotFound))

	f.assertExpectations(t)
	f.registry.AssertNotCalled(t, "Lookup", "h3")
	f.listeners.AssertNumberOfCalls(t, "InitQueueListener", 1)
	assert.Empty(t, f.activatedRecords())
}

func TestConsumerActivator_unknown_converter_aborts(t *testing.T) {
	f := newConsumerFixture(t)

	resolveErr := &converter.UnknownTypeError{Tag: "xml"}

	f.registry.On("Lookup", "h1").Return(ordersHandler{}, nil).Once()
	f.converters.On("Resolve", "xml").Return(nil, resolveErr).Once()

	err := f.activator.Activate(autoconfig.ConsumerActivationSet{
		Enabled: true,
		Bindings: []autoconfig.ListenerBinding{
			{TargetName: "h1", MethodName: "OnMsg", ConverterType: "xml", QueueNamesRaw: "q1"},
			{TargetName: "h2", MethodName: "OnMsg", ConverterType: "json", QueueNamesRaw: "q2"},
		},
	})

	assert.Equal(t, resolveErr, err)
	f.assertExpectations(t)
	f.listeners.AssertNotCalled(t, "InitQueueListener", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.activatedRecords())
}

func TestConsumerActivator_registration_error_is_returned_unmodified(t *testing.T) {
	f := newConsumerFixture(t)

	conv := converter.JSONConverter{}
	registrationErr := errors.New("cannot register listener")

	f.registry.On("Lookup", "h1").Return(ordersHandler{}, nil).Once()
	f.converters.On("Resolve", "json").Return(conv, nil).Once()
	f.listeners.On("InitQueueListener", ordersHandler{}, "OnMsg", conv, f.connection, []string{"q1"}).Return(registrationErr).Once()

	err := f.activator.Activate(autoconfig.ConsumerActivationSet{
		Enabled: true,
		Bindings: []autoconfig.ListenerBinding{
			{TargetName: "h1", MethodName: "OnMsg", ConverterType: "json", QueueNamesRaw: "q1"},
		},
	})

	assert.Equal(t, registrationErr, err)
	f.assertExpectations(t)
}

func TestConsumerActivator_declared_order(t *testing.T) {
	f := newConsumerFixture(t)

	conv := converter.SimpleConverter{}
	var order []string

	for _, name := range []string{"h1", "h2", "h3"} {
		name := name
		f.registry.On("Lookup", name).Return(name, nil).Once()
		f.listeners.On("InitQueueListener", name, "OnMsg", conv, f.connection, mock.Anything).
			Run(func(args mock.Arguments) { order = append(order, args.String(0)) }).
			Return(nil).Once()
	}
	f.converters.On("Resolve", "default").Return(conv, nil)

	err := f.activator.Activate(autoconfig.ConsumerActivationSet{
		Enabled: true,
		Bindings: []autoconfig.ListenerBinding{
			{TargetName: "h1", MethodName: "OnMsg", ConverterType: "default", QueueNamesRaw: "q1"},
			{TargetName: "h2", MethodName: "OnMsg", ConverterType: "default", QueueNamesRaw: "q2"},
			{TargetName: "h3", MethodName: "OnMsg", ConverterType: "default", QueueNamesRaw: "q3"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"h1", "h2", "h3"}, order)
	f.assertExpectations(t)
}

func TestConsumerActivator_second_activation(t *testing.T) {
	f := newConsumerFixture(t)

	descriptor := autoconfig.ConsumerActivationSet{Enabled: true, Description: "no bindings"}

	require.NoError(t, f.activator.Activate(descriptor))
	assert.Equal(t, autoconfig.ErrAlreadyActivated, f.activator.Activate(descriptor))

	assert.Len(t, f.activatedRecords(), 1)
}

func TestConsumerActivator_with_registry_and_factory(t *testing.T) {
	handlers := registry.New()
	handlers.MustRegister("h1", ordersHandler{})

	listeners := &listenersMock{}
	conn := amqptest.NewBroker()

	activator, err := autoconfig.NewConsumerActivator(autoconfig.ConsumerActivatorConfig{
		Registry:   handlers,
		Converters: converter.DefaultFactory(),
		Connection: conn,
		Listeners:  listeners,
	}, nil)
	require.NoError(t, err)

	listeners.On("InitQueueListener", ordersHandler{}, "OnMsg", mock.Anything, conn, []string{"q1", "q2"}).Return(nil).Once()

	err = activator.Activate(autoconfig.ConsumerActivationSet{
		Enabled: true,
		Bindings: []autoconfig.ListenerBinding{
			{TargetName: "h1", MethodName: "OnMsg", ConverterType: "default", QueueNamesRaw: "q1,q2"},
		},
	})
	require.NoError(t, err)
	listeners.AssertExpectations(t)

	conv := listeners.Calls[0].Arguments.Get(2).(converter.MessageConverter)
	assert.Equal(t, converter.SimpleTag, conv.Name())
}

func TestNewConsumerActivator_invalid_config(t *testing.T) {
	_, err := autoconfig.NewConsumerActivator(autoconfig.ConsumerActivatorConfig{}, nil)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "missing ConsumerActivatorConfig.Registry")
	assert.Contains(t, err.Error(), "missing ConsumerActivatorConfig.Listeners")
}
