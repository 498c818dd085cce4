package autoconfig_test

import (
	"github.com/stretchr/testify/mock"

	"github.com/ThreeDotsLabs/watermill-autoconfig/converter"
	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
)

type registryMock struct {
	mock.Mock
}

func (m *registryMock) Lookup(name string) (interface{}, error) {
	args := m.Called(name)
	return args.Get(0), args.Error(1)
}

type convertersMock struct {
	mock.Mock
}

func (m *convertersMock) Resolve(typeTag string) (converter.MessageConverter, error) {
	args := m.Called(typeTag)

	conv, _ := args.Get(0).(converter.MessageConverter)
	return conv, args.Error(1)
}

type listenersMock struct {
	mock.Mock
}

func (m *listenersMock) InitQueueListener(
	handler interface{},
	methodName string,
	conv converter.MessageConverter,
	conn amqpinfra.Connection,
	queueNames []string,
) error {
	return m.Called(handler, methodName, conv, conn, queueNames).Error(0)
}

type adminMock struct {
	mock.Mock
}

func (m *adminMock) Declare(topology amqpinfra.Topology) error {
	return m.Called(topology).Error(0)
}
