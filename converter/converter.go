// Package converter contains message converters: policies turning consumed message bodies
// into the argument values of listener methods. Converters are resolved by type tag
// from a Factory.
package converter

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/ThreeDotsLabs/watermill-autoconfig/message"
)

// ContentTypeMetadataKey is the metadata key carrying the content type of the payload.
const ContentTypeMetadataKey = "content_type"

// MessageConverter converts between messages and application values.
type MessageConverter interface {
	// Name returns the canonical type tag of the converter.
	Name() string

	// FromMessage converts msg into a value assignable to targetType.
	FromMessage(msg *message.Message, targetType reflect.Type) (reflect.Value, error)

	// ToMessage converts v into a new message.
	ToMessage(v interface{}) (*message.Message, error)
}

// UnsupportedTypeError is returned when a converter cannot produce or consume a Go type.
type UnsupportedTypeError struct {
	Converter string
	Type      reflect.Type
}

func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("converter %s does not support type %s", e.Converter, e.Type)
}

var (
	messagePtrType = reflect.TypeOf((*message.Message)(nil))
	payloadType    = reflect.TypeOf(message.Payload(nil))
	bytesType      = reflect.TypeOf([]byte(nil))
	stringType     = reflect.TypeOf("")
)

// passThrough handles the target types every converter supports: the message itself.
func passThrough(msg *message.Message, targetType reflect.Type) (reflect.Value, bool) {
	if targetType == messagePtrType {
		return reflect.ValueOf(msg), true
	}
	return reflect.Value{}, false
}

func newMessage(newUUID func() string, payload []byte, contentType string) *message.Message {
	msg := message.NewMessage(newUUID(), payload)
	if contentType != "" {
		msg.Metadata.Set(ContentTypeMetadataKey, contentType)
	}
	return msg
}

func unsupported(converter string, t reflect.Type) error {
	return errors.WithStack(UnsupportedTypeError{Converter: converter, Type: t})
}
