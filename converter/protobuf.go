package converter

import (
	"reflect"

	gogoproto "github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/message"
)

const (
	ProtobufTag     = "protobuf"
	GogoProtobufTag = "gogo_protobuf"
)

const protobufContentType = "application/x-protobuf"

var (
	protoMessageType     = reflect.TypeOf((*proto.Message)(nil)).Elem()
	gogoProtoMessageType = reflect.TypeOf((*gogoproto.Message)(nil)).Elem()
)

// NoProtoMessageError is returned when the given value does not implement proto.Message.
type NoProtoMessageError struct {
	Type reflect.Type
}

func (e NoProtoMessageError) Error() string {
	if e.Type == nil || e.Type.Kind() != reflect.Ptr {
		return "type is not proto.Message, listener argument must be a pointer to the generated struct"
	}
	return e.Type.String() + " is not proto.Message"
}

// ProtoConverter decodes payloads with google.golang.org/protobuf.
type ProtoConverter struct {
	NewUUID func() string
}

func (ProtoConverter) Name() string {
	return ProtobufTag
}

func (c ProtoConverter) FromMessage(msg *message.Message, targetType reflect.Type) (reflect.Value, error) {
	if v, ok := passThrough(msg, targetType); ok {
		return v, nil
	}
	if targetType.Kind() != reflect.Ptr || !targetType.Implements(protoMessageType) {
		return reflect.Value{}, errors.WithStack(NoProtoMessageError{targetType})
	}

	target := reflect.New(targetType.Elem())
	if err := proto.Unmarshal(msg.Payload, target.Interface().(proto.Message)); err != nil {
		return reflect.Value{}, errors.Wrapf(err, "cannot unmarshal message %s to %s", msg.UUID, targetType)
	}

	return target, nil
}

func (c ProtoConverter) ToMessage(v interface{}) (*message.Message, error) {
	protoMsg, ok := v.(proto.Message)
	if !ok {
		return nil, errors.WithStack(NoProtoMessageError{reflect.TypeOf(v)})
	}

	b, err := proto.Marshal(protoMsg)
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal protobuf message")
	}

	return newMessage(uuidFunc(c.NewUUID), b, protobufContentType), nil
}

// GogoProtoConverter decodes payloads with github.com/gogo/protobuf, for listeners
// whose argument types were generated by gogo.
type GogoProtoConverter struct {
	NewUUID func() string
}

func (GogoProtoConverter) Name() string {
	return GogoProtobufTag
}

func (c GogoProtoConverter) FromMessage(msg *message.Message, targetType reflect.Type) (reflect.Value, error) {
	if v, ok := passThrough(msg, targetType); ok {
		return v, nil
	}
	if targetType.Kind() != reflect.Ptr || !targetType.Implements(gogoProtoMessageType) {
		return reflect.Value{}, errors.WithStack(NoProtoMessageError{targetType})
	}

	target := reflect.New(targetType.Elem())
	if err := gogoproto.Unmarshal(msg.Payload, target.Interface().(gogoproto.Message)); err != nil {
		return reflect.Value{}, errors.Wrapf(err, "cannot unmarshal message %s to %s", msg.UUID, targetType)
	}

	return target, nil
}

func (c GogoProtoConverter) ToMessage(v interface{}) (*message.Message, error) {
	protoMsg, ok := v.(gogoproto.Message)
	if !ok {
		return nil, errors.WithStack(NoProtoMessageError{reflect.TypeOf(v)})
	}

	b, err := gogoproto.Marshal(protoMsg)
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal gogo protobuf message")
	}

	return newMessage(uuidFunc(c.NewUUID), b, protobufContentType), nil
}

func uuidFunc(newUUID func() string) func() string {
	if newUUID != nil {
		return newUUID
	}
	return watermill.NewUUID
}
