package converter

import (
	"reflect"

	"github.com/ThreeDotsLabs/watermill-autoconfig/message"
)

const SimpleTag = "simple"

// SimpleConverter passes the payload through without decoding.
// Supported types are []byte, string, message.Payload, *message.Message and interface{}.
// Text payloads (content type text/*) become a string when the target is interface{}.
type SimpleConverter struct {
	NewUUID func() string
}

func (SimpleConverter) Name() string {
	return SimpleTag
}

func (c SimpleConverter) FromMessage(msg *message.Message, targetType reflect.Type) (reflect.Value, error) {
	if v, ok := passThrough(msg, targetType); ok {
		return v, nil
	}

	switch {
	case targetType == payloadType:
		return reflect.ValueOf(msg.Payload), nil
	case targetType == bytesType:
		return reflect.ValueOf([]byte(msg.Payload)), nil
	case targetType == stringType:
		return reflect.ValueOf(string(msg.Payload)), nil
	case targetType.Kind() == reflect.Interface && targetType.NumMethod() == 0:
		var v interface{} = []byte(msg.Payload)
		if isText(msg.Metadata.Get(ContentTypeMetadataKey)) {
			v = string(msg.Payload)
		}
		return reflect.ValueOf(&v).Elem(), nil
	}

	return reflect.Value{}, unsupported(c.Name(), targetType)
}

func (c SimpleConverter) ToMessage(v interface{}) (*message.Message, error) {
	switch value := v.(type) {
	case *message.Message:
		return value, nil
	case message.Payload:
		return newMessage(uuidFunc(c.NewUUID), value, "application/octet-stream"), nil
	case []byte:
		return newMessage(uuidFunc(c.NewUUID), value, "application/octet-stream"), nil
	case string:
		return newMessage(uuidFunc(c.NewUUID), []byte(value), "text/plain"), nil
	}

	return nil, unsupported(c.Name(), reflect.TypeOf(v))
}

func isText(contentType string) bool {
	return len(contentType) >= 5 && contentType[:5] == "text/"
}
