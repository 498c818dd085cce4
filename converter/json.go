package converter

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"

	"github.com/ThreeDotsLabs/watermill-autoconfig/message"
)

const JSONTag = "json"

// JSONConverter decodes JSON payloads into the listener argument type.
type JSONConverter struct {
	NewUUID func() string

	// DisallowUnknownFields makes decoding fail on fields not present in the target type.
	DisallowUnknownFields bool
}

func (JSONConverter) Name() string {
	return JSONTag
}

func (c JSONConverter) FromMessage(msg *message.Message, targetType reflect.Type) (reflect.Value, error) {
	if v, ok := passThrough(msg, targetType); ok {
		return v, nil
	}

	target := reflect.New(targetType)
	if err := c.unmarshal(msg.Payload, target.Interface()); err != nil {
		return reflect.Value{}, errors.Wrapf(err, "cannot unmarshal message %s to %s", msg.UUID, targetType)
	}

	return target.Elem(), nil
}

func (c JSONConverter) unmarshal(payload []byte, v interface{}) error {
	if !c.DisallowUnknownFields {
		return json.Unmarshal(payload, v)
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func (c JSONConverter) ToMessage(v interface{}) (*message.Message, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal to JSON")
	}

	return newMessage(uuidFunc(c.NewUUID), b, "application/json"), nil
}
