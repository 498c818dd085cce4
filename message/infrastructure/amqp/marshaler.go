package amqp

import (
	"fmt"

	"github.com/streadway/amqp"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/message"
)

const MessageUUIDHeaderKey = "_watermill_message_uuid"

// ContentTypeMetadataKey is the metadata key mapped to the AMQP content-type property.
const ContentTypeMetadataKey = "content_type"

// Marshaler translates between AMQP deliveries/publishings and messages.
type Marshaler interface {
	Marshal(msg *message.Message) (amqp.Publishing, error)
	Unmarshal(amqpMsg amqp.Delivery) (*message.Message, error)
}

// DefaultMarshaler keeps the message UUID in the MessageUUIDHeaderKey header and
// the metadata in the remaining headers.
//
// Deliveries published by other clients are accepted as well: without the UUID header
// the AMQP message-id is used, and without the message-id a new UUID is generated.
// Non-string header values are stored in metadata formatted with %v.
type DefaultMarshaler struct {
	// PostprocessPublishing can be used to make some extra processing with amqp.Publishing,
	// for example add CorrelationId and ContentType.
	PostprocessPublishing func(amqp.Publishing) amqp.Publishing

	// When true, DeliveryMode will be not set to Persistent.
	NotPersistentDeliveryMode bool
}

func (d DefaultMarshaler) Marshal(msg *message.Message) (amqp.Publishing, error) {
	headers := make(amqp.Table, len(msg.Metadata)+1) // metadata + plus uuid

	for key, value := range msg.Metadata {
		headers[key] = value
	}
	headers[MessageUUIDHeaderKey] = msg.UUID

	publishing := amqp.Publishing{
		Body:        msg.Payload,
		Headers:     headers,
		ContentType: msg.Metadata.Get(ContentTypeMetadataKey),
	}
	if !d.NotPersistentDeliveryMode {
		publishing.DeliveryMode = amqp.Persistent
	}

	if d.PostprocessPublishing != nil {
		publishing = d.PostprocessPublishing(publishing)
	}

	return publishing, nil
}

func (DefaultMarshaler) Unmarshal(amqpMsg amqp.Delivery) (*message.Message, error) {
	msgUUID := amqpMsg.MessageId
	if headerUUID, ok := amqpMsg.Headers[MessageUUIDHeaderKey]; ok {
		msgUUID = fmt.Sprintf("%v", headerUUID)
	}
	if msgUUID == "" {
		msgUUID = watermill.NewUUID()
	}

	msg := message.NewMessage(msgUUID, amqpMsg.Body)

	for key, value := range amqpMsg.Headers {
		if key == MessageUUIDHeaderKey {
			continue
		}

		if str, ok := value.(string); ok {
			msg.Metadata.Set(key, str)
			continue
		}
		msg.Metadata.Set(key, fmt.Sprintf("%v", value))
	}

	if amqpMsg.ContentType != "" && msg.Metadata.Get(ContentTypeMetadataKey) == "" {
		msg.Metadata.Set(ContentTypeMetadataKey, amqpMsg.ContentType)
	}

	return msg, nil
}
