package message

import (
	"context"
)

type ctxKey string

const (
	queueNameKey      ctxKey = "queue_name"
	listenerTargetKey ctxKey = "listener_target"
	consumerTagKey    ctxKey = "consumer_tag"
)

func valFromCtx(ctx context.Context, key ctxKey) string {
	val, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return val
}

// QueueNameFromCtx returns the name of the queue the message was consumed from.
func QueueNameFromCtx(ctx context.Context) string {
	return valFromCtx(ctx, queueNameKey)
}

// ListenerTargetFromCtx returns the registry name of the listener handling the message.
func ListenerTargetFromCtx(ctx context.Context) string {
	return valFromCtx(ctx, listenerTargetKey)
}

// ConsumerTagFromCtx returns the AMQP consumer tag which received the message.
func ConsumerTagFromCtx(ctx context.Context) string {
	return valFromCtx(ctx, consumerTagKey)
}

// WithDeliveryInfo returns a context carrying the queue name, listener target and consumer tag.
func WithDeliveryInfo(ctx context.Context, queueName, listenerTarget, consumerTag string) context.Context {
	ctx = context.WithValue(ctx, queueNameKey, queueName)
	ctx = context.WithValue(ctx, listenerTargetKey, listenerTarget)
	return context.WithValue(ctx, consumerTagKey, consumerTag)
}
