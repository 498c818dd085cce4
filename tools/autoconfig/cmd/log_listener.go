package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/message"
)

// LogListenerName is the registry name of the listener available to the run command.
const LogListenerName = "logListener"

// logListener prints every message it receives.
type logListener struct {
	out  io.Writer
	lock sync.Mutex

	logger watermill.LoggerAdapter
}

func (l *logListener) HandleMessage(ctx context.Context, msg *message.Message) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.logger.Debug("Message received", watermill.LogFields{
		"message_uuid": msg.UUID,
		"queue":        message.QueueNameFromCtx(ctx),
	})

	_, err := fmt.Fprintf(l.out, "%s\t%s\t%s\n", message.QueueNameFromCtx(ctx), msg.UUID, msg.Payload)
	return err
}
