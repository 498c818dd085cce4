package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/message"
)

func TestLogListener_HandleMessage(t *testing.T) {
	out := &bytes.Buffer{}
	l := &logListener{out: out, logger: watermill.NopLogger{}}

	ctx := message.WithDeliveryInfo(context.Background(), "orders.created", LogListenerName, "tag-1")
	require.NoError(t, l.HandleMessage(ctx, message.NewMessage("uuid-1", []byte(`{"id":1}`))))

	assert.Equal(t, "orders.created\tuuid-1\t{\"id\":1}\n", out.String())
}
