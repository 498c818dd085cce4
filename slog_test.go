package watermill

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestSlogHandler(b *bytes.Buffer) slog.Handler {
	return slog.NewTextHandler(b, &slog.HandlerOptions{
		Level: LevelTrace,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "time" && len(groups) == 0 {
				a.Value = slog.StringValue("[omit]")
			}
			return a
		},
	})
}

func TestSlogLoggerAdapter(t *testing.T) {
	b := &bytes.Buffer{}

	logger := NewSlogLogger(slog.New(newTestSlogHandler(b)))

	logger = logger.With(LogFields{"component": "consumer"})
	logger.Trace("binding skipped", LogFields{"target": "h1"})
	logger.Error("activation failed", errors.New("unknown handler"), LogFields{"target": "h2"})
	logger.Info("AMQP consumer activated", LogFields{"description": "orders"})

	assert.Equal(t,
		strings.TrimSpace(`
time=[omit] level=DEBUG-4 msg="binding skipped" component=consumer target=h1
time=[omit] level=ERROR msg="activation failed" component=consumer target=h2 error="unknown handler"
time=[omit] level=INFO msg="AMQP consumer activated" component=consumer description=orders
      `),
		strings.TrimSpace(b.String()),
	)
}

func TestSlogLoggerAdapter_level_mapping(t *testing.T) {
	b := &bytes.Buffer{}

	logger := NewSlogLoggerWithLevelMapping(
		slog.New(newTestSlogHandler(b)),
		map[slog.Level]slog.Level{
			slog.LevelInfo: slog.LevelDebug,
		},
	)

	logger.Info("AMQP provider activated", LogFields{"description": "topology"})
	logger.Debug("declared", nil)

	assert.Equal(t,
		strings.TrimSpace(`
time=[omit] level=DEBUG msg="AMQP provider activated" description=topology
time=[omit] level=DEBUG msg=declared
      `),
		strings.TrimSpace(b.String()),
	)
}

func TestNewSlogLogger_nil_uses_default(t *testing.T) {
	adapter, ok := NewSlogLogger(nil).(*SlogLoggerAdapter)
	if assert.True(t, ok) {
		assert.Equal(t, slog.Default(), adapter.slog)
	}
}
