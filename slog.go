package watermill

import (
	"context"
	"log/slog"
)

// LevelTrace is one step below [slog.LevelDebug], as slog has no trace level.
const LevelTrace = slog.LevelDebug - 4

// SlogLoggerAdapter wraps [slog.Logger].
type SlogLoggerAdapter struct {
	slog *slog.Logger

	levelMapping map[slog.Level]slog.Level
}

// NewSlogLogger creates an adapter to the standard library's structured logging package.
// A nil logger is substituted for the result of [slog.Default].
func NewSlogLogger(logger *slog.Logger) LoggerAdapter {
	return NewSlogLoggerWithLevelMapping(logger, nil)
}

// NewSlogLoggerWithLevelMapping works like NewSlogLogger, but remaps levels before logging.
// For example, mapping [slog.LevelInfo] to [slog.LevelDebug] hides activation status records
// in production logs.
func NewSlogLoggerWithLevelMapping(logger *slog.Logger, levelMapping map[slog.Level]slog.Level) LoggerAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLoggerAdapter{
		slog:         logger,
		levelMapping: levelMapping,
	}
}

func (s *SlogLoggerAdapter) Error(msg string, err error, fields LogFields) {
	s.log(slog.LevelError, msg, append(slogArgs(fields), "error", err)...)
}

func (s *SlogLoggerAdapter) Info(msg string, fields LogFields) {
	s.log(slog.LevelInfo, msg, slogArgs(fields)...)
}

func (s *SlogLoggerAdapter) Debug(msg string, fields LogFields) {
	s.log(slog.LevelDebug, msg, slogArgs(fields)...)
}

func (s *SlogLoggerAdapter) Trace(msg string, fields LogFields) {
	s.log(LevelTrace, msg, slogArgs(fields)...)
}

// With returns a [SlogLoggerAdapter] with fields injected into all consequent logging messages.
func (s *SlogLoggerAdapter) With(fields LogFields) LoggerAdapter {
	return &SlogLoggerAdapter{
		slog:         s.slog.With(slogArgs(fields)...),
		levelMapping: s.levelMapping,
	}
}

func (s *SlogLoggerAdapter) log(level slog.Level, msg string, args ...any) {
	if mapped, ok := s.levelMapping[level]; ok {
		level = mapped
	}

	// slog only reads values from the context, it never waits on it
	s.slog.Log(context.Background(), level, msg, args...)
}

func slogArgs(fields LogFields) []any {
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return args
}
