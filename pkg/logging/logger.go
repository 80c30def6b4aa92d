package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/run-bigpig/clemm/pkg/memory"
)

// Logger is an interface for logging
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
}

// ZeroLogger implements Logger using zerolog
type ZeroLogger struct {
	logger zerolog.Logger
	output io.Writer
	json   bool
	level  zerolog.Level
}

// Option configures a ZeroLogger
type Option func(*ZeroLogger)

// WithLevel sets the minimum level ("debug", "info", "warn", "error")
func WithLevel(level string) Option {
	return func(l *ZeroLogger) {
		l.level = ParseLevel(level)
	}
}

// WithOutput redirects log output
func WithOutput(w io.Writer) Option {
	return func(l *ZeroLogger) {
		l.output = w
	}
}

// WithJSON switches from the console writer to JSON lines
func WithJSON() Option {
	return func(l *ZeroLogger) {
		l.json = true
	}
}

// New creates a new ZeroLogger writing human readable lines to stderr
func New(options ...Option) *ZeroLogger {
	l := &ZeroLogger{
		output: os.Stderr,
		level:  zerolog.InfoLevel,
	}
	for _, option := range options {
		option(l)
	}

	out := l.output
	if !l.json {
		out = zerolog.ConsoleWriter{Out: l.output, TimeFormat: time.RFC3339}
	}
	l.logger = zerolog.New(out).With().Timestamp().Logger().Level(l.level)
	return l
}

// NewNop returns a logger that discards everything
func NewNop() *ZeroLogger {
	return &ZeroLogger{logger: zerolog.Nop(), output: io.Discard, level: zerolog.Disabled}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Info logs an info message
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	write(ctx, l.logger.Info(), msg, fields)
}

// Warn logs a warning message
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	write(ctx, l.logger.Warn(), msg, fields)
}

// Error logs an error message
func (l *ZeroLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	write(ctx, l.logger.Error(), msg, fields)
}

// Debug logs a debug message
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	write(ctx, l.logger.Debug(), msg, fields)
}

func write(ctx context.Context, event *zerolog.Event, msg string, fields map[string]interface{}) {
	if event == nil {
		return
	}

	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			event = event.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		if conversationID, ok := memory.GetConversationID(ctx); ok {
			event = event.Str("conversation_id", conversationID)
		}
	}

	for k, v := range fields {
		event = event.Interface(k, v)
	}

	event.Msg(msg)
}
