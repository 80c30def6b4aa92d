// Package tracing exports crew turns, model calls and tool invocations
// as OpenTelemetry spans.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/memory"
)

// OTelTracer implements interfaces.Tracer using OpenTelemetry
type OTelTracer struct {
	tracer   trace.Tracer
	enabled  bool
	provider *sdktrace.TracerProvider
}

// OTelConfig contains configuration for OpenTelemetry
type OTelConfig struct {
	// Enabled determines whether OpenTelemetry tracing is enabled
	Enabled bool

	// ServiceName is the name of the service
	ServiceName string

	// CollectorEndpoint is the endpoint of the OpenTelemetry collector
	CollectorEndpoint string
}

// NewOTelTracer creates a new OpenTelemetry tracer
func NewOTelTracer(ctx context.Context, config OTelConfig) (*OTelTracer, error) {
	if !config.Enabled {
		return &OTelTracer{enabled: false}, nil
	}
	if config.ServiceName == "" {
		config.ServiceName = "clemm"
	}

	exporter, err := otlptrace.New(
		ctx,
		otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(config.CollectorEndpoint),
			otlptracegrpc.WithInsecure(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &OTelTracer{
		tracer:   tp.Tracer(config.ServiceName),
		enabled:  true,
		provider: tp,
	}, nil
}

// NewOTelTracerFromProvider builds a tracer on an existing provider
func NewOTelTracerFromProvider(tp trace.TracerProvider, name string) *OTelTracer {
	return &OTelTracer{tracer: tp.Tracer(name), enabled: true}
}

// StartSpan starts a new span. The conversation ID, when present, is
// attached to every span.
func (t *OTelTracer) StartSpan(ctx context.Context, name string) (context.Context, interfaces.Span) {
	if !t.enabled {
		return ctx, otelSpan{span: trace.SpanFromContext(ctx)}
	}

	var attrs []attribute.KeyValue
	if id, ok := memory.GetConversationID(ctx); ok {
		attrs = append(attrs, attribute.String("conversation_id", id))
	}

	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, otelSpan{span: span}
}

// Shutdown flushes pending spans
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End() {
	s.span.End()
}

func (s otelSpan) AddEvent(name string, attributes map[string]interface{}) {
	s.span.AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

func (s otelSpan) SetAttribute(key string, value interface{}) {
	s.span.SetAttributes(toAttribute(key, value))
}

func (s otelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func toAttributes(fields map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, toAttribute(k, v))
	}
	return attrs
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}

// MemoryOTelMiddleware implements middleware for memory operations with OpenTelemetry tracing
type MemoryOTelMiddleware struct {
	memory interfaces.Memory
	tracer interfaces.Tracer
}

// NewMemoryOTelMiddleware creates a new memory middleware with OpenTelemetry tracing
func NewMemoryOTelMiddleware(memory interfaces.Memory, tracer interfaces.Tracer) *MemoryOTelMiddleware {
	return &MemoryOTelMiddleware{
		memory: memory,
		tracer: tracer,
	}
}

// AddMessage adds a message to memory with OpenTelemetry tracing
func (m *MemoryOTelMiddleware) AddMessage(ctx context.Context, message interfaces.Message) error {
	ctx, span := m.tracer.StartSpan(ctx, "memory.add_message")
	defer span.End()
	span.SetAttribute("message.role", message.Role)
	span.SetAttribute("message.length", len(message.Content))

	err := m.memory.AddMessage(ctx, message)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// GetMessages gets messages from memory with OpenTelemetry tracing
func (m *MemoryOTelMiddleware) GetMessages(ctx context.Context, options ...interfaces.GetMessagesOption) ([]interfaces.Message, error) {
	ctx, span := m.tracer.StartSpan(ctx, "memory.get_messages")
	defer span.End()

	messages, err := m.memory.GetMessages(ctx, options...)
	if err != nil {
		span.RecordError(err)
	} else {
		span.SetAttribute("messages.count", len(messages))
	}
	return messages, err
}

// Clear clears memory with OpenTelemetry tracing
func (m *MemoryOTelMiddleware) Clear(ctx context.Context) error {
	ctx, span := m.tracer.StartSpan(ctx, "memory.clear")
	defer span.End()

	err := m.memory.Clear(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return err
}
