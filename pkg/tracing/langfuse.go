package tracing

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/logging"
	"github.com/run-bigpig/clemm/pkg/memory"
)

const levelError = model.ObservationLevel("ERROR")

// langfuseClient is the part of the Langfuse client the tracer uses
type langfuseClient interface {
	Trace(t *model.Trace) (*model.Trace, error)
	Span(s *model.Span, parentID *string) (*model.Span, error)
	Generation(g *model.Generation, parentID *string) (*model.Generation, error)
	Event(e *model.Event, parentID *string) (*model.Event, error)
	Flush(ctx context.Context)
}

// LangfuseConfig contains configuration for Langfuse
type LangfuseConfig struct {
	// Host is the Langfuse host (optional)
	Host string

	// PublicKey is the Langfuse public key
	PublicKey string

	// SecretKey is the Langfuse secret key
	SecretKey string

	// Environment is the environment name (e.g., "production", "staging")
	Environment string
}

// LangfuseTracer implements interfaces.Tracer on Langfuse. The outermost
// span of a call chain opens a trace; nested spans become its observations.
type LangfuseTracer struct {
	client      langfuseClient
	environment string
	logger      logging.Logger
}

// LangfuseOption configures a LangfuseTracer
type LangfuseOption func(*LangfuseTracer)

// WithLangfuseLogger sets where failed uploads are reported
func WithLangfuseLogger(logger logging.Logger) LangfuseOption {
	return func(t *LangfuseTracer) {
		t.logger = logger
	}
}

// NewLangfuseTracer creates a tracer exporting to Langfuse. Keys left
// empty are read by the client from LANGFUSE_PUBLIC_KEY, LANGFUSE_SECRET_KEY
// and LANGFUSE_HOST.
func NewLangfuseTracer(ctx context.Context, config LangfuseConfig, options ...LangfuseOption) (*LangfuseTracer, error) {
	for key, value := range map[string]string{
		"LANGFUSE_HOST":       config.Host,
		"LANGFUSE_PUBLIC_KEY": config.PublicKey,
		"LANGFUSE_SECRET_KEY": config.SecretKey,
	} {
		if value == "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return newLangfuseTracer(langfuse.New(ctx), config.Environment, options...), nil
}

func newLangfuseTracer(client langfuseClient, environment string, options ...LangfuseOption) *LangfuseTracer {
	t := &LangfuseTracer{
		client:      client,
		environment: environment,
		logger:      logging.NewNop(),
	}
	for _, option := range options {
		option(t)
	}
	return t
}

type langfuseSpanKey struct{}

// StartSpan starts a new observation under the span carried by ctx
func (t *LangfuseTracer) StartSpan(ctx context.Context, name string) (context.Context, interfaces.Span) {
	span := &langfuseSpan{
		tracer: t,
		id:     uuid.NewString(),
		name:   name,
		start:  time.Now(),
		attrs:  t.metadata(ctx),
	}
	span.traceID, span.parentID = t.parent(ctx, name)
	return context.WithValue(ctx, langfuseSpanKey{}, span), span
}

// parent returns the trace and parent observation for a new observation,
// opening a trace when ctx carries no span.
func (t *LangfuseTracer) parent(ctx context.Context, name string) (traceID, parentID string) {
	if p, ok := ctx.Value(langfuseSpanKey{}).(*langfuseSpan); ok {
		return p.traceID, p.id
	}

	traceID = uuid.NewString()
	if _, err := t.client.Trace(&model.Trace{
		ID:       traceID,
		Name:     name,
		Metadata: t.metadata(ctx),
	}); err != nil {
		t.logger.Warn(ctx, "failed to create Langfuse trace", map[string]interface{}{"error": err.Error()})
	}
	return traceID, ""
}

func (t *LangfuseTracer) metadata(ctx context.Context) map[string]interface{} {
	m := map[string]interface{}{}
	if t.environment != "" {
		m["environment"] = t.environment
	}
	if id, ok := memory.GetConversationID(ctx); ok {
		m["conversation_id"] = id
	}
	return m
}

// Flush sends everything still queued
func (t *LangfuseTracer) Flush(ctx context.Context) error {
	t.client.Flush(ctx)
	return nil
}

type langfuseSpan struct {
	tracer   *LangfuseTracer
	id       string
	traceID  string
	parentID string
	name     string
	start    time.Time

	mu      sync.Mutex
	attrs   map[string]interface{}
	failure error
	ended   bool
}

func (s *langfuseSpan) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	end := time.Now()
	metadata := make(map[string]interface{}, len(s.attrs))
	for k, v := range s.attrs {
		metadata[k] = v
	}
	span := &model.Span{
		ID:        s.id,
		TraceID:   s.traceID,
		Name:      s.name,
		StartTime: &s.start,
		EndTime:   &end,
		Metadata:  metadata,
	}
	if s.failure != nil {
		span.Level = levelError
		span.StatusMessage = s.failure.Error()
	}
	s.mu.Unlock()

	if _, err := s.tracer.client.Span(span, s.parentRef()); err != nil {
		s.tracer.logger.Warn(context.Background(), "failed to create Langfuse span", map[string]interface{}{
			"span":  s.name,
			"error": err.Error(),
		})
	}
}

func (s *langfuseSpan) parentRef() *string {
	if s.parentID == "" {
		return nil
	}
	parent := s.parentID
	return &parent
}

func (s *langfuseSpan) AddEvent(name string, attributes map[string]interface{}) {
	id := s.id
	event := &model.Event{
		ID:       uuid.NewString(),
		TraceID:  s.traceID,
		Name:     name,
		Metadata: attributes,
	}
	if _, err := s.tracer.client.Event(event, &id); err != nil {
		s.tracer.logger.Warn(context.Background(), "failed to create Langfuse event", map[string]interface{}{
			"event": name,
			"error": err.Error(),
		})
	}
}

func (s *langfuseSpan) SetAttribute(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[key] = value
}

func (s *langfuseSpan) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// LLMLangfuseMiddleware records every completion as a Langfuse generation
type LLMLangfuseMiddleware struct {
	llm    interfaces.LLM
	tracer *LangfuseTracer
}

// NewLLMLangfuseMiddleware creates a new LLM middleware with Langfuse tracing
func NewLLMLangfuseMiddleware(llm interfaces.LLM, tracer *LangfuseTracer) *LLMLangfuseMiddleware {
	return &LLMLangfuseMiddleware{
		llm:    llm,
		tracer: tracer,
	}
}

// Chat implements interfaces.LLM.Chat
func (m *LLMLangfuseMiddleware) Chat(ctx context.Context, messages []interfaces.Message, params *interfaces.GenerateParams) (string, error) {
	startTime := time.Now()
	response, err := m.llm.Chat(ctx, messages, params)
	endTime := time.Now()

	input := make([]model.M, len(messages))
	for i, msg := range messages {
		input[i] = model.M{"role": msg.Role, "content": msg.Content}
	}

	metadata := model.M{}
	for k, v := range m.tracer.metadata(ctx) {
		metadata[k] = v
	}
	if params != nil {
		metadata["max_tokens"] = params.MaxTokens
		metadata["temperature"] = params.Temperature
	}

	traceID, parentID := m.tracer.parent(ctx, "llm.chat")
	generation := &model.Generation{
		ID:        uuid.NewString(),
		TraceID:   traceID,
		Name:      "llm.chat",
		StartTime: &startTime,
		EndTime:   &endTime,
		Model:     m.llm.Name(),
		Input:     input,
		Metadata:  metadata,
	}
	if err != nil {
		generation.Level = levelError
		generation.StatusMessage = err.Error()
	} else {
		generation.Output = model.M{"completion": response}
	}

	var parent *string
	if parentID != "" {
		parent = &parentID
	}
	if _, traceErr := m.tracer.client.Generation(generation, parent); traceErr != nil {
		m.tracer.logger.Warn(ctx, "failed to trace generation", map[string]interface{}{"error": traceErr.Error()})
	}

	return response, err
}

// Name implements interfaces.LLM.Name
func (m *LLMLangfuseMiddleware) Name() string {
	return m.llm.Name()
}
