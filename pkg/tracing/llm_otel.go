package tracing

import (
	"context"

	"github.com/run-bigpig/clemm/pkg/interfaces"
)

// LLMOTelMiddleware wraps an LLM with OpenTelemetry tracing
type LLMOTelMiddleware struct {
	llm    interfaces.LLM
	tracer interfaces.Tracer
}

// NewLLMOTelMiddleware creates a new LLMOTelMiddleware
func NewLLMOTelMiddleware(llm interfaces.LLM, tracer interfaces.Tracer) *LLMOTelMiddleware {
	return &LLMOTelMiddleware{
		llm:    llm,
		tracer: tracer,
	}
}

// Chat implements interfaces.LLM.Chat
func (m *LLMOTelMiddleware) Chat(ctx context.Context, messages []interfaces.Message, params *interfaces.GenerateParams) (string, error) {
	ctx, span := m.tracer.StartSpan(ctx, "llm.chat")
	defer span.End()

	span.SetAttribute("llm.provider", m.llm.Name())
	span.SetAttribute("messages.count", len(messages))
	if params != nil {
		span.SetAttribute("llm.max_tokens", params.MaxTokens)
		span.SetAttribute("llm.temperature", params.Temperature)
	}

	response, err := m.llm.Chat(ctx, messages, params)
	if err != nil {
		span.RecordError(err)
		return response, err
	}

	span.SetAttribute("response.length", len(response))
	return response, nil
}

// Name implements interfaces.LLM.Name
func (m *LLMOTelMiddleware) Name() string {
	return m.llm.Name()
}
