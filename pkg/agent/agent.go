// Package agent runs the crew: each member turns model completions into
// answers or run_tool dispatches, and members can ask each other for help.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/llm"
	"github.com/run-bigpig/clemm/pkg/logging"
	"github.com/run-bigpig/clemm/pkg/memory"
	"github.com/run-bigpig/clemm/pkg/toolcall"
	"github.com/run-bigpig/clemm/pkg/tools"
)

// ErrGeneration wraps every model failure surfaced by Chat
var ErrGeneration = errors.New("generation failed")

// Agent is one crew member: a persona with its own history that shares the
// model backend and the tool registry with the rest of the crew.
type Agent struct {
	key          string
	name         string
	systemPrompt string
	llm          interfaces.LLM
	params       interfaces.GenerateParams
	registry     *tools.Registry
	memory       interfaces.Memory
	tracer       interfaces.Tracer
	logger       logging.Logger
	crewConfig   *CrewConfig
	roster       *Roster

	mu             sync.Mutex
	history        []interfaces.Message
	conversationID string
}

// Option represents an option for configuring an agent
type Option func(*Agent)

// WithLLM sets the LLM for the agent
func WithLLM(llm interfaces.LLM) Option {
	return func(a *Agent) {
		a.llm = llm
	}
}

// WithTools sets the registry run_tool commands are dispatched through
func WithTools(registry *tools.Registry) Option {
	return func(a *Agent) {
		a.registry = registry
	}
}

// WithMemory mirrors the history into a transcript store
func WithMemory(memory interfaces.Memory) Option {
	return func(a *Agent) {
		a.memory = memory
	}
}

// WithTracer sets the tracer for the agent
func WithTracer(tracer interfaces.Tracer) Option {
	return func(a *Agent) {
		a.tracer = tracer
	}
}

// WithLogger sets the logger for the agent
func WithLogger(logger logging.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithSystemPrompt sets the system prompt for the agent
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithName sets the display name for the agent
func WithName(name string) Option {
	return func(a *Agent) {
		a.name = name
	}
}

// WithKey sets the roster key. It defaults to the name.
func WithKey(key string) Option {
	return func(a *Agent) {
		a.key = key
	}
}

// WithGenerateParams sets the sampling parameters
func WithGenerateParams(params interfaces.GenerateParams) Option {
	return func(a *Agent) {
		a.params = params
	}
}

// WithCrewConfig configures the agent from a crew definition. The system
// prompt is rendered with the registry's tool descriptions.
func WithCrewConfig(config CrewConfig) Option {
	return func(a *Agent) {
		a.crewConfig = &config
	}
}

// NewAgent creates a new agent with the given options
func NewAgent(options ...Option) (*Agent, error) {
	agent := &Agent{
		params: *llm.DefaultGenerateParams(),
		logger: logging.NewNop(),
	}

	for _, option := range options {
		option(agent)
	}

	if agent.llm == nil {
		return nil, fmt.Errorf("LLM is required")
	}
	if agent.registry == nil {
		agent.registry = tools.NewRegistry(tools.WithLogger(agent.logger))
	}

	if cfg := agent.crewConfig; cfg != nil {
		prompt, err := cfg.SystemPromptFor(agent.registry.Descriptions())
		if err != nil {
			return nil, fmt.Errorf("crew %s: %w", cfg.Key, err)
		}
		agent.systemPrompt = prompt
		agent.params = cfg.GenerateParams()
		if agent.key == "" {
			agent.key = cfg.Key
		}
		if agent.name == "" {
			agent.name = cfg.Name
		}
	}

	if agent.name == "" {
		agent.name = agent.key
	}
	if agent.key == "" {
		agent.key = agent.name
	}
	if agent.key == "" {
		return nil, fmt.Errorf("agent name is required")
	}

	agent.history = []interfaces.Message{{Role: interfaces.RoleSystem, Content: agent.systemPrompt}}
	agent.conversationID = uuid.NewString()

	return agent, nil
}

// Name returns the display name. It makes *Agent a tools.AgentContext.
func (a *Agent) Name() string {
	return a.name
}

// Key returns the roster key
func (a *Agent) Key() string {
	return a.key
}

// SystemPrompt returns the prompt held in history[0]
func (a *Agent) SystemPrompt() string {
	return a.systemPrompt
}

// Params returns the sampling parameters
func (a *Agent) Params() interfaces.GenerateParams {
	return a.params
}

// Roster returns the crew this agent belongs to, or nil before NewRoster
func (a *Agent) Roster() *Roster {
	return a.roster
}

// Tools returns the registry the agent dispatches through
func (a *Agent) Tools() *tools.Registry {
	return a.registry
}

// ConversationID identifies the current transcript in memory
func (a *Agent) ConversationID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversationID
}

// History returns a copy of the conversation so far
func (a *Agent) History() []interfaces.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]interfaces.Message(nil), a.history...)
}

// Reset truncates the history to the system prompt and starts a new
// transcript. Calling it twice is the same as calling it once.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.history) > 1 {
		a.conversationID = uuid.NewString()
	}
	a.history = a.history[:1:1]
}

// Chat runs one turn: it asks the model for a completion and either
// records the answer or dispatches every run_tool command in it. The
// returned text joins the user-visible lines with a blank line.
//
// A model failure removes the user message again and returns an error
// wrapping ErrGeneration.
func (a *Agent) Chat(ctx context.Context, input string) (string, error) {
	conversationID := a.ConversationID()
	ctx = memory.WithConversationID(ctx, conversationID)

	if a.tracer != nil {
		var span interfaces.Span
		ctx, span = a.tracer.StartSpan(ctx, "agent.chat")
		span.SetAttribute("crew", a.key)
		defer span.End()
	}

	userMsg := interfaces.Message{Role: interfaces.RoleUser, Content: input}

	a.mu.Lock()
	a.history = append(a.history, userMsg)
	mark := len(a.history) - 1
	snapshot := append([]interfaces.Message(nil), a.history...)
	a.mu.Unlock()

	params := a.params
	response, err := a.llm.Chat(ctx, snapshot, &params)
	if err != nil {
		a.rollback(mark)
		a.logger.Error(ctx, "Generation failed", map[string]interface{}{
			"crew":  a.key,
			"error": err.Error(),
		})
		return "", fmt.Errorf("crew %s: %w: %w", a.name, ErrGeneration, err)
	}

	text := toolcall.StripReasoning(response)
	parsed := toolcall.Parse(text)

	var output []string
	added := []interfaces.Message{userMsg}

	if !parsed.HasCalls() {
		if text != "" {
			added = append(added, a.appendEntry(interfaces.RoleAssistant, text))
			output = append(output, text)
		}
		a.remember(ctx, added)
		return strings.Join(output, "\n\n"), nil
	}

	if parsed.Preamble != "" {
		added = append(added, a.appendEntry(interfaces.RoleAssistant, parsed.Preamble))
		output = append(output, parsed.Preamble)
	}

	for _, call := range parsed.Calls {
		if call.Err != nil {
			a.logger.Warn(ctx, "Dispatching command with unparsed arguments", map[string]interface{}{
				"crew":  a.key,
				"tool":  call.Name,
				"error": call.Err.Error(),
			})
		}

		result, callErr := a.registry.Call(ctx, call.Name, a, call.Arguments)
		if callErr != nil {
			added = append(added, a.appendEntry(interfaces.RoleSystem, callErr.Error()))
			output = append(output, callErr.Error())
			continue
		}

		added = append(added, a.appendEntry(interfaces.RoleSystem,
			fmt.Sprintf("Tool '%s' executed successfully. Result: %s", call.Name, result)))
		output = append(output, "TOOL RESULT: "+result)
	}

	a.remember(ctx, added)
	return strings.Join(output, "\n\n"), nil
}

func (a *Agent) appendEntry(role, content string) interfaces.Message {
	msg := interfaces.Message{Role: role, Content: content}
	a.mu.Lock()
	a.history = append(a.history, msg)
	a.mu.Unlock()
	return msg
}

// rollback drops the entry at mark and anything after it, unless a reset
// already did.
func (a *Agent) rollback(mark int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.history) > mark {
		a.history = a.history[:mark]
	}
}

func (a *Agent) remember(ctx context.Context, msgs []interfaces.Message) {
	if a.memory == nil {
		return
	}
	for _, msg := range msgs {
		msg.Metadata = map[string]interface{}{"crew": a.key}
		if err := a.memory.AddMessage(ctx, msg); err != nil {
			a.logger.Warn(ctx, "Failed to mirror message to memory", map[string]interface{}{
				"crew":  a.key,
				"error": err.Error(),
			})
			return
		}
	}
}
