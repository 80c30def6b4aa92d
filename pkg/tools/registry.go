// Package tools holds the tool registry that run_tool commands dispatch through.
package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/logging"
	"github.com/run-bigpig/clemm/pkg/toolcall"
)

// AgentContext is the crew member on whose behalf a tool runs
type AgentContext interface {
	Name() string
}

// Args are the named arguments of one invocation
type Args map[string]string

// Get returns the argument or fallback when it was not supplied.
// A supplied empty value is returned as is.
func (a Args) Get(name, fallback string) string {
	if v, ok := a[name]; ok {
		return v
	}
	return fallback
}

// Func is the body of a tool. Expected failures should be reported in the
// returned text; a returned error or a panic becomes an InvocationError.
type Func func(ctx context.Context, agent AgentContext, args Args) (string, error)

// Spec describes a registered tool
type Spec struct {
	Name        string
	Description string
	// Parameters is the declared argument schema, in display order
	Parameters []string
	// RequiresAgentContext marks tools that act through the calling crew member
	RequiresAgentContext bool
	Func                 Func
}

// Describe renders the line shown to the model and to users
func (s Spec) Describe() string {
	params := "None"
	if len(s.Parameters) > 0 {
		params = strings.Join(s.Parameters, ", ")
	}
	return fmt.Sprintf("%s: %s Parameters: %s", s.Name, s.Description, params)
}

// Registry maps tool names to specs. Tools are registered at startup and
// looked up by exact, case-sensitive name.
type Registry struct {
	mu     sync.RWMutex
	specs  map[string]Spec
	order  []string
	logger logging.Logger
	tracer interfaces.Tracer
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger for the registry
func WithLogger(logger logging.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithTracer wraps every invocation in a span
func WithTracer(tracer interfaces.Tracer) Option {
	return func(r *Registry) {
		r.tracer = tracer
	}
}

// NewRegistry creates an empty registry
func NewRegistry(options ...Option) *Registry {
	r := &Registry{
		specs:  make(map[string]Spec),
		logger: logging.NewNop(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Register adds a tool. Names must be unique and non-empty.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if spec.Func == nil {
		return fmt.Errorf("tool %s: function is required", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, spec.Name)
	}

	spec.Parameters = append([]string(nil), spec.Parameters...)
	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// Get returns a copy of the spec registered under name
func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[name]
	if !ok {
		return Spec{}, false
	}
	spec.Parameters = append([]string(nil), spec.Parameters...)
	return spec, true
}

// Describe renders "<name>: <description> Parameters: <params or None>"
func (r *Registry) Describe(name string) (string, bool) {
	spec, ok := r.Get(name)
	if !ok {
		return "", false
	}
	return spec.Describe(), true
}

// ListNames returns every tool name in registration order
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Descriptions returns Describe for every tool in registration order
func (r *Registry) Descriptions() []string {
	names := r.ListNames()
	out := make([]string, 0, len(names))
	for _, name := range names {
		if line, ok := r.Describe(name); ok {
			out = append(out, line)
		}
	}
	return out
}

// Validate checks argument names against the declared parameters.
// Missing parameters are allowed; the tool applies its defaults.
func (r *Registry) Validate(name string, args toolcall.Arguments) error {
	spec, ok := r.Get(name)
	if !ok {
		return ErrToolNotFound
	}
	return validate(spec, args)
}

func validate(spec Spec, args toolcall.Arguments) error {
	accepted := make(map[string]struct{}, len(spec.Parameters))
	for _, p := range spec.Parameters {
		accepted[p] = struct{}{}
	}

	var unknown []string
	for _, key := range args.Keys() {
		if _, ok := accepted[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	want := "none"
	if len(spec.Parameters) > 0 {
		want = strings.Join(spec.Parameters, ", ")
	}
	return fmt.Errorf("%w(s) %s (accepted: %s)", ErrUnknownArgument, strings.Join(unknown, ", "), want)
}

// Call runs a tool. Every failure, including a panic in the tool body,
// comes back as an *InvocationError.
func (r *Registry) Call(ctx context.Context, name string, agent AgentContext, args toolcall.Arguments) (result string, err error) {
	spec, ok := r.Get(name)
	if !ok {
		r.logger.Warn(ctx, "Tool not found", map[string]interface{}{"tool": name})
		return "", &InvocationError{Tool: name, Err: ErrToolNotFound}
	}
	if spec.RequiresAgentContext && agent == nil {
		return "", &InvocationError{Tool: name, Err: ErrAgentContextRequired}
	}
	if err := validate(spec, args); err != nil {
		r.logger.Warn(ctx, "Rejected tool arguments", map[string]interface{}{
			"tool":  name,
			"error": err.Error(),
		})
		return "", &InvocationError{Tool: name, Err: err}
	}

	if r.tracer != nil {
		var span interfaces.Span
		ctx, span = r.tracer.StartSpan(ctx, "tool."+name)
		span.SetAttribute("tool.name", name)
		span.SetAttribute("tool.arguments", args.String())
		defer func() {
			if err != nil {
				span.RecordError(err)
			}
			span.End()
		}()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(ctx, "Tool panicked", map[string]interface{}{
				"tool":  name,
				"panic": fmt.Sprint(rec),
			})
			result = ""
			err = &InvocationError{Tool: name, Err: fmt.Errorf("%v", rec)}
		}
	}()

	fields := map[string]interface{}{"tool": name, "arguments": args.String()}
	if agent != nil {
		fields["crew"] = agent.Name()
	}
	r.logger.Debug(ctx, "Executing tool", fields)

	out, callErr := spec.Func(ctx, agent, Args(args.Map()))
	if callErr != nil {
		r.logger.Error(ctx, "Tool failed", map[string]interface{}{
			"tool":  name,
			"error": callErr.Error(),
		})
		return "", &InvocationError{Tool: name, Err: callErr}
	}
	return out, nil
}

// Invoke runs a tool and always returns text: the result, or the
// description of what went wrong. It never panics.
func (r *Registry) Invoke(ctx context.Context, name string, agent AgentContext, args toolcall.Arguments) string {
	out, err := r.Call(ctx, name, agent, args)
	if err != nil {
		return err.Error()
	}
	return out
}
