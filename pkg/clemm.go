// Package clemm boots the ship: it turns a Config into a running crew
// with its model backend, tools, transcript store and tracer.
package clemm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/run-bigpig/clemm/pkg/agent"
	"github.com/run-bigpig/clemm/pkg/config"
	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/llm/llamacpp"
	"github.com/run-bigpig/clemm/pkg/llm/ollama"
	"github.com/run-bigpig/clemm/pkg/llm/openai"
	"github.com/run-bigpig/clemm/pkg/logging"
	"github.com/run-bigpig/clemm/pkg/mcp"
	"github.com/run-bigpig/clemm/pkg/memory"
	"github.com/run-bigpig/clemm/pkg/retry"
	"github.com/run-bigpig/clemm/pkg/tools"
	"github.com/run-bigpig/clemm/pkg/tools/shipboard"
	"github.com/run-bigpig/clemm/pkg/tracing"
)

// Ship holds everything Boot started. Close releases it in reverse order.
type Ship struct {
	Config   *config.Config
	Logger   logging.Logger
	LLM      interfaces.LLM
	Registry *tools.Registry
	Memory   interfaces.Memory
	Roster   *agent.Roster

	closers []func(context.Context) error
}

type bootOptions struct {
	logger logging.Logger
	llm    interfaces.LLM
	opener shipboard.Opener
}

// Option customizes Boot
type Option func(*bootOptions)

// WithLogger replaces the logger built from the config
func WithLogger(logger logging.Logger) Option {
	return func(o *bootOptions) {
		o.logger = logger
	}
}

// WithLLM skips backend setup and uses llm for every crew member
func WithLLM(llm interfaces.LLM) Option {
	return func(o *bootOptions) {
		o.llm = llm
	}
}

// WithOpener replaces the platform file viewer used by open_notes
func WithOpener(opener shipboard.Opener) Option {
	return func(o *bootOptions) {
		o.opener = opener
	}
}

// NewLogger builds the logger described by cfg, writing to w
func NewLogger(cfg config.LogConfig, w io.Writer) logging.Logger {
	opts := []logging.Option{logging.WithOutput(w)}
	if cfg.Level != "" {
		opts = append(opts, logging.WithLevel(cfg.Level))
	}
	if cfg.JSON {
		opts = append(opts, logging.WithJSON())
	}
	return logging.New(opts...)
}

// Boot wires the backend, tool registry, transcript store and tracer
// described by cfg, then builds the crew. On failure everything already
// started is released again.
func Boot(ctx context.Context, cfg *config.Config, options ...Option) (ship *Ship, err error) {
	o := &bootOptions{}
	for _, option := range options {
		option(o)
	}
	if o.logger == nil {
		o.logger = NewLogger(cfg.Log, os.Stderr)
	}

	ship = &Ship{Config: cfg, Logger: o.logger}
	started := ship
	defer func() {
		if err != nil {
			_ = started.Close(context.Background())
		}
	}()

	tracer, traceLLM, err := ship.startTracer(ctx)
	if err != nil {
		return nil, err
	}

	ship.LLM = o.llm
	if ship.LLM == nil {
		if ship.LLM, err = ship.startBackend(ctx); err != nil {
			return nil, err
		}
	}
	if traceLLM != nil {
		ship.LLM = traceLLM(ship.LLM)
	}

	if ship.Memory, err = ship.openMemory(ctx); err != nil {
		return nil, err
	}
	if tracer != nil {
		ship.Memory = tracing.NewMemoryOTelMiddleware(ship.Memory, tracer)
	}

	registryOpts := []tools.Option{tools.WithLogger(o.logger)}
	if tracer != nil {
		registryOpts = append(registryOpts, tools.WithTracer(tracer))
	}
	ship.Registry = tools.NewRegistry(registryOpts...)

	shipboardOpts := []shipboard.Option{shipboard.WithLogger(o.logger)}
	if cfg.OutputDir != "" {
		shipboardOpts = append(shipboardOpts, shipboard.WithOutputDir(cfg.OutputDir))
	}
	if cfg.NotesPath != "" {
		shipboardOpts = append(shipboardOpts, shipboard.WithNotesPath(cfg.NotesPath))
	}
	if o.opener != nil {
		shipboardOpts = append(shipboardOpts, shipboard.WithOpener(o.opener))
	}
	if err := shipboard.Register(ship.Registry, shipboardOpts...); err != nil {
		return nil, fmt.Errorf("failed to register shipboard tools: %w", err)
	}
	if err := agent.RegisterDelegationTool(ship.Registry); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", agent.DelegationToolName, err)
	}

	for _, server := range cfg.MCPServers {
		if err := ship.importMCP(ctx, server); err != nil {
			return nil, err
		}
	}

	crew, err := cfg.LoadCrew()
	if err != nil {
		return nil, err
	}
	if crew, err = promote(crew, cfg.Crew.Default); err != nil {
		return nil, err
	}

	agentOpts := []agent.Option{
		agent.WithLLM(ship.LLM),
		agent.WithTools(ship.Registry),
		agent.WithMemory(ship.Memory),
		agent.WithLogger(o.logger),
	}
	if tracer != nil {
		agentOpts = append(agentOpts, agent.WithTracer(tracer))
	}
	if ship.Roster, err = agent.NewRoster(crew, agentOpts...); err != nil {
		return nil, err
	}

	o.logger.Info(ctx, "Crew assembled", map[string]interface{}{
		"backend": ship.LLM.Name(),
		"crew":    strings.Join(ship.Roster.Keys(), ", "),
		"tools":   len(ship.Registry.ListNames()),
	})
	return ship, nil
}

// Close stops the backend and flushes the store and tracer
func (s *Ship) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Ship) retryOptions() []retry.Option {
	r := s.Config.Retry
	if !r.Enabled {
		return nil
	}
	return []retry.Option{
		retry.WithMaxAttempts(r.MaxAttempts),
		retry.WithInitialInterval(r.InitialInterval),
		retry.WithMaximumInterval(r.MaximumInterval),
	}
}

func (s *Ship) startBackend(ctx context.Context) (interfaces.LLM, error) {
	b := s.Config.Backend
	retryOpts := s.retryOptions()

	switch b.Type {
	case config.BackendServer:
		opts := []llamacpp.Option{llamacpp.WithLogger(s.Logger)}
		if retryOpts != nil {
			opts = append(opts, llamacpp.WithRetry(retryOpts...))
		}
		return llamacpp.NewClient(b.Endpoint(), opts...), nil

	case config.BackendLaunch:
		opts := []llamacpp.Option{llamacpp.WithLogger(s.Logger)}
		if retryOpts != nil {
			opts = append(opts, llamacpp.WithRetry(retryOpts...))
		}
		server, err := llamacpp.StartServer(ctx, s.Config.ServerConfig(), opts...)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return server.Close() })
		return server.Client(), nil

	case config.BackendOpenAI:
		opts := []openai.Option{openai.WithLogger(s.Logger), openai.WithBaseURL(b.Endpoint())}
		if b.Model != "" {
			opts = append(opts, openai.WithModel(b.Model))
		}
		if retryOpts != nil {
			opts = append(opts, openai.WithRetry(retryOpts...))
		}
		return openai.NewClient(b.APIKey, opts...), nil

	case config.BackendOllama:
		opts := []ollama.Option{ollama.WithLogger(s.Logger)}
		if retryOpts != nil {
			opts = append(opts, ollama.WithRetry(retryOpts...))
		}
		return ollama.NewClient(b.Endpoint(), b.Model, opts...)
	}
	return nil, fmt.Errorf("unknown backend type %q", b.Type)
}

// startTracer opens the configured exporter. It returns a nil tracer when
// tracing is off, along with the wrapper that traces model calls.
func (s *Ship) startTracer(ctx context.Context) (interfaces.Tracer, func(interfaces.LLM) interfaces.LLM, error) {
	t := s.Config.Tracing
	if !t.Enabled {
		return nil, nil, nil
	}

	if t.Type == config.TracingLangfuse {
		langfuse, err := tracing.NewLangfuseTracer(ctx, tracing.LangfuseConfig{
			Host:        t.Langfuse.Host,
			PublicKey:   t.Langfuse.PublicKey,
			SecretKey:   t.Langfuse.SecretKey,
			Environment: t.Langfuse.Environment,
		}, tracing.WithLangfuseLogger(s.Logger))
		if err != nil {
			return nil, nil, err
		}
		s.closers = append(s.closers, langfuse.Flush)
		return langfuse, func(llm interfaces.LLM) interfaces.LLM {
			return tracing.NewLLMLangfuseMiddleware(llm, langfuse)
		}, nil
	}

	otel, err := tracing.NewOTelTracer(ctx, tracing.OTelConfig{
		Enabled:           true,
		ServiceName:       t.ServiceName,
		CollectorEndpoint: t.Endpoint,
	})
	if err != nil {
		return nil, nil, err
	}
	s.closers = append(s.closers, otel.Shutdown)
	return otel, func(llm interfaces.LLM) interfaces.LLM {
		return tracing.NewLLMOTelMiddleware(llm, otel)
	}, nil
}

func (s *Ship) openMemory(ctx context.Context) (interfaces.Memory, error) {
	m := s.Config.Memory
	switch m.Type {
	case config.MemoryRedis:
		var opts []memory.RedisOption
		if retryOpts := s.retryOptions(); retryOpts != nil {
			opts = append(opts, memory.WithRetry(retryOpts...))
		}
		store, err := memory.NewRedisMemoryFromConfig(ctx, memory.RedisConfig{
			Addr:     m.RedisAddr,
			Password: m.RedisPassword,
			DB:       m.RedisDB,
		}, opts...)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return store.Close() })
		return store, nil

	case config.MemorySQLite:
		store, err := memory.OpenSQLite(m.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return store.Close() })
		return store, nil

	default:
		var opts []memory.Option
		if m.MaxSize > 0 {
			opts = append(opts, memory.WithMaxSize(m.MaxSize))
		}
		return memory.NewConversationBuffer(opts...), nil
	}
}

// importMCP connects to a remote MCP server and registers its tools
func (s *Ship) importMCP(ctx context.Context, server config.MCPServerConfig) error {
	var (
		remote mcp.Remote
		err    error
	)
	if server.Command != "" {
		remote, err = mcp.NewStdioRemote(ctx, mcp.StdioServerConfig{
			Command: server.Command,
			Args:    server.Args,
			Env:     server.Env,
		})
	} else {
		remote, err = mcp.NewHTTPRemote(ctx, mcp.HTTPServerConfig{
			BaseURL: server.URL,
			Path:    server.Path,
			Token:   server.Token,
		})
	}
	if err != nil {
		return fmt.Errorf("mcp server %s: %w", server.Name, err)
	}
	s.closers = append(s.closers, func(context.Context) error { return remote.Close() })

	names, err := mcp.ImportTools(ctx, remote, s.Registry, server.Prefix)
	if err != nil {
		return fmt.Errorf("mcp server %s: %w", server.Name, err)
	}
	s.Logger.Info(ctx, "Imported MCP tools", map[string]interface{}{
		"server": server.Name,
		"tools":  strings.Join(names, ", "),
	})
	return nil
}

// promote moves the crew member named key to the front, making it the
// roster default
func promote(crew agent.CrewConfigs, key string) (agent.CrewConfigs, error) {
	if key == "" {
		return crew, nil
	}
	for i, c := range crew {
		if c.Key == key {
			out := make(agent.CrewConfigs, 0, len(crew))
			out = append(out, c)
			out = append(out, crew[:i]...)
			return append(out, crew[i+1:]...), nil
		}
	}
	return nil, fmt.Errorf("%w: default crew %s", agent.ErrUnknownCrew, key)
}
