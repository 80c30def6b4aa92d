// Package mcp connects the tool registry to the Model Context Protocol:
// Bridge serves registry tools to MCP clients, and ImportTools registers
// tools from a remote MCP server.
package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport"

	"github.com/run-bigpig/clemm/pkg/logging"
	"github.com/run-bigpig/clemm/pkg/toolcall"
	"github.com/run-bigpig/clemm/pkg/tools"
)

// ToolArgs is the input schema of every bridged tool. Arguments use the
// run_tool syntax, for example `filename="log.txt", content="hello"`.
type ToolArgs struct {
	Arguments string `json:"arguments" jsonschema:"description=Tool arguments in run_tool syntax (key=value pairs); empty for tools without parameters"`
}

// Bridge exposes registry tools as MCP tools
type Bridge struct {
	registry *tools.Registry
	agent    tools.AgentContext
	logger   logging.Logger
	ctx      context.Context
}

// BridgeOption configures a Bridge
type BridgeOption func(*Bridge)

// WithAgent sets the crew member tools run on behalf of. Without one,
// tools that need a crew member report that they cannot run.
func WithAgent(agent tools.AgentContext) BridgeOption {
	return func(b *Bridge) {
		b.agent = agent
	}
}

// WithLogger sets the logger. Over stdio it must not write to stdout.
func WithLogger(logger logging.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// NewBridge creates a bridge over registry
func NewBridge(registry *tools.Registry, options ...BridgeOption) *Bridge {
	b := &Bridge{
		registry: registry,
		logger:   logging.NewNop(),
		ctx:      context.Background(),
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// Handle runs one tool call. Tool failures come back as text, like any
// run_tool result; only unparseable arguments are an error.
func (b *Bridge) Handle(ctx context.Context, name string, args ToolArgs) (*mcplib.ToolResponse, error) {
	parsed, err := toolcall.ParseArguments(args.Arguments)
	if err != nil {
		b.logger.Warn(ctx, "Rejected MCP tool arguments", map[string]interface{}{
			"tool":  name,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	result := b.registry.Invoke(ctx, name, b.agent, parsed)
	return mcplib.NewToolResponse(mcplib.NewTextContent(result)), nil
}

// Register adds every registry tool to server
func (b *Bridge) Register(server *mcplib.Server) error {
	for _, name := range b.registry.ListNames() {
		description, _ := b.registry.Describe(name)
		toolName := name
		err := server.RegisterTool(toolName, description, func(args ToolArgs) (*mcplib.ToolResponse, error) {
			return b.Handle(b.ctx, toolName, args)
		})
		if err != nil {
			return fmt.Errorf("failed to register MCP tool %s: %w", name, err)
		}
	}
	return nil
}

// Serve registers every tool on a server over t and serves until ctx is
// done. Transports whose Serve blocks, such as HTTP, run in the background.
func (b *Bridge) Serve(ctx context.Context, t transport.Transport) error {
	b.ctx = ctx
	server := mcplib.NewServer(t)
	if err := b.Register(server); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve()
	}()
	b.logger.Info(ctx, "MCP bridge serving", map[string]interface{}{
		"tools": len(b.registry.ListNames()),
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("failed to serve MCP: %w", err)
			}
			errCh = nil
		}
	}
}
