package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	mcplib "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport"
	"github.com/metoro-io/mcp-golang/transport/http"
	"github.com/metoro-io/mcp-golang/transport/stdio"

	"github.com/run-bigpig/clemm/pkg/toolcall"
	"github.com/run-bigpig/clemm/pkg/tools"
)

// RemoteTool is a tool offered by an MCP server
type RemoteTool struct {
	Name        string
	Description string
	Schema      interface{}
}

// Remote is a connection to an MCP server
type Remote interface {
	// ListTools lists the tools available on the MCP server
	ListTools(ctx context.Context) ([]RemoteTool, error)

	// CallTool calls a tool on the MCP server and returns its text content
	CallTool(ctx context.Context, name string, args interface{}) (string, error)

	// Close closes the connection to the MCP server
	Close() error
}

type remote struct {
	client *mcplib.Client
	cmd    *exec.Cmd
}

// NewRemote initializes an MCP client over the given transport
func NewRemote(ctx context.Context, t transport.Transport) (Remote, error) {
	client := mcplib.NewClient(t)
	if _, err := client.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}
	return &remote{client: client}, nil
}

func (r *remote) ListTools(ctx context.Context) ([]RemoteTool, error) {
	var (
		out    []RemoteTool
		cursor *string
	)
	for {
		resp, err := r.client.ListTools(ctx, cursor)
		if err != nil {
			return nil, err
		}
		for _, t := range resp.Tools {
			description := ""
			if t.Description != nil {
				description = *t.Description
			}
			out = append(out, RemoteTool{
				Name:        t.Name,
				Description: description,
				Schema:      t.InputSchema,
			})
		}
		if resp.NextCursor == nil || *resp.NextCursor == "" {
			return out, nil
		}
		cursor = resp.NextCursor
	}
}

func (r *remote) CallTool(ctx context.Context, name string, args interface{}) (string, error) {
	resp, err := r.client.CallTool(ctx, name, args)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, c := range resp.Content {
		if c != nil && c.TextContent != nil {
			parts = append(parts, c.TextContent.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (r *remote) Close() error {
	if r.cmd != nil && r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
		_ = r.cmd.Wait()
	}
	return nil
}

// StdioServerConfig holds configuration for a stdio MCP server
type StdioServerConfig struct {
	Command string
	Args    []string
	Env     []string
}

// NewStdioRemote starts an MCP server process and talks to it over stdio
func NewStdioRemote(ctx context.Context, config StdioServerConfig) (Remote, error) {
	if config.Command == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}

	commandPath, err := exec.LookPath(config.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid command %q: %w", config.Command, err)
	}

	// #nosec G204 - the command is resolved with LookPath and comes from local configuration
	cmd := exec.CommandContext(ctx, commandPath, config.Args...)
	if len(config.Env) > 0 {
		cmd.Env = append(os.Environ(), config.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start MCP server: %w", err)
	}

	r, err := NewRemote(ctx, stdio.NewStdioServerTransportWithIO(stdout, stdin))
	if err != nil {
		if killErr := cmd.Process.Kill(); killErr != nil {
			return nil, fmt.Errorf("%w (and failed to kill process: %v)", err, killErr)
		}
		_ = cmd.Wait()
		return nil, err
	}
	r.(*remote).cmd = cmd
	return r, nil
}

// DefaultHTTPPath is the endpoint used when none is configured
const DefaultHTTPPath = "/mcp"

// HTTPServerConfig holds configuration for an HTTP MCP server
type HTTPServerConfig struct {
	BaseURL string
	Path    string
	Token   string
}

// NewHTTPRemote connects to an MCP server over HTTP
func NewHTTPRemote(ctx context.Context, config HTTPServerConfig) (Remote, error) {
	path := config.Path
	if path == "" {
		path = DefaultHTTPPath
	}
	t := http.NewHTTPClientTransport(path)
	t.WithBaseURL(config.BaseURL)
	if config.Token != "" {
		t.WithHeader("Authorization", "Bearer "+config.Token)
	}
	return NewRemote(ctx, t)
}

// ImportTools registers every tool of r in registry, named prefix+name.
// Declared parameters come from the tool's JSON schema properties, and
// argument values are passed on as typed literals. Characters a run_tool
// line cannot address are replaced by underscores in tool and parameter
// names; the remote still receives its own names.
func ImportTools(ctx context.Context, r Remote, registry *tools.Registry, prefix string) ([]string, error) {
	remoteTools, err := r.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list MCP tools: %w", err)
	}

	names := make([]string, 0, len(remoteTools))
	for _, rt := range remoteTools {
		remoteName := rt.Name
		params := schemaProperties(rt.Schema)
		keys := make(map[string]string, len(params))
		for i, p := range params {
			params[i] = localName(p)
			keys[params[i]] = p
		}

		spec := tools.Spec{
			Name:        localName(prefix + rt.Name),
			Description: rt.Description,
			Parameters:  params,
			Func: func(ctx context.Context, _ tools.AgentContext, args tools.Args) (string, error) {
				payload := make(map[string]interface{}, len(args))
				for k, v := range args {
					if original, ok := keys[k]; ok {
						k = original
					}
					payload[k] = toolcall.Literal(v)
				}
				return r.CallTool(ctx, remoteName, payload)
			},
		}
		if err := registry.Register(spec); err != nil {
			return names, err
		}
		names = append(names, spec.Name)
	}
	return names, nil
}

// localName maps a remote name onto the characters run_tool accepts
func localName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}

// schemaProperties returns the sorted property names of a JSON object schema
func schemaProperties(schema interface{}) []string {
	m, ok := schema.(map[string]interface{})
	if !ok {
		return nil
	}
	props, ok := m["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
