// Package console is the interactive command loop for talking to the crew
// and running tools by hand.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"

	"github.com/run-bigpig/clemm/pkg/agent"
	"github.com/run-bigpig/clemm/pkg/logging"
	"github.com/run-bigpig/clemm/pkg/toolcall"
	"github.com/run-bigpig/clemm/pkg/tools"
)

const (
	commandList = "help, exit, status, destination, ask, crew, use [crew_name], reset, run_code, run_tool [tool_name]"
	destination = "Europa(Jupiter II)"
)

// Console reads commands line by line and writes replies
type Console struct {
	roster   *agent.Roster
	registry *tools.Registry
	in       io.Reader
	out      io.Writer
	styles   Styles
	markdown *glamour.TermRenderer
	logger   logging.Logger

	current   *agent.Agent
	sessionID string
}

// Option configures a Console
type Option func(*Console)

// WithInput sets where commands are read from. The default is stdin.
func WithInput(r io.Reader) Option {
	return func(c *Console) {
		c.in = r
	}
}

// WithOutput sets where replies are written. The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Console) {
		c.out = w
	}
}

// WithMarkdown renders crew replies as Markdown wrapped at width columns
func WithMarkdown(width int) Option {
	return func(c *Console) {
		if r, err := newMarkdownRenderer(width); err == nil {
			c.markdown = r
		}
	}
}

// WithLogger sets the logger for the console
func WithLogger(logger logging.Logger) Option {
	return func(c *Console) {
		c.logger = logger
	}
}

// New creates a console over roster. Tool commands go through the
// registry of the crew member in use.
func New(roster *agent.Roster, options ...Option) (*Console, error) {
	if roster == nil || roster.Len() == 0 {
		return nil, errors.New("no crew members available")
	}

	c := &Console{
		roster:    roster,
		in:        os.Stdin,
		out:       os.Stdout,
		logger:    logging.NewNop(),
		current:   roster.Default(),
		sessionID: uuid.NewString(),
	}
	for _, option := range options {
		option(c)
	}
	c.registry = c.current.Tools()
	c.styles = NewStyles(c.out)
	return c, nil
}

// Current returns the crew member questions go to
func (c *Console) Current() *agent.Agent {
	return c.current
}

// Run prints the banner and processes commands until "exit", the end of
// input, or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	c.println(c.styles.Banner.Render("Clemm 09 Console Online. Type 'help' for commands or 'exit'"))
	c.println("Current crew: " + c.styles.Crew.Render(c.current.Key()))
	c.logger.Info(ctx, "Console session started", map[string]interface{}{
		"session_id": c.sessionID,
		"crew":       c.current.Key(),
	})

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(c.out, c.styles.Prompt.Render("> "))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			c.println("")
			return nil
		}
		if !c.Execute(ctx, scanner.Text()) {
			return nil
		}
	}
}

// Execute runs one command line. It returns false on "exit".
func (c *Console) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	lower := strings.ToLower(input)

	switch {
	case lower == "exit":
		return false
	case lower == "help":
		c.println("Available commands: " + commandList)
		c.println("\nAvailable tools: " + strings.Join(c.registry.ListNames(), ", "))
	case lower == "status":
		c.println("System Status: All systems nominal.")
	case lower == "destination":
		c.println("Current Destination: " + destination)
	case lower == "crew":
		c.println("Available crew members: " + strings.Join(c.roster.Keys(), ", "))
	case lower == "reset":
		c.current.Reset()
		c.println(fmt.Sprintf("crew '%s' reset.", c.current.Key()))
	case lower == "run_code":
		c.println(c.styles.Info.Render("Code execution is disabled on this ship."))
	case strings.HasPrefix(lower, "use"):
		c.use(input)
	case strings.HasPrefix(lower, "ask"):
		c.ask(ctx, strings.TrimSpace(input[len("ask"):]))
	case strings.HasPrefix(lower, "run_tool"):
		c.runTool(ctx, input)
	default:
		c.println("Command not recognized.")
	}
	return true
}

func (c *Console) use(input string) {
	fields := strings.Fields(input)
	if len(fields) < 2 {
		c.println("Please specify a crew member's name.")
		return
	}

	member, ok := c.roster.Get(agent.ResolveAlias(fields[1]))
	if !ok {
		c.println("Crew member not found.")
		return
	}
	c.current = member
	c.registry = member.Tools()
	c.println("Switched to crew: " + c.styles.Crew.Render(member.Key()))
	member.Reset()
}

func (c *Console) ask(ctx context.Context, query string) {
	if query == "" {
		c.println("Please provide a question.")
		return
	}

	response, err := c.current.Chat(ctx, query)
	if err != nil {
		c.println(c.styles.Error.Render("Error: " + err.Error()))
		return
	}

	if !isCommand(response) {
		c.reply(response)
		return
	}

	call, err := toolcall.ParseCommand(response)
	if err != nil {
		c.println(c.styles.Error.Render("Error executing tool: " + err.Error()))
		return
	}
	c.println("\nExecuting tool: " + c.styles.Tool.Render(call.Name))
	if len(call.Arguments) > 0 {
		c.println(fmt.Sprintf("With arguments: %v", call.Arguments.Literals()))
	}
	result := c.registry.Invoke(ctx, call.Name, c.current, call.Arguments)
	c.println("Tool result: " + result)

	feedback, err := c.current.Chat(ctx, "Tool execution result: "+result)
	if err != nil {
		c.println(c.styles.Error.Render("Error: " + err.Error()))
		return
	}
	if !isCommand(feedback) {
		c.reply(feedback)
	}
}

func (c *Console) runTool(ctx context.Context, input string) {
	if len(strings.Fields(input)) < 2 {
		c.println("Please specify a tool name after 'run_tool'.")
		return
	}

	call, err := toolcall.ParseCommand(input)
	if err != nil {
		c.println(c.styles.Error.Render("Error: " + err.Error()))
		return
	}
	if call.Err != nil {
		c.println(c.styles.Error.Render("Could not parse arguments: " + call.Err.Error()))
		return
	}

	c.println(fmt.Sprintf("Running tool: '%s'", call.Name))
	if len(call.Arguments) > 0 {
		c.println(fmt.Sprintf("With arguments: %v", call.Arguments.Literals()))
	}
	result := c.registry.Invoke(ctx, call.Name, c.current, call.Arguments)
	c.println(c.styles.Tool.Render("Tool Result:") + " " + result)
}

func (c *Console) reply(text string) {
	body := text
	if c.markdown != nil {
		if rendered, err := c.markdown.Render(text); err == nil {
			body = "\n" + strings.TrimRight(rendered, "\n")
		}
	}
	c.println(c.styles.Crew.Render(c.current.Key()+":") + " " + body)
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.ToLower(text), toolcall.Keyword+" ")
}
