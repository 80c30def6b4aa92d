package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/run-bigpig/clemm/pkg/toolcall"
	"github.com/run-bigpig/clemm/pkg/tools"
)

const (
	// DelegationToolName is the registry name of the delegation tool
	DelegationToolName = "ask_crew"

	// CrewAlias is the name that always means DefaultDelegate
	CrewAlias = "crew"

	// DefaultDelegate is the crew member that turns requests into tool commands
	DefaultDelegate = "tool_crew"

	// MaxDelegationDepth bounds chains of crew members asking each other
	MaxDelegationDepth = 3
)

var (
	// ErrNoRoster is returned when the caller does not belong to a roster
	ErrNoRoster = errors.New("no crew roster available for delegation")

	// ErrDelegationDepth is returned when delegation chains run too deep
	ErrDelegationDepth = errors.New("delegation depth limit reached")
)

type delegationDepthKey struct{}

func delegationDepth(ctx context.Context) int {
	depth, _ := ctx.Value(delegationDepthKey{}).(int)
	return depth
}

type rosterHolder interface {
	Roster() *Roster
}

// DelegationTool returns the ask_crew spec. Commands the target answers
// with are run through registry.
func DelegationTool(registry *tools.Registry) tools.Spec {
	return tools.Spec{
		Name:                 DelegationToolName,
		Description:          "Asks another crew member a question and returns their answer. Use crew_member=crew for tool requests.",
		Parameters:           []string{"crew_member", "question", "context"},
		RequiresAgentContext: true,
		Func: func(ctx context.Context, caller tools.AgentContext, args tools.Args) (string, error) {
			return askCrew(ctx, registry, caller, args)
		},
	}
}

// RegisterDelegationTool adds ask_crew to registry
func RegisterDelegationTool(registry *tools.Registry) error {
	return registry.Register(DelegationTool(registry))
}

func askCrew(ctx context.Context, registry *tools.Registry, caller tools.AgentContext, args tools.Args) (string, error) {
	holder, ok := caller.(rosterHolder)
	if !ok || holder.Roster() == nil {
		return "", ErrNoRoster
	}

	name := args.Get("crew_member", "")
	target, err := holder.Roster().Lookup(name)
	if err != nil {
		return "", err
	}

	depth := delegationDepth(ctx)
	if depth >= MaxDelegationDepth {
		return "", fmt.Errorf("asking '%s': %w", name, ErrDelegationDepth)
	}
	ctx = context.WithValue(ctx, delegationDepthKey{}, depth+1)

	message := args.Get("question", "")
	if extra := args.Get("context", ""); extra != "" {
		message = extra + "\n\n" + message
	}

	response, err := target.Chat(ctx, message)
	if err != nil {
		return "", fmt.Errorf("crew member '%s' could not answer: %w", name, err)
	}

	if call, ok := toolcall.Parse(response).Single(); ok {
		return registry.Invoke(ctx, call.Name, target, call.Arguments), nil
	}
	return response, nil
}
